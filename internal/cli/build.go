package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qntx/sumx/internal/build"
	"github.com/qntx/sumx/internal/target"
	"github.com/qntx/sumx/internal/tui"
	"github.com/qntx/sumx/internal/ui"
)

type buildFlags struct {
	config   string
	targets  []string
	binding  string
	platform string
	jobs     int
	watch    bool
	opts     build.Options
}

var (
	flags    buildFlags
	buildCmd = &cobra.Command{
		Use:   "build [bindings...]",
		Short: "Build the sum bindings",
		Long: `Build compiles the sum bindings with the Go toolchain.

Bindings: wasip1 (WASI reactor module), js (WebAssembly for JavaScript),
c-shared and c-archive (C ABI library). C bindings for another platform
use Zig as the C cross compiler.

Configuration is loaded from sumx.toml in the current or parent
directories. CLI flags override config file values. Without a config
and without a binding, an interactive form asks for one.

Targets build in parallel, bounded by --jobs.`,
		Example: `  sumx build wasip1 js
  sumx build c-shared --platform linux/arm64 --pack
  sumx build -t wasi --watch`,
		RunE: runBuild,
	}
)

func init() {
	f := buildCmd.Flags()

	f.StringVarP(&flags.config, "config", "c", "", "config file path (default: sumx.toml)")
	f.StringSliceVarP(&flags.targets, "target", "t", nil, "build targets from config (comma-separated or repeated)")
	f.StringVar(&flags.binding, "binding", "", "binding: wasip1, js, c-shared or c-archive")
	f.StringVarP(&flags.platform, "platform", "p", "", "target platform as os/arch (C bindings)")
	f.StringVar(&flags.opts.GOOS, "os", "", "target operating system (C bindings)")
	f.StringVar(&flags.opts.GOARCH, "arch", "", "target architecture (C bindings)")
	f.StringVarP(&flags.opts.Output, "output", "o", "", "output file path")
	f.StringVar(&flags.opts.OutDir, "out-dir", "", "output directory (default: dist)")
	f.StringVar(&flags.opts.ZigVersion, "zig-version", "", "zig compiler version")
	f.StringSliceVar(&flags.opts.BuildFlags, "flags", nil, "additional go build flags")
	f.BoolVar(&flags.opts.Pack, "pack", false, "create archive after build")
	f.BoolVarP(&flags.opts.Strip, "strip", "s", false, "strip symbols")
	f.BoolVarP(&flags.opts.Interactive, "interactive", "i", false, "interactive mode")
	f.IntVarP(&flags.jobs, "jobs", "j", 0, "parallel builds (default: GOMAXPROCS)")
	f.BoolVarP(&flags.watch, "watch", "w", false, "rebuild when Go sources change")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets, err := loadOptions(cmd, cfg, args)
	if err != nil {
		return err
	}

	for i, o := range targets {
		if o.Interactive || o.Binding == "" {
			if targets[i], err = tui.SelectTarget(o); err != nil {
				return fmt.Errorf("prompt: %w", err)
			}
		}
	}

	root, err := build.FindModuleRoot()
	if err != nil {
		return err
	}

	r := newRunner(root, jobs(cmd, cfg))
	if !flags.watch {
		_, err := r.Run(cmd.Context(), targets)
		return err
	}

	rebuild := func(ctx context.Context) error {
		_, err := r.Run(ctx, targets)
		return err
	}
	if err := rebuild(cmd.Context()); err != nil {
		ui.Warn("initial build failed: %v", err)
	}
	ui.Watching(root)
	return build.Watch(cmd.Context(), root, build.DefaultDebounce, logger, rebuild)
}

func newRunner(root string, jobs int) *build.Runner {
	return &build.Runner{
		Root: root,
		Jobs: jobs,
		Log:  logger,
		OnStart: func(idx, total int, o *build.Options) {
			ui.Target(idx, total, o.Name)
			ui.Building(o.Target())
		},
		OnDone: func(res *build.Result, o *build.Options, err error) {
			if err != nil {
				ui.BuildFailed(o.Name, err)
				return
			}
			ui.Built(res.Output, res.Duration)
			if res.Archive != "" {
				ui.Label("archive", res.Archive)
			}
		},
	}
}

func loadConfig() (*build.Config, error) {
	cfg, err := build.LoadConfig(flags.config)
	if errors.Is(err, build.ErrConfigNotFound) && flags.config == "" {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadOptions resolves the build targets. Bindings named on the command
// line take precedence over config targets; each inherits the config
// defaults.
func loadOptions(cmd *cobra.Command, cfg *build.Config, args []string) ([]*build.Options, error) {
	var targets []*build.Options

	switch {
	case len(args) > 0:
		for _, arg := range args {
			b, err := build.ParseBinding(arg)
			if err != nil {
				return nil, err
			}
			o := defaults(cfg)
			o.Binding = b
			targets = append(targets, o)
		}
	case cfg != nil:
		var err error
		if targets, err = cfg.ToOptions(flags.targets); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	default:
		targets = []*build.Options{{}}
	}

	if cmd.Flags().Changed("output") && len(targets) > 1 {
		return nil, errors.New("--output needs a single target")
	}
	for _, o := range targets {
		if err := applyFlagOverrides(cmd, o); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

func defaults(cfg *build.Config) *build.Options {
	if cfg == nil {
		return &build.Options{}
	}
	return cfg.Defaults()
}

func applyFlagOverrides(cmd *cobra.Command, o *build.Options) error {
	f := cmd.Flags()

	if f.Changed("binding") {
		b, err := build.ParseBinding(flags.binding)
		if err != nil {
			return err
		}
		o.Binding = b
	}
	if f.Changed("platform") {
		p, err := target.Parse(flags.platform)
		if err != nil {
			return err
		}
		o.GOOS, o.GOARCH = p.GOOS, p.GOARCH
	}
	if f.Changed("os") {
		o.GOOS = flags.opts.GOOS
	}
	if f.Changed("arch") {
		o.GOARCH = flags.opts.GOARCH
	}
	if f.Changed("output") {
		o.Output = flags.opts.Output
	}
	if f.Changed("out-dir") {
		o.OutDir = flags.opts.OutDir
	}
	if f.Changed("zig-version") {
		o.ZigVersion = flags.opts.ZigVersion
	}
	if f.Changed("flags") {
		o.BuildFlags = flags.opts.BuildFlags
	}
	if f.Changed("pack") {
		o.Pack = flags.opts.Pack
	}
	if f.Changed("strip") {
		o.Strip = flags.opts.Strip
	}
	if f.Changed("interactive") {
		o.Interactive = flags.opts.Interactive
	}
	if f.Changed("verbose") {
		o.Verbose = verbose
	}
	return nil
}

func jobs(cmd *cobra.Command, cfg *build.Config) int {
	if cmd.Flags().Changed("jobs") || cfg == nil {
		return flags.jobs
	}
	return cfg.Default.Jobs
}
