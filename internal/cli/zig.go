package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/qntx/sumx/internal/build"
	"github.com/qntx/sumx/internal/ui"
	"github.com/qntx/sumx/internal/zig"
)

type zigFlags struct {
	config string
	force  bool
}

var (
	zFlags zigFlags
	zigCmd = &cobra.Command{
		Use:   "zig",
		Short: "Manage the Zig cross compiler used by C bindings",
		Long: `C bindings built for a platform other than the host use Zig as the
C compiler. Versions are cached under $` + zig.CacheEnv + ` or the user cache
directory, and resolved from the zig-version keys of sumx.toml.`,
	}

	zigUpdateCmd = &cobra.Command{
		Use:   "update [version]",
		Short: "Install the Zig versions the C bindings need",
		Long: `Download and install a Zig compiler version.

Without a version, every version named by a C binding target in sumx.toml
is installed, or the default version when there is no config.
Use --force to re-download even if already installed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runZigUpdate,
	}

	zigListCmd = &cobra.Command{
		Use:   "list",
		Short: "List cached Zig versions and the targets that use them",
		Args:  cobra.NoArgs,
		RunE:  runZigList,
	}

	zigCleanCmd = &cobra.Command{
		Use:   "clean [version]",
		Short: "Remove cached Zig installations",
		Long: `Remove cached Zig compiler installations.
If no version is specified, removes all cached versions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runZigClean,
	}
)

func init() {
	zigCmd.PersistentFlags().StringVarP(&zFlags.config, "config", "c", "", "config file path (default: sumx.toml)")
	zigUpdateCmd.Flags().BoolVarP(&zFlags.force, "force", "f", false, "force re-download")

	zigCmd.AddCommand(zigUpdateCmd, zigListCmd, zigCleanCmd)
	rootCmd.AddCommand(zigCmd)
}

// cgoTarget is a configured C binding and the toolchain it builds with.
type cgoTarget struct {
	name     string
	platform string
	triple   string
	version  string
}

// cgoTargets returns the C binding targets of the config, normalized.
// A missing default config yields none.
func cgoTargets(path string) ([]cgoTarget, error) {
	cfg, err := build.LoadConfig(path)
	if errors.Is(err, build.ErrConfigNotFound) && path == "" {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	opts, err := cfg.ToOptions(nil)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var targets []cgoTarget
	for _, o := range opts {
		if !o.Binding.NeedsCgo() {
			continue
		}
		o.Normalize()
		targets = append(targets, cgoTarget{
			name:     o.Name,
			platform: o.GOOS + "/" + o.GOARCH,
			triple:   o.ZigTarget(),
			version:  o.ZigRelease(),
		})
	}
	return targets, nil
}

// wantedVersions lists the distinct versions the targets need, in order.
func wantedVersions(targets []cgoTarget) []string {
	var versions []string
	for _, t := range targets {
		if !slices.Contains(versions, t.version) {
			versions = append(versions, t.version)
		}
	}
	if len(versions) == 0 {
		versions = []string{zig.DefaultVersion}
	}
	return versions
}

// ----------------------------------------------------------------------------
// Handlers
// ----------------------------------------------------------------------------

func runZigUpdate(cmd *cobra.Command, args []string) error {
	versions := args
	if len(versions) == 0 {
		targets, err := cgoTargets(zFlags.config)
		if err != nil {
			return err
		}
		versions = wantedVersions(targets)
	}

	for _, v := range versions {
		if zFlags.force {
			if err := zig.Remove(v); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", v, err)
			}
		}

		path, err := zig.Ensure(cmd.Context(), v)
		if err != nil {
			return err
		}
		ui.Success("zig %s", v)
		ui.Label("path", path)
	}
	return nil
}

func runZigList(_ *cobra.Command, _ []string) error {
	versions, err := zig.Installed()
	if err != nil {
		return err
	}
	targets, err := cgoTargets(zFlags.config)
	if err != nil {
		return err
	}

	if len(versions) == 0 {
		ui.Info("no zig versions installed")
	} else {
		slices.Sort(versions)
		t := ui.NewTable("VERSION", "PATH")
		for _, v := range versions {
			t.AddRow(v, zig.Path(v))
		}
		t.Render()
	}

	if len(targets) == 0 {
		return nil
	}
	ui.Header("C binding targets")
	t := ui.NewTable("TARGET", "PLATFORM", "ZIG TARGET", "ZIG", "CACHED")
	for _, ct := range targets {
		cached := "no"
		if slices.Contains(versions, ct.version) {
			cached = "yes"
		}
		t.AddRow(ct.name, ct.platform, ct.triple, ct.version, cached)
	}
	t.Render()
	return nil
}

func runZigClean(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cleanAll()
	}
	err := zig.Remove(args[0])
	if errors.Is(err, os.ErrNotExist) {
		ui.Warn("zig %s: not installed", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	ui.Success("removed zig %s", args[0])
	return nil
}

func cleanAll() error {
	versions, err := zig.Installed()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		ui.Info("nothing to clean")
		return nil
	}
	if err := zig.RemoveAll(); err != nil {
		return err
	}
	ui.Success("removed %d version(s)", len(versions))
	return nil
}
