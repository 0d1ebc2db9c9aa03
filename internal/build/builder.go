package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qntx/sumx/internal/archive"
	"github.com/qntx/sumx/internal/logging"
	"github.com/qntx/sumx/internal/zig"
)

const (
	dirPerm = 0o755
	modFile = "go.mod"
)

var ErrNoModule = errors.New("go.mod not found")

// Result describes a finished build.
type Result struct {
	Options  *Options
	Output   string
	Archive  string
	Duration time.Duration
}

// Builder runs go build for one binding.
type Builder struct {
	opts    *Options
	root    string
	zigPath string
	goBin   string
	stdout  io.Writer
	stderr  io.Writer
	log     *zap.Logger
}

// New creates a Builder for opts rooted at the module directory root.
// zigPath is the Zig installation used as C compiler; empty means the
// default cgo toolchain.
func New(root, zigPath string, opts *Options, log *zap.Logger) *Builder {
	return &Builder{
		opts:    opts,
		root:    root,
		zigPath: zigPath,
		goBin:   "go",
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		log:     logging.OrNop(log),
	}
}

// SetOutput redirects the go command's output.
func (b *Builder) SetOutput(stdout, stderr io.Writer) {
	b.stdout, b.stderr = stdout, stderr
}

// Run builds the binding and packs it when requested.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	output, err := filepath.Abs(b.opts.Output)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(output), dirPerm); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	env := b.Env()
	args := b.Args(output)
	logf := b.log.Debug
	if b.opts.Verbose {
		logf = b.log.Info
	}
	logf("go build",
		zap.String("target", b.opts.Target()),
		zap.Strings("env", env),
		zap.String("args", strings.Join(args, " ")),
		zap.String("dir", b.root))

	cmd := exec.CommandContext(ctx, b.goBin, args...)
	cmd.Dir = b.root
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = b.stdout
	cmd.Stderr = b.stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go build: %w", err)
	}

	res := &Result{Options: b.opts, Output: b.opts.Output}
	if b.opts.Pack {
		path, err := archive.Create(b.opts.PackSource(), b.opts.GOOS, b.opts.GOARCH)
		if err != nil {
			return nil, fmt.Errorf("create archive: %w", err)
		}
		logf("packed", zap.String("archive", path))
		res.Archive = path
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Env returns the environment overrides for the build.
func (b *Builder) Env() []string {
	env := []string{
		"GOOS=" + b.opts.GOOS,
		"GOARCH=" + b.opts.GOARCH,
	}

	if !b.opts.Binding.NeedsCgo() {
		return append(env, "CGO_ENABLED=0")
	}

	env = append(env, "CGO_ENABLED=1")
	if b.zigPath != "" {
		t := b.opts.ZigTarget()
		env = append(env,
			"CC="+b.zigCmd("cc", t),
			"CXX="+b.zigCmd("c++", t),
		)
	}
	return env
}

// Args returns the go command arguments writing to output.
func (b *Builder) Args(output string) []string {
	args := []string{"build"}

	if mode := b.opts.Binding.BuildMode(); mode != "" {
		args = append(args, "-buildmode="+mode)
	}
	args = append(args, "-o", output)
	if ldflags := b.ldflags(); ldflags != "" {
		args = append(args, "-ldflags="+ldflags)
	}

	args = append(args, b.opts.BuildFlags...)
	return append(args, b.opts.Binding.Package())
}

func (b *Builder) ldflags() string {
	var flags []string
	if b.opts.Strip {
		flags = append(flags, "-s", "-w")
	}

	// Cross-compiling to darwin requires -w to avoid dsymutil issues
	if b.opts.Binding.NeedsCgo() && b.opts.GOOS == "darwin" && runtime.GOOS != "darwin" && !b.opts.Strip {
		flags = append(flags, "-w")
	}
	return strings.Join(flags, " ")
}

func (b *Builder) zigCmd(compiler, target string) string {
	return fmt.Sprintf("%s %s -target %s", zig.Binary(b.zigPath), compiler, target)
}

// FindModuleRoot returns the directory holding the nearest go.mod.
func FindModuleRoot() (string, error) {
	path := findUp(modFile)
	if path == "" {
		return "", ErrNoModule
	}
	return filepath.Dir(path), nil
}
