// Package host loads a compiled sumx WebAssembly binding and calls its sum
// export through wazero.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/qntx/sumx/internal/logging"
)

const (
	exportSum  = "sum"
	exportInit = "_initialize"
	exportMain = "_start"
)

var (
	ErrNoExport  = errors.New("module does not export sum")
	ErrSignature = errors.New("sum must have signature (i32, i32) -> i32")
	ErrCommand   = errors.New("command module: rebuild with -buildmode=c-shared")
)

// Option configures Load.
type Option func(*options)

type options struct {
	log    *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

// WithLogger sets the logger for load and call diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStdout sets where the guest's stdout goes. Discarded by default.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithStderr sets where the guest's stderr goes. Discarded by default.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// Module is an instantiated binding. It is not safe for concurrent use.
type Module struct {
	rt  wazero.Runtime
	mod api.Module
	fn  api.Function
	log *zap.Logger
}

// LoadFile reads path and calls Load.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(ctx, bin, opts...)
}

// Load compiles and instantiates wasm, then runs _initialize if the module
// exports it.
func Load(ctx context.Context, wasm []byte, opts ...Option) (*Module, error) {
	o := options{stdout: io.Discard, stderr: io.Discard}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.log)

	rt := wazero.NewRuntime(ctx)
	m, err := instantiate(ctx, rt, wasm, &o, log)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return m, nil
}

func instantiate(ctx context.Context, rt wazero.Runtime, wasm []byte, o *options, log *zap.Logger) (*Module, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	exports := compiled.ExportedFunctions()
	def, ok := exports[exportSum]
	if !ok {
		return nil, ErrNoExport
	}
	if !isBinaryI32(def) {
		return nil, fmt.Errorf("%w: got %s", ErrSignature, signature(def))
	}
	_, hasInit := exports[exportInit]
	if _, hasMain := exports[exportMain]; hasMain && !hasInit {
		return nil, ErrCommand
	}

	cfg := wazero.NewModuleConfig().
		WithStdout(o.stdout).
		WithStderr(o.stderr).
		WithStartFunctions()

	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	if hasInit {
		log.Debug("running reactor initializer")
		if _, err := mod.ExportedFunction(exportInit).Call(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", exportInit, err)
		}
	}

	log.Debug("module loaded",
		zap.String("name", mod.Name()),
		zap.Int("exports", len(exports)))

	return &Module{rt: rt, mod: mod, fn: mod.ExportedFunction(exportSum), log: log}, nil
}

// Sum calls the module's sum export.
func (m *Module) Sum(ctx context.Context, a, b int32) (int32, error) {
	res, err := m.fn.Call(ctx, api.EncodeI32(a), api.EncodeI32(b))
	if err != nil {
		return 0, fmt.Errorf("call sum: %w", err)
	}
	got := api.DecodeI32(res[0])
	m.log.Debug("sum", zap.Int32("a", a), zap.Int32("b", b), zap.Int32("result", got))
	return got, nil
}

// Close releases the module and its runtime.
func (m *Module) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}

func isBinaryI32(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	return len(params) == 2 && params[0] == api.ValueTypeI32 && params[1] == api.ValueTypeI32 &&
		len(results) == 1 && results[0] == api.ValueTypeI32
}

func signature(def api.FunctionDefinition) string {
	return fmt.Sprintf("(%s) -> (%s)", valueTypes(def.ParamTypes()), valueTypes(def.ResultTypes()))
}

func valueTypes(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}
