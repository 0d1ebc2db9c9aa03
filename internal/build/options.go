package build

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qntx/sumx/internal/target"
	"github.com/qntx/sumx/internal/zig"
)

// ----------------------------------------------------------------------------
// Binding
// ----------------------------------------------------------------------------

// Binding selects which host-facing wrapper around sum gets built.
type Binding string

const (
	BindingWASI     Binding = "wasip1"
	BindingJS       Binding = "js"
	BindingCShared  Binding = "c-shared"
	BindingCArchive Binding = "c-archive"
)

// Bindings lists every binding in display order.
var Bindings = []Binding{BindingWASI, BindingJS, BindingCShared, BindingCArchive}

var bindingPackages = map[Binding]string{
	BindingWASI:     "./cmd/sumwasm",
	BindingJS:       "./cmd/sumjs",
	BindingCShared:  "./cmd/sumcapi",
	BindingCArchive: "./cmd/sumcapi",
}

func (b Binding) Valid() bool {
	_, ok := bindingPackages[b]
	return ok
}

// Package returns the main package of the binding, relative to the module root.
func (b Binding) Package() string { return bindingPackages[b] }

// IsWasm reports whether the binding compiles to WebAssembly.
func (b Binding) IsWasm() bool { return b == BindingWASI || b == BindingJS }

// NeedsCgo reports whether the binding exports through cgo.
func (b Binding) NeedsCgo() bool { return b == BindingCShared || b == BindingCArchive }

// Platform returns the fixed platform of a wasm binding, or the zero value
// for bindings that build for any native platform.
func (b Binding) Platform() target.Platform {
	switch b {
	case BindingWASI:
		return target.WASI
	case BindingJS:
		return target.JS
	default:
		return target.Platform{}
	}
}

// BuildMode returns the go build -buildmode value, or "" for the default.
// The WASI binding is a reactor so its exports stay callable after init.
func (b Binding) BuildMode() string {
	switch b {
	case BindingWASI, BindingCShared:
		return "c-shared"
	case BindingCArchive:
		return "c-archive"
	default:
		return ""
	}
}

// Artifact returns the output file name for goos.
func (b Binding) Artifact(goos string) string {
	switch b {
	case BindingWASI:
		return "sum.wasm"
	case BindingJS:
		return "sum_js.wasm"
	case BindingCArchive:
		return "libsum.a"
	}
	switch goos {
	case "windows":
		return "sum.dll"
	case "darwin":
		return "libsum.dylib"
	default:
		return "libsum.so"
	}
}

// ParseBinding converts a name to a Binding.
func ParseBinding(s string) (Binding, error) {
	b := Binding(s)
	if !b.Valid() {
		return "", fmt.Errorf("invalid binding: %q (want wasip1, js, c-shared or c-archive)", s)
	}
	return b, nil
}

// ----------------------------------------------------------------------------
// Options
// ----------------------------------------------------------------------------

const DefaultOutDir = "dist"

// Options configures a single binding build.
type Options struct {
	// Identity
	Name    string
	Binding Binding
	GOOS    string
	GOARCH  string

	// Output
	Output string
	OutDir string
	Pack   bool

	// Toolchain
	ZigVersion string
	Strip      bool
	BuildFlags []string

	// Behavior
	Interactive bool
	Verbose     bool

	// packDir is set when Output was derived, so the whole artifact
	// directory (including the generated C header) is packed.
	packDir bool
}

// Normalize applies defaults for unset fields.
func (o *Options) Normalize() {
	if p := o.Binding.Platform(); p.GOOS != "" {
		if o.GOOS == "" {
			o.GOOS = p.GOOS
		}
		if o.GOARCH == "" {
			o.GOARCH = p.GOARCH
		}
	}
	host := target.Host()
	if o.GOOS == "" {
		o.GOOS = host.GOOS
	}
	if o.GOARCH == "" {
		o.GOARCH = host.GOARCH
	}
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if o.Name == "" {
		o.Name = o.Target()
	}
	if o.Output == "" && o.Binding.Valid() {
		o.Output = filepath.Join(o.artifactDir(), o.Binding.Artifact(o.GOOS))
		o.packDir = true
	}
}

// Validate checks option constraints. Call after Normalize.
func (o *Options) Validate() error {
	if o.Binding == "" {
		return errors.New("no binding selected")
	}
	if !o.Binding.Valid() {
		return fmt.Errorf("invalid binding: %q", o.Binding)
	}

	if p := o.Binding.Platform(); p.GOOS != "" {
		if o.GOOS != p.GOOS || o.GOARCH != p.GOARCH {
			return fmt.Errorf("%s binding requires %s, got %s/%s", o.Binding, p, o.GOOS, o.GOARCH)
		}
		return nil
	}

	if _, ok := target.Find(o.GOOS, o.GOARCH); !ok {
		return fmt.Errorf("%s binding: unsupported platform %s/%s (supported: %s)",
			o.Binding, o.GOOS, o.GOARCH, strings.Join(target.List(), ", "))
	}
	return nil
}

// Target describes the build for display: "c-shared linux/amd64".
func (o *Options) Target() string {
	return fmt.Sprintf("%s %s/%s", o.Binding, o.GOOS, o.GOARCH)
}

// CrossCgo reports whether a C cross compiler is needed.
func (o *Options) CrossCgo() bool {
	if !o.Binding.NeedsCgo() {
		return false
	}
	host := target.Host()
	return o.GOOS != host.GOOS || o.GOARCH != host.GOARCH
}

// ZigTarget returns the Zig target triple used as C cross compiler.
func (o *Options) ZigTarget() string {
	return zig.Target(o.GOOS, o.GOARCH, false)
}

// ZigRelease returns the Zig version the build uses.
func (o *Options) ZigRelease() string {
	if o.ZigVersion == "" {
		return zig.DefaultVersion
	}
	return o.ZigVersion
}

// PackSource returns what --pack archives.
func (o *Options) PackSource() string {
	if o.packDir {
		return filepath.Dir(o.Output)
	}
	return o.Output
}

func (o *Options) artifactDir() string {
	return filepath.Join(o.OutDir, o.GOOS+"-"+o.GOARCH, "sum-"+string(o.Binding))
}
