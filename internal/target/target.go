// Package target lists the platforms sumx can build bindings for.
package target

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is a GOOS/GOARCH pair.
type Platform struct {
	GOOS   string
	GOARCH string
}

func (p Platform) String() string { return p.GOOS + "/" + p.GOARCH }

// IsWasm reports whether p is a WebAssembly platform.
func (p Platform) IsWasm() bool { return p.GOARCH == "wasm" }

var (
	WASI = Platform{"wasip1", "wasm"}
	JS   = Platform{"js", "wasm"}
)

// Native lists the platforms the C ABI binding can be cross-compiled for.
var Native = []Platform{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"linux", "386"},
	{"linux", "arm"},
	{"linux", "riscv64"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
	{"windows", "amd64"},
	{"windows", "386"},
	{"windows", "arm64"},
	{"freebsd", "amd64"},
}

// Host returns the platform sumx is running on.
func Host() Platform {
	return Platform{runtime.GOOS, runtime.GOARCH}
}

// Find reports whether goos/goarch is a supported native platform.
func Find(goos, goarch string) (Platform, bool) {
	for _, p := range Native {
		if p.GOOS == goos && p.GOARCH == goarch {
			return p, true
		}
	}
	return Platform{}, false
}

// Parse parses "os/arch".
func Parse(s string) (Platform, error) {
	goos, goarch, ok := strings.Cut(s, "/")
	if !ok || goos == "" || goarch == "" {
		return Platform{}, fmt.Errorf("invalid platform %q (want os/arch)", s)
	}
	return Platform{goos, goarch}, nil
}

// List returns the native platforms as "os/arch" strings.
func List() []string {
	result := make([]string, len(Native))
	for i, p := range Native {
		result[i] = p.String()
	}
	return result
}
