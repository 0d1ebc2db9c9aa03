// Package zig manages the cached Zig toolchain that sumx uses as the C
// compiler when cross-compiling the C ABI binding.
package zig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/qntx/sumx/internal/archive"
	"github.com/qntx/sumx/internal/ui"
)

const (
	DefaultVersion = "0.15.1"
	exeSuffix      = ".exe"

	// CacheEnv overrides the cache root.
	CacheEnv = "SUMX_CACHE_DIR"
)

// IndexURL is the Zig release index. Tests point it at a local server.
var IndexURL = "https://ziglang.org/download/index.json"

var (
	hostArch = map[string]string{
		"amd64": "x86_64", "386": "x86", "arm64": "aarch64", "arm": "armv7a",
	}
	hostOS = map[string]string{
		"linux": "linux", "darwin": "macos", "windows": "windows",
	}

	targetArch = map[string]string{
		"amd64":   "x86_64",
		"386":     "x86",
		"arm64":   "aarch64",
		"arm":     "arm",
		"riscv64": "riscv64",
		"loong64": "loongarch64",
		"ppc64le": "powerpc64le",
		"s390x":   "s390x",
	}
	targetOS = map[string]string{
		"darwin":  "macos",
		"windows": "windows-gnu",
		"freebsd": "freebsd",
		"netbsd":  "netbsd",
	}
)

// Index is the Zig download index keyed by version.
type Index map[string]Release

// Release is one Zig version and its per-host builds.
type Release struct {
	Version string           `json:"version,omitempty"`
	Date    string           `json:"date,omitempty"`
	Builds  map[string]Build `json:"-"`
}

// Build is a downloadable Zig archive for one host.
type Build struct {
	Tarball string `json:"tarball"`
	Shasum  string `json:"shasum"`
	Size    string `json:"size"`
}

var metadataKeys = map[string]bool{
	"version": true, "date": true, "notes": true,
	"src": true, "bootstrap": true, "stdDocs": true, "docs": true,
}

func (r *Release) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["version"]; ok {
		_ = json.Unmarshal(v, &r.Version)
	}
	if v, ok := raw["date"]; ok {
		_ = json.Unmarshal(v, &r.Date)
	}

	r.Builds = make(map[string]Build)
	for key, val := range raw {
		if metadataKeys[key] {
			continue
		}
		var b Build
		if json.Unmarshal(val, &b) == nil && b.Tarball != "" {
			r.Builds[key] = b
		}
	}
	return nil
}

// Ensure returns the installation directory for version, downloading it
// first if it is not cached.
func Ensure(ctx context.Context, version string) (string, error) {
	if version == "" {
		version = DefaultVersion
	}

	dir := Path(version)
	if isInstalled(dir) {
		return dir, nil
	}

	ui.Info("fetching zig version index")
	index, err := fetchIndex(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch index: %w", err)
	}

	release, ok := index[version]
	if !ok {
		return "", fmt.Errorf("zig version %q not found", version)
	}

	host := hostPlatform()
	build, ok := release.Builds[host]
	if !ok {
		return "", fmt.Errorf("no zig %s build for %s", version, host)
	}

	ui.Info("downloading zig %s for %s", version, host)
	if err := archive.Download(ctx, build.Tarball, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("download: %w", err)
	}
	if !isInstalled(dir) {
		return "", fmt.Errorf("zig %s: archive has no zig binary", version)
	}
	return dir, nil
}

// Path returns the cache path for a Zig version.
func Path(version string) string {
	return filepath.Join(baseDir(), "zig", version)
}

// Binary returns the zig executable inside an installation directory.
func Binary(dir string) string {
	bin := filepath.Join(dir, "zig")
	if runtime.GOOS == "windows" {
		bin += exeSuffix
	}
	return bin
}

// Installed returns all cached Zig versions.
func Installed() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(baseDir(), "zig"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}

// Remove deletes one cached version. It returns os.ErrNotExist when the
// version is not installed.
func Remove(version string) error {
	dir := Path(version)
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// RemoveAll deletes every cached version.
func RemoveAll() error {
	return os.RemoveAll(filepath.Join(baseDir(), "zig"))
}

// Target returns the Zig target triple for a Go platform. Static Linux
// builds use musl so the result has no glibc dependency.
func Target(goos, goarch string, static bool) string {
	arch := targetArch[goarch]
	if arch == "" {
		arch = goarch
	}
	if goos == "linux" {
		return arch + "-" + linuxABI(goarch, static)
	}
	if v, ok := targetOS[goos]; ok {
		return arch + "-" + v
	}
	return arch + "-" + goos
}

func linuxABI(goarch string, static bool) string {
	arm := goarch == "arm"
	switch {
	case arm && static:
		return "linux-musleabihf"
	case arm:
		return "linux-gnueabihf"
	case static:
		return "linux-musl"
	default:
		return "linux-gnu"
	}
}

func isInstalled(dir string) bool {
	_, err := os.Stat(Binary(dir))
	return err == nil
}

func baseDir() string {
	if dir := os.Getenv(CacheEnv); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "sumx")
	}
	return filepath.Join(os.TempDir(), "sumx")
}

func fetchIndex(ctx context.Context) (Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, IndexURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var index Index
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return index, nil
}

func hostPlatform() string {
	arch := hostArch[runtime.GOARCH]
	if arch == "" {
		arch = runtime.GOARCH
	}
	goos := hostOS[runtime.GOOS]
	if goos == "" {
		goos = runtime.GOOS
	}
	return arch + "-" + goos
}
