package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const ConfigFile = "sumx.toml"

var ErrConfigNotFound = errors.New("config file not found")

// Config represents sumx.toml.
type Config struct {
	Default ConfigDefault  `toml:"default"`
	Targets []ConfigTarget `toml:"target"`
}

// ConfigDefault holds values inherited by every target unless overridden.
type ConfigDefault struct {
	ZigVersion string   `toml:"zig-version"`
	OutDir     string   `toml:"out-dir"`
	Strip      bool     `toml:"strip"`
	Pack       bool     `toml:"pack"`
	Flags      []string `toml:"flags"`
	Jobs       int      `toml:"jobs"`
	Verbose    bool     `toml:"verbose"`
}

// ConfigTarget defines one binding build.
type ConfigTarget struct {
	Name    string `toml:"name"`
	Binding string `toml:"binding"`
	OS      string `toml:"os"`
	Arch    string `toml:"arch"`

	Output string `toml:"output"`
	OutDir string `toml:"out-dir"`
	Pack   bool   `toml:"pack"`

	ZigVersion string   `toml:"zig-version"`
	Strip      bool     `toml:"strip"`
	Flags      []string `toml:"flags"`

	Verbose bool `toml:"verbose"`
}

// LoadConfig loads path, or searches upward from the working directory
// when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		if path = findConfig(); path == "" {
			return nil, ErrConfigNotFound
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse: unknown key %q", undecoded[0].String())
	}
	return &cfg, nil
}

func findConfig() string {
	return findUp(ConfigFile)
}

// findUp returns the first name found walking up from the working directory.
func findUp(name string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ToOptions converts the named targets, or all targets when names is empty.
func (c *Config) ToOptions(names []string) ([]*Options, error) {
	targets, err := c.selectTargets(names)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return []*Options{c.Defaults()}, nil
	}

	opts := make([]*Options, len(targets))
	for i, t := range targets {
		opts[i] = c.toOptions(t)
	}
	return opts, nil
}

func (c *Config) selectTargets(names []string) ([]*ConfigTarget, error) {
	if len(names) == 0 {
		targets := make([]*ConfigTarget, len(c.Targets))
		for i := range c.Targets {
			targets[i] = &c.Targets[i]
		}
		return targets, nil
	}

	targets := make([]*ConfigTarget, 0, len(names))
	for _, name := range names {
		found := false
		for i := range c.Targets {
			if c.Targets[i].Name == name {
				targets = append(targets, &c.Targets[i])
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("target %q not found", name)
		}
	}
	return targets, nil
}

// Defaults returns options carrying only the [default] table.
func (c *Config) Defaults() *Options {
	d := &c.Default
	return &Options{
		OutDir:     d.OutDir,
		Pack:       d.Pack,
		ZigVersion: d.ZigVersion,
		Strip:      d.Strip,
		BuildFlags: mergeSlices(d.Flags, nil),
		Verbose:    d.Verbose,
	}
}

func (c *Config) toOptions(t *ConfigTarget) *Options {
	d := &c.Default
	return &Options{
		Name:    t.Name,
		Binding: Binding(t.Binding),
		GOOS:    t.OS,
		GOARCH:  t.Arch,

		Output: t.Output,
		OutDir: or(t.OutDir, d.OutDir),
		Pack:   d.Pack || t.Pack,

		ZigVersion: or(t.ZigVersion, d.ZigVersion),
		Strip:      d.Strip || t.Strip,
		BuildFlags: mergeSlices(d.Flags, t.Flags),

		Verbose: d.Verbose || t.Verbose,
	}
}

// mergeSlices returns base followed by extra in a fresh slice, so targets
// never share the default's backing array.
func mergeSlices(base, extra []string) []string {
	if len(base)+len(extra) == 0 {
		return nil
	}
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
