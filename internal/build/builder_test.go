package build

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/qntx/sumx/internal/archive"
)

// fakeGo writes a script standing in for the go command. It creates the
// file named by -o and records its arguments next to it.
func fakeGo(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake go command needs a POSIX shell")
	}
	script := `#!/bin/sh
args="$*"
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then
		shift
		echo "artifact" > "$1"
		echo "$args" > "$1.args"
	fi
	shift
done
`
	path := filepath.Join(t.TempDir(), "go")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func normalized(o Options) *Options {
	o.Normalize()
	return &o
}

func TestBuilder_Env(t *testing.T) {
	t.Run("wasm disables cgo", func(t *testing.T) {
		b := New(".", "", normalized(Options{Binding: BindingWASI}), nil)
		env := b.Env()
		for _, want := range []string{"GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0"} {
			if !slices.Contains(env, want) {
				t.Errorf("Env() = %v, missing %s", env, want)
			}
		}
	})

	t.Run("c binding enables cgo", func(t *testing.T) {
		b := New(".", "", normalized(Options{Binding: BindingCShared}), nil)
		env := b.Env()
		if !slices.Contains(env, "CGO_ENABLED=1") {
			t.Errorf("Env() = %v, missing CGO_ENABLED=1", env)
		}
		for _, e := range env {
			if strings.HasPrefix(e, "CC=") {
				t.Errorf("Env() sets %s without a zig path", e)
			}
		}
	})

	t.Run("zig cross compiler", func(t *testing.T) {
		o := normalized(Options{Binding: BindingCArchive, GOOS: "linux", GOARCH: "arm64"})
		b := New(".", "/opt/zig", o, nil)
		env := b.Env()

		var cc string
		for _, e := range env {
			if v, ok := strings.CutPrefix(e, "CC="); ok {
				cc = v
			}
		}
		if !strings.Contains(cc, "cc -target aarch64-linux-gnu") {
			t.Errorf("CC = %q, want zig cc targeting aarch64-linux-gnu", cc)
		}
	})
}

func TestBuilder_Args(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "wasi reactor",
			opts: Options{Binding: BindingWASI},
			want: []string{"build", "-buildmode=c-shared", "-o", "out", "./cmd/sumwasm"},
		},
		{
			name: "js",
			opts: Options{Binding: BindingJS, Strip: true},
			want: []string{"build", "-o", "out", "-ldflags=-s -w", "./cmd/sumjs"},
		},
		{
			name: "c-archive with flags",
			opts: Options{Binding: BindingCArchive, GOOS: "linux", GOARCH: "amd64", BuildFlags: []string{"-trimpath"}},
			want: []string{"build", "-buildmode=c-archive", "-o", "out", "-trimpath", "./cmd/sumcapi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(".", "", normalized(tt.opts), nil)
			if got := b.Args("out"); !slices.Equal(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder_Run(t *testing.T) {
	goBin := fakeGo(t)
	root := t.TempDir()

	t.Run("builds", func(t *testing.T) {
		o := normalized(Options{Binding: BindingWASI, OutDir: filepath.Join(root, "dist")})
		b := New(root, "", o, nil)
		b.goBin = goBin
		b.SetOutput(io.Discard, io.Discard)

		res, err := b.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Output != o.Output || res.Archive != "" {
			t.Errorf("Result = %+v", res)
		}

		args, err := os.ReadFile(o.Output + ".args")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(args), "./cmd/sumwasm") {
			t.Errorf("go called with %q", args)
		}
	})

	t.Run("packs", func(t *testing.T) {
		o := normalized(Options{Binding: BindingJS, OutDir: filepath.Join(root, "packed"), Pack: true})
		b := New(root, "", o, nil)
		b.goBin = goBin
		b.SetOutput(io.Discard, io.Discard)

		res, err := b.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !strings.HasSuffix(res.Archive, "sum-js-js-wasm"+archive.TarXz.Ext()) {
			t.Errorf("Archive = %q, want a tar.xz named after the platform", res.Archive)
		}
		if _, err := os.Stat(res.Archive); err != nil {
			t.Errorf("archive missing: %v", err)
		}
	})

	t.Run("go fails", func(t *testing.T) {
		o := normalized(Options{Binding: BindingWASI, OutDir: filepath.Join(root, "fail")})
		b := New(root, "", o, nil)
		b.goBin = filepath.Join(root, "missing-go")

		if _, err := b.Run(context.Background()); err == nil {
			t.Error("Run() should fail when go cannot be executed")
		}
	})
}

func TestFindModuleRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	got, err := FindModuleRoot()
	if err != nil {
		t.Fatalf("FindModuleRoot() error = %v", err)
	}
	gotReal, _ := filepath.EvalSymlinks(got)
	wantReal, _ := filepath.EvalSymlinks(root)
	if gotReal != wantReal {
		t.Errorf("FindModuleRoot() = %q, want %q", got, root)
	}
}
