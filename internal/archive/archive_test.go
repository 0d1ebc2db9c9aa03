package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"file.tar.gz", TarGz},
		{"file.tgz", TarGz},
		{"file.TAR.GZ", TarGz},
		{"file.tar.xz", TarXz},
		{"file.txz", TarXz},
		{"file.zip", Zip},
		{"file.ZIP", Zip},
		{"file", TarGz},
		{"file.unknown", TarGz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.name); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFormat_Ext(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{TarGz, ".tar.gz"},
		{TarXz, ".tar.xz"},
		{Zip, ".zip"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.format.Ext(); got != tt.want {
				t.Errorf("Format.Ext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForOS(t *testing.T) {
	tests := []struct {
		goos string
		want Format
	}{
		{"windows", Zip},
		{"linux", TarGz},
		{"darwin", TarGz},
		{"freebsd", TarGz},
		{"wasip1", TarXz},
		{"js", TarXz},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			if got := ForOS(tt.goos); got != tt.want {
				t.Errorf("ForOS(%q) = %v, want %v", tt.goos, got, tt.want)
			}
		})
	}
}

func TestSafe(t *testing.T) {
	dst := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid path", "subdir/file.txt", false},
		{"path traversal up", "../etc/passwd", true},
		{"path traversal nested", "subdir/../../etc/passwd", true},
		{"double dots in name", "file..txt", false},
		{"simple file", "file.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := safe(dst, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("safe(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestExtract_TarGz(t *testing.T) {
	srcDir := t.TempDir()
	tarPath := filepath.Join(srcDir, "test.tar.gz")
	createTestTarGz(t, tarPath, map[string]string{
		"root/file1.txt":        "content1",
		"root/subdir/file2.txt": "content2",
	})

	dstDir := t.TempDir()
	if err := Extract(tarPath, dstDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	assertFileContent(t, filepath.Join(dstDir, "file1.txt"), "content1")
	assertFileContent(t, filepath.Join(dstDir, "subdir", "file2.txt"), "content2")
}

func TestExtract_Zip(t *testing.T) {
	srcDir := t.TempDir()
	zipPath := filepath.Join(srcDir, "test.zip")
	createTestZip(t, zipPath, map[string]string{
		"root/file1.txt":        "content1",
		"root/subdir/file2.txt": "content2",
	})

	dstDir := t.TempDir()
	if err := Extract(zipPath, dstDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	assertFileContent(t, filepath.Join(dstDir, "file1.txt"), "content1")
	assertFileContent(t, filepath.Join(dstDir, "subdir", "file2.txt"), "content2")
}

func TestExtract_NoStrip(t *testing.T) {
	srcDir := t.TempDir()
	tarPath := filepath.Join(srcDir, "test.tar.gz")
	createTestTarGz(t, tarPath, map[string]string{
		"dir1/file1.txt": "content1",
		"dir2/file2.txt": "content2",
	})

	dstDir := t.TempDir()
	if err := Extract(tarPath, dstDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	assertFileContent(t, filepath.Join(dstDir, "dir1", "file1.txt"), "content1")
	assertFileContent(t, filepath.Join(dstDir, "dir2", "file2.txt"), "content2")
}

func TestCreate_TarGz(t *testing.T) {
	srcDir := t.TempDir()
	testDir := filepath.Join(srcDir, "libsum")
	if err := os.MkdirAll(filepath.Join(testDir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(testDir, "lib", "libsum.so"), []byte("elf"), 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := Create(testDir, "linux", "amd64")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expected := filepath.Join(srcDir, "libsum-linux-amd64.tar.gz")
	if path != expected {
		t.Errorf("path = %q, want %q", path, expected)
	}

	dstDir := t.TempDir()
	if err := Extract(path, dstDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	assertFileContent(t, filepath.Join(dstDir, "lib", "libsum.so"), "elf")
}

func TestCreate_Zip(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "sum.dll")
	if err := os.WriteFile(srcFile, []byte("pe"), 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := Create(srcFile, "windows", "amd64")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expected := filepath.Join(srcDir, "sum.dll-windows-amd64.zip")
	if path != expected {
		t.Errorf("path = %q, want %q", path, expected)
	}

	dstDir := t.TempDir()
	if err := Extract(path, dstDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	assertFileContent(t, filepath.Join(dstDir, "sum.dll"), "pe")
}

func TestCreate_TarXz(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "sum.wasm")
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if err := os.WriteFile(srcFile, wasm, 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := Create(srcFile, "wasip1", "wasm")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expected := filepath.Join(srcDir, "sum.wasm-wasip1-wasm.tar.xz")
	if path != expected {
		t.Errorf("path = %q, want %q", path, expected)
	}

	dstDir := t.TempDir()
	if err := Extract(path, dstDir); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dstDir, "sum.wasm"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, wasm) {
		t.Errorf("extracted = %x, want %x", got, wasm)
	}
}

func TestCreate_Missing(t *testing.T) {
	if _, err := Create(filepath.Join(t.TempDir(), "nope"), "linux", "amd64"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Create() error = %v, want ErrNotExist", err)
	}
}

func TestExtract_PathTraversal(t *testing.T) {
	srcDir := t.TempDir()
	tarPath := filepath.Join(srcDir, "evil.tar.gz")
	createTestTarGz(t, tarPath, map[string]string{
		"root/ok.txt":           "fine",
		"root/../../escape.txt": "nope",
	})

	err := Extract(tarPath, t.TempDir())
	if !errors.Is(err, ErrPathTraversal) {
		t.Errorf("Extract() error = %v, want ErrPathTraversal", err)
	}
}

func TestExtract_SymlinkEscape(t *testing.T) {
	outside := t.TempDir()

	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{
			name: "absolute target",
			entries: []tarEntry{
				{name: "link", link: outside},
				{name: "link/evil", content: "nope"},
			},
		},
		{
			name: "relative target leaving dest",
			entries: []tarEntry{
				{name: "lib/ok.txt", content: "fine"},
				{name: "lib/link", link: "../../" + filepath.Base(outside)},
				{name: "lib/link/evil", content: "nope"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tarPath := filepath.Join(t.TempDir(), "evil.tar.gz")
			createTestTar(t, tarPath, tt.entries)

			err := Extract(tarPath, t.TempDir())
			if !errors.Is(err, ErrPathTraversal) {
				t.Errorf("Extract() error = %v, want ErrPathTraversal", err)
			}
			if _, err := os.Stat(filepath.Join(outside, "evil")); !os.IsNotExist(err) {
				t.Error("Extract() wrote outside the destination")
			}
		})
	}
}

func TestExtract_SymlinkInside(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need developer mode on windows")
	}
	tarPath := filepath.Join(t.TempDir(), "lib.tar.gz")
	createTestTar(t, tarPath, []tarEntry{
		{name: "lib/libsum.so.1", content: "elf"},
		{name: "lib/libsum.so", link: "libsum.so.1"},
	})

	dest := t.TempDir()
	if err := Extract(tarPath, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	assertFileContent(t, filepath.Join(dest, "libsum.so"), "elf")
}

func TestSafeLink(t *testing.T) {
	dest := filepath.Join("tmp", "dest")
	tests := []struct {
		path, linkname string
		wantErr        bool
	}{
		{filepath.Join(dest, "a"), "b", false},
		{filepath.Join(dest, "lib", "a"), "../b", false},
		{filepath.Join(dest, "a"), ".", false},
		{filepath.Join(dest, "a"), "..", true},
		{filepath.Join(dest, "lib", "a"), "../../x", true},
		{filepath.Join(dest, "a"), "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.linkname, func(t *testing.T) {
			err := safeLink(dest, tt.path, tt.linkname)
			if (err != nil) != tt.wantErr {
				t.Errorf("safeLink(%q, %q) error = %v, wantErr %v", tt.path, tt.linkname, err, tt.wantErr)
			}
		})
	}
}

func TestResolveSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("copies target", func(t *testing.T) {
		link := filepath.Join(dir, "copy.txt")
		if err := resolveSymlinks([]pendingSymlink{{"real.txt", link}}); err != nil {
			t.Fatalf("resolveSymlinks() error = %v", err)
		}
		assertFileContent(t, link, "data")
	})

	t.Run("missing target", func(t *testing.T) {
		err := resolveSymlinks([]pendingSymlink{{"gone.txt", filepath.Join(dir, "broken")}})
		if err == nil {
			t.Error("resolveSymlinks() should report a missing target")
		}
	})
}

func TestCommonRoot(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"empty", nil, ""},
		{"single root", []string{"zig/", "zig/zig", "zig/lib/std.zig"}, "zig/"},
		{"two roots", []string{"a/x", "b/y"}, ""},
		{"root file", []string{"sum.wasm"}, ""},
		{"mixed", []string{"dir/x", "top.txt"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commonRoot(tt.names); got != tt.want {
				t.Errorf("commonRoot(%v) = %q, want %q", tt.names, got, tt.want)
			}
		})
	}
}

func TestDownloadWith(t *testing.T) {
	srcDir := t.TempDir()
	tarPath := filepath.Join(srcDir, "zig.tar.gz")
	createTestTarGz(t, tarPath, map[string]string{
		"zig-linux/zig":     "#!/bin/sh",
		"zig-linux/lib/c.h": "int x;",
	})
	payload, err := os.ReadFile(tarPath)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zig.tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	t.Run("extracts", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "zig", "0.15.0")
		if err := DownloadWith(context.Background(), srv.Client(), srv.URL+"/zig.tar.gz", dst, false); err != nil {
			t.Fatalf("DownloadWith() error = %v", err)
		}
		assertFileContent(t, filepath.Join(dst, "zig"), "#!/bin/sh")
		assertFileContent(t, filepath.Join(dst, "lib", "c.h"), "int x;")
	})

	t.Run("http error", func(t *testing.T) {
		err := DownloadWith(context.Background(), srv.Client(), srv.URL+"/missing.tar.gz", t.TempDir(), false)
		if err == nil {
			t.Fatal("DownloadWith() should fail on 404")
		}
	})
}

func createTestTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

type tarEntry struct {
	name, content, link string
}

// createTestTar writes entries in order; a non-empty link makes a symlink.
func createTestTar(t *testing.T, path string, entries []tarEntry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.content))}
		if e.link != "" {
			hdr = &tar.Header{Name: e.name, Mode: 0o777, Typeflag: tar.TypeSymlink, Linkname: e.link}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if e.link == "" {
			if _, err := tw.Write([]byte(e.content)); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func createTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatal(err)
		}
	}
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("failed to read %q: %v", path, err)
		return
	}
	if string(data) != want {
		t.Errorf("file %q content = %q, want %q", path, string(data), want)
	}
}
