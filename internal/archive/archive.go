// Package archive packs build artifacts and unpacks downloaded toolchains.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/qntx/sumx/internal/ui"
)

const (
	defaultPerm     = 0o755
	maxSymlinkDepth = 10
)

var ErrPathTraversal = errors.New("path traversal detected")

// Format is an archive format.
type Format int

const (
	TarGz Format = iota
	TarXz
	Zip
)

func (f Format) Ext() string {
	return [...]string{".tar.gz", ".tar.xz", ".zip"}[f]
}

func (f Format) String() string {
	return strings.TrimPrefix(f.Ext(), ".")
}

// Detect determines the format from a file name or URL.
func Detect(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return TarXz
	default:
		return TarGz
	}
}

// ForOS returns the preferred format for artifacts built for goos.
// WebAssembly modules compress well, so they get xz.
func ForOS(goos string) Format {
	switch goos {
	case "windows":
		return Zip
	case "wasip1", "js":
		return TarXz
	default:
		return TarGz
	}
}

// ----------------------------------------------------------------------------
// Create
// ----------------------------------------------------------------------------

// Create archives src (a file or directory) next to itself as
// <name>-<goos>-<goarch><ext> and returns the archive path.
func Create(src, goos, goarch string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", err
	}

	format := ForOS(goos)
	dest := filepath.Join(
		filepath.Dir(src),
		fmt.Sprintf("%s-%s-%s%s", filepath.Base(src), goos, goarch, format.Ext()),
	)

	switch format {
	case Zip:
		err = createZip(src, dest, info.IsDir())
	case TarXz:
		err = createTar(src, dest, info.IsDir(), newXzWriter)
	default:
		err = createTar(src, dest, info.IsDir(), newGzipWriter)
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

func newGzipWriter(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil }
func newXzWriter(w io.Writer) (io.WriteCloser, error)   { return xz.NewWriter(w) }

func createTar(src, dest string, isDir bool, compress func(io.Writer) (io.WriteCloser, error)) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer closeInto(f, &err)

	cw, err := compress(f)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	defer closeInto(cw, &err)

	tw := tar.NewWriter(cw)
	defer closeInto(tw, &err)

	if isDir {
		return walkTar(tw, src)
	}
	return addTarFile(tw, src, filepath.Base(src))
}

func walkTar(tw *tar.Writer, root string) error {
	baseDir := filepath.Dir(root)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if info.IsDir() {
			hdr.Name += "/"
		} else if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			hdr.Linkname = link
			hdr.Typeflag = tar.TypeSymlink
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			return copyToWriter(tw, path)
		}
		return nil
	})
}

func addTarFile(tw *tar.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	return copyToWriter(tw, src)
}

func createZip(src, dest string, isDir bool) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer closeInto(f, &err)

	zw := zip.NewWriter(f)
	defer closeInto(zw, &err)

	if !isDir {
		return addZipFile(zw, src, filepath.Base(src))
	}

	baseDir := filepath.Dir(src)
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			_, err := zw.Create(rel + "/")
			return err
		}
		return addZipFile(zw, path, rel)
	})
}

func addZipFile(zw *zip.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	return copyToWriter(w, src)
}

// ----------------------------------------------------------------------------
// Extract
// ----------------------------------------------------------------------------

// Extract unpacks archivePath into destDir. When every entry shares one
// top-level directory, that directory is stripped.
func Extract(archivePath, destDir string) error {
	switch Detect(archivePath) {
	case Zip:
		return extractZip(archivePath, destDir)
	case TarXz:
		return extractTar(archivePath, destDir, newXzReader)
	default:
		return extractTar(archivePath, destDir, newGzipReader)
	}
}

func newGzipReader(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }
func newXzReader(r io.Reader) (io.Reader, error)   { return xz.NewReader(r) }

// commonRoot returns "dir/" if all names live under the same top-level
// directory, or "" otherwise.
func commonRoot(names []string) string {
	root := ""
	for _, name := range names {
		top, _, nested := strings.Cut(name, "/")
		if !nested || top == ".." {
			return ""
		}
		switch {
		case root == "":
			root = top
		case root != top:
			return ""
		}
	}
	if root == "" {
		return ""
	}
	return root + "/"
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	strip := commonRoot(names)

	for _, f := range r.File {
		if err := extractZipEntry(f, destDir, strip); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, destDir, strip string) error {
	name := strings.TrimPrefix(f.Name, strip)
	if name == "" {
		return nil
	}

	path, err := safe(destDir, name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, defaultPerm)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFile(path, rc, f.Mode())
}

func extractTar(archivePath, destDir string, decompress func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	dr, err := decompress(f)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}

	names, err := tarNames(tar.NewReader(dr))
	if err != nil {
		return err
	}

	// Rewind for the second pass.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	dr, err = decompress(f)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}

	return processTar(tar.NewReader(dr), destDir, commonRoot(names))
}

func tarNames(tr *tar.Reader) ([]string, error) {
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, hdr.Name)
	}
}

type pendingSymlink struct {
	linkname, path string
}

func processTar(tr *tar.Reader, destDir, strip string) error {
	var symlinks []pendingSymlink

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		name := strings.TrimPrefix(hdr.Name, strip)
		if name == "" {
			continue
		}

		path, err := safe(destDir, name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, defaultPerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(path, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := safeLink(destDir, path, hdr.Linkname); err != nil {
				return err
			}
			if err := symlink(hdr.Linkname, path); err != nil {
				// Windows without developer mode: copy the target later.
				symlinks = append(symlinks, pendingSymlink{hdr.Linkname, path})
			}
		}
	}
	return resolveSymlinks(symlinks)
}

func symlink(target, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), defaultPerm); err != nil {
		return err
	}
	_ = os.Remove(path)
	return os.Symlink(target, path)
}

func resolveSymlinks(symlinks []pendingSymlink) error {
	if len(symlinks) == 0 {
		return nil
	}

	links := make(map[string]string, len(symlinks))
	for _, sl := range symlinks {
		links[sl.path] = sl.linkname
	}

	for _, sl := range symlinks {
		target := resolveChain(sl.path, sl.linkname, links)
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", sl.path, sl.linkname, err)
		}
		if info.IsDir() {
			continue
		}
		if err := copyFile(target, sl.path); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", sl.path, sl.linkname, err)
		}
	}
	return nil
}

func resolveChain(base, linkname string, links map[string]string) string {
	target := filepath.Join(filepath.Dir(base), linkname)
	for range maxSymlinkDepth {
		next, ok := links[target]
		if !ok {
			return target
		}
		target = filepath.Join(filepath.Dir(target), next)
	}
	return target
}

// ----------------------------------------------------------------------------
// Download
// ----------------------------------------------------------------------------

// Download fetches url and extracts it into destDir, showing a progress bar.
func Download(ctx context.Context, url, destDir string) error {
	return DownloadWith(ctx, http.DefaultClient, url, destDir, true)
}

// DownloadWith is Download with an explicit client and optional progress.
func DownloadWith(ctx context.Context, client *http.Client, url, destDir string, progress bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}

	tmpDir, err := os.MkdirTemp("", "sumx-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	tmpFile := filepath.Join(tmpDir, "archive"+Detect(url).Ext())

	var body io.Reader = resp.Body
	var p *ui.Progress
	var bar *ui.Bar
	if progress {
		p = ui.NewProgress()
		bar = p.AddBar(url, resp.ContentLength)
		rc := bar.ProxyReader(resp.Body)
		defer rc.Close()
		body = rc
	}

	err = writeFile(tmpFile, body, 0o644)
	if bar != nil {
		if err != nil {
			bar.Abort()
		} else {
			bar.Complete()
		}
		p.Wait()
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destDir), defaultPerm); err != nil {
		return err
	}
	return Extract(tmpFile, destDir)
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func safe(destDir, name string) (string, error) {
	path := filepath.Join(destDir, name)
	if !strings.HasPrefix(path, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}
	return path, nil
}

// safeLink rejects a symlink at path whose target is absolute or resolves
// outside destDir; later entries written through it would escape.
func safeLink(destDir, path, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%w: %s -> %s", ErrPathTraversal, path, linkname)
	}
	root := filepath.Clean(destDir)
	target := filepath.Join(filepath.Dir(path), linkname)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %s -> %s", ErrPathTraversal, path, linkname)
	}
	return nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), defaultPerm); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	return writeFile(dst, in, info.Mode())
}

func copyToWriter(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func closeInto(c io.Closer, err *error) {
	if cerr := c.Close(); *err == nil {
		*err = cerr
	}
}
