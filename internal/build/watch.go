package build

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/qntx/sumx/internal/logging"
)

// DefaultDebounce batches bursts of saves into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Watch calls fn whenever Go sources or go.mod under root change, until ctx
// is done. Events are debounced and fn never runs concurrently with itself.
// Errors from fn are logged, not returned.
func Watch(ctx context.Context, root string, debounce time.Duration, log *zap.Logger, fn func(context.Context) error) error {
	log = logging.OrNop(log)
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, root); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !skipDir(ev.Name, root) {
					_ = addTree(w, ev.Name)
					continue
				}
			}
			if !relevant(ev) {
				continue
			}
			log.Debug("change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if err := fn(ctx); err != nil {
				log.Warn("rebuild failed", zap.Error(err))
			}
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(path, root) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// skipDir excludes hidden, underscore, testdata and output directories,
// matching what the go tool ignores plus sumx's own dist.
func skipDir(path, root string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" {
		return true
	}
	return filepath.Clean(path) == filepath.Join(root, DefaultOutDir)
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	return name == modFile || (strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go"))
}
