package preprocess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watch runs p once, then again each time a supported file under Input
// changes, until ctx is done. Bursts of events within debounce collapse into
// one run. Writes to Output and to hidden files, such as the temp file
// Output is written through, are ignored. A failed run is logged and
// watching continues.
func (p *Preprocessor) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addDirs(watcher, p.opts.Input); err != nil {
		return err
	}

	p.runLogged(ctx)

	output, _ := filepath.Abs(p.opts.Output)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if abs, _ := filepath.Abs(event.Name); abs == output || isHidden(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				p.watchCreated(watcher, event.Name)
			}
			if !IsSupported(event.Name) && !event.Op.Has(fsnotify.Remove) {
				continue
			}
			p.logger.Debug("input changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		case <-timer.C:
			p.runLogged(ctx)
		}
	}
}

func (p *Preprocessor) runLogged(ctx context.Context) {
	if _, err := p.Run(ctx); err != nil {
		p.logger.Error("preprocessing failed", "error", err)
	}
}

// addDirs watches root and every non-hidden directory below it. Files are
// covered by their parent directory.
// watchCreated adds a newly created directory tree to the watcher. A path
// that vanished before it could be added is ignored.
func (p *Preprocessor) watchCreated(w *fsnotify.Watcher, name string) {
	if err := addDirs(w, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("changes below this path will be missed", "path", name, "error", err)
	}
}

func addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if path == root {
				return w.Add(filepath.Dir(path))
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
