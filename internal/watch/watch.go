// Package watch reruns work when files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

var ErrNoFiles = errors.New("nothing to watch")

// DefaultDebounce collapses the burst of events an editor produces when saving.
const DefaultDebounce = 300 * time.Millisecond

// Files calls fn every time one of paths is written, created or renamed into place, until ctx is done. Parent
// directories are watched so files replaced by rename keep being tracked. Errors returned by fn are logged, not
// fatal.
func Files(ctx context.Context, paths []string, debounce time.Duration, fn func() error) error {
	if len(paths) == 0 {
		return ErrNoFiles
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	targets := make([]string, 0, len(paths))

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		targets = append(targets, abs)

		dir := filepath.Dir(abs)
		if slices.Contains(watcher.WatchList(), dir) {
			continue
		}

		if err = watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	slog.Debug("watch.Files", "files", targets)

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

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if !slices.Contains(targets, filepath.Clean(event.Name)) {
				continue
			}

			slog.Debug("watch.Files", "event", event.Op.String(), "file", event.Name)
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Warn("watcher error", "error", err)
		case <-timer.C:
			if err := fn(); err != nil {
				slog.Warn("rerun failed", "error", err)
			}
		}
	}
}
