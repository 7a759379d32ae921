package document

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay groups the burst of events editors produce for one save
const reloadDelay = 200 * time.Millisecond

// WatchModels loads the models of dir, then reloads them whenever a schema
// file changes, until ctx is done. Every load result is passed to onReload.
// Reloaded models replace the registered ones.
func WatchModels(ctx context.Context, conn *Conn, dir string, onReload func(Models, error), opts ...LoaderOption) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("document: watch %s: %w", dir, err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("document: watch %s: %w", dir, err)
	}

	opts = append(opts, withReplace())
	onReload(LoadModels(ctx, conn, dir, opts...))

	timer := time.NewTimer(reloadDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsSchemaFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				timer.Reset(reloadDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			conn.logger.WarnContext(ctx, "model watcher error", "dir", dir, "error", err)

		case <-timer.C:
			conn.logger.InfoContext(ctx, "reloading models", "dir", dir)
			onReload(LoadModels(ctx, conn, dir, opts...))
		}
	}
}
