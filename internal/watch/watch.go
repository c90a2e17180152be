// Package watch observes the notes directory for external edits and
// reports them as note-level change events.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called for each external note change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on notesDir and processes file change
// events until ctx is cancelled. Only top-level .md files are considered;
// their filename stem is the note id. Notes written by the store itself
// also surface here, so callers that already publish change events on
// their own mutations should dedupe or accept the occasional echo.
func Watch(ctx context.Context, notesDir string, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(notesDir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", notesDir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id, isNote := noteID(ev.Name)
			if !isNote {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				if info, statErr := os.Stat(ev.Name); statErr != nil || info.IsDir() {
					continue
				}
				logger.Debug("watcher: created", slog.String("id", id))
				if cb != nil {
					cb("created", id)
				}

			case ev.Op&fsnotify.Write != 0:
				logger.Debug("watcher: updated", slog.String("id", id))
				if cb != nil {
					cb("updated", id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path; if the file moved within
				// the directory the new name arrives as its own Create.
				logger.Debug("watcher: deleted", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// noteID extracts the note id from a watched path. Temp files written
// during atomic saves are ignored.
func noteID(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".md") {
		return "", false
	}
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	return strings.TrimSuffix(base, ".md"), true
}
