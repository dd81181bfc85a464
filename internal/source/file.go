package source

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "calgrid/internal/log"
)

// File reads the JSON event document from disk on every Fetch.
type File struct {
	Path string
}

func (f File) Name() string { return "file:" + filepath.Base(f.Path) }

func (f File) Fetch(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return Batch{}, err
	}
	defer fh.Close()
	return Decode(fh, f.Name())
}

const watchDebounce = 200 * time.Millisecond

// Watch calls onChange after the file is written, created or replaced,
// debouncing bursts of events. The parent directory is watched so that
// editors that save via rename are noticed. Watch blocks until ctx is done.
func (f File) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(f.Path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(f.Path)
	appLog.Info("source watcher started", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			appLog.Info("source watcher stopped", "path", target)
			return nil

		case <-fire:
			fire = nil
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("source watcher error", err, "path", target)
		}
	}
}
