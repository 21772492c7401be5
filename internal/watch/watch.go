// Package watch reports when any of a fixed set of files is rewritten.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events one editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches the directories holding its files, so that editors
// which replace a file by rename are still seen.
type Watcher struct {
	files    map[string]bool
	debounce time.Duration
	fs       *fsnotify.Watcher
}

// New starts watching paths. A debounce of zero uses DefaultDebounce.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("nothing to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}

	w := &Watcher{files: make(map[string]bool), debounce: debounce, fs: fsw}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "resolve %s", p)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "watch %s", dir)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Run calls onChange with the changed path after each quiet period that
// follows a write to a watched file. It returns when ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	var pending string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = event.Name
			timer.Reset(w.debounce)
		case <-timer.C:
			if pending != "" {
				onChange(pending)
				pending = ""
			}
		case _, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			// Ignore errors, keep watching
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
