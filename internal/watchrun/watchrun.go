// Package watchrun implements "orchestrator run --watch": re-run a workflow file each
// time it changes on disk, with a debouncer coalescing bursts of editor-save events
// into a single callback.
package watchrun

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the editor-save coalescing window.
const DefaultDebounce = 250 * time.Millisecond

// RunFunc executes one run of the watched workflow. It receives ctx so a run can be
// cancelled if the file changes again mid-run; in practice runs are awaited to
// completion before the next trigger.
type RunFunc func(ctx context.Context) error

// Watch blocks, invoking run once immediately and again after every debounced write to
// path, until ctx is cancelled. The first error from run is surfaced immediately; watch
// continues afterward so a fixed workflow file can be rerun on the next save.
func Watch(ctx context.Context, path string, debounce time.Duration, run RunFunc, onError func(error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	if err := run(ctx); err != nil && onError != nil {
		onError(err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
		} else {
			timer.Reset(debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			resetTimer()
		case <-timerC:
			timerC = nil
			if err := run(ctx); err != nil && onError != nil {
				onError(err)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(werr)
			}
		}
	}
}
