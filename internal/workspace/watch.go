package workspace

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// watcher marks a workspace stale whenever its root directory changes.
type watcher struct {
	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch enables autorefresh: projects created in the directory by other
// processes become visible on the next read. It stops when ctx is done or
// the workspace is closed.
func (w *Workspace) Watch(ctx context.Context) error {
	if w.watcher != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start workspace watcher: %w", err)
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	cctx, cancel := context.WithCancel(ctx)
	wt := &watcher{fs: fw, cancel: cancel, done: make(chan struct{})}
	w.watcher = wt

	go func() {
		defer close(wt.done)
		defer fw.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					w.markStale()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warnf("workspace watcher: %v", err)
			}
		}
	}()
	return nil
}

func (wt *watcher) close() error {
	wt.cancel()
	<-wt.done
	return nil
}
