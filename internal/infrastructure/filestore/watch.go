package filestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appctx "metaschema/internal/core/context"
)

// Watch follows the directory on the OS filesystem and reports changed
// documents to subscribers until ctx is done. Bursts of writes to one file
// are collapsed into one event.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.log.WithContext(ctx).Infow("watching metadata directory", "dir", s.dir)

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			docID, ok := DocumentID(event.Name)
			if !ok {
				continue
			}
			name := event.Name

			mu.Lock()
			if t := timers[docID]; t != nil {
				t.Stop()
			}
			timers[docID] = time.AfterFunc(s.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				runCtx := appctx.StartRun(ctx, "file-change")
				s.log.WithContext(runCtx).Debugw("document file changed", "id", docID, "file", name)
				s.Notify(runCtx, name)
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithContext(ctx).Errorw("watcher error", "error", err)
		}
	}
}
