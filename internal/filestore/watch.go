package filestore

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Changes signals whenever a bus file is written, created, renamed or removed.
// Signals are coalesced: a slow receiver sees one pending signal, not a backlog.
// The channel is closed when ctx is done.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, dir := range []string{s.paths.Root, s.paths.BoardDir} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ignoreEvent(event) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[FileStore] watch error: %v", err)
			}
		}
	}()
	return out, nil
}

// ignoreEvent filters sidecar lock files, temp files, backups and pure chmods.
func ignoreEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(event.Name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".bak")
}
