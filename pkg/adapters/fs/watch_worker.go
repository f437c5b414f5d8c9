package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notesync/pkg/core"
)

type watchWorker struct {
	*worker.BaseWorker
	store   *Store
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu   sync.Mutex
	dirs map[string]bool
}

func newWatchWorker(store *Store) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		store:      store,
		dirs:       make(map[string]bool),
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	if err := os.MkdirAll(w.store.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create store root: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.store.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.store.Path, err)
	}
	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()
	for _, dir := range w.store.knownDirs() {
		w.add(dir)
	}
	w.store.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// add watches a collection directory; missing directories are picked up when
// they get created under the root.
func (w *watchWorker) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] || w.watcher == nil {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.store.config.Logger.Warn("failed to watch collection", "dir", dir, "error", err)
		}
		return
	}
	w.dirs[dir] = true
}

// processFilesystemEvent maps a filesystem event to a document change.
func (w *watchWorker) processFilesystemEvent(event fsnotify.Event) {
	logger := w.store.config.Logger
	logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	parent := filepath.Dir(event.Name)
	if filepath.Clean(parent) == filepath.Clean(w.store.Path) {
		w.handleRootEvent(event)
		return
	}

	collection := filepath.Base(parent)
	name := filepath.Base(event.Name)
	if isTempFile(name) || strings.HasPrefix(collection, ".") {
		return
	}
	if ok, _ := doublestar.Match("*"+w.store.config.Extension, name); !ok {
		return
	}

	eType := mapEventType(event)
	if eType == "" {
		return
	}

	if w.store.echo(event.Name) {
		w.store.hub.Touch(collection)
		return
	}
	w.store.hub.Publish(core.Event{
		Type:       eType,
		Collection: collection,
		ID:         strings.TrimSuffix(name, w.store.config.Extension),
		Timestamp:  time.Now().Unix(),
	})
}

func (w *watchWorker) handleRootEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	w.add(event.Name)
	// Files may have landed before the directory was watched.
	w.store.hub.Touch(name)
}

func mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	}
	return ""
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.store.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.store.setWatcherActive(false)
	defer w.watcher.Close()

	events, errs := w.watcher.Events, w.watcher.Errors

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(event)

		case wErr, ok := <-errs:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "error", wErr)
		}
	}
}
