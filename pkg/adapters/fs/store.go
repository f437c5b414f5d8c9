// Package fs implements a document store and identity provider on the local
// filesystem. Every collection is a directory and every document one file in
// it; an fsnotify watcher turns edits made outside the process into live query
// updates.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/notesync/internal/live"
	"github.com/aretw0/notesync/pkg/core"
)

// DefaultSystemDir holds the files of the store that are not documents.
const DefaultSystemDir = ".notesync"

// Config holds the configuration of the filesystem store.
type Config struct {
	Path string
	// Extension selects the document format (".md" or ".json").
	Extension string
	// SystemDir is skipped when listing collections.
	SystemDir string
	// Watch enables the fsnotify watcher for external changes.
	Watch       bool
	EventBuffer int
	Logger      *slog.Logger
	// Now overrides the acknowledgment clock.
	Now func() time.Time
}

// Store implements core.DocumentStore on a directory tree.
type Store struct {
	Path   string
	config Config

	serializer Serializer
	clock      *live.Clock
	hub        *live.Hub

	mu            sync.RWMutex
	recent        map[string]time.Time
	watchDirs     map[string]bool
	watcherActive bool
	writes        uint64
	restarts      int

	watchOnce  sync.Once
	watcher    *watchWorker
	supervisor runner
	closeOnce  sync.Once
}

// runner is the part of a lifecycle supervisor the store drives.
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// selfWriteWindow is how long watcher events for a file written by this store
// are treated as echoes of that write.
const selfWriteWindow = time.Second

// NewStore creates a store rooted at config.Path.
func NewStore(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, errors.New("store path is required")
	}
	if config.Extension == "" {
		config.Extension = ".md"
	}
	if !strings.HasPrefix(config.Extension, ".") {
		config.Extension = "." + config.Extension
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	serializer, ok := DefaultSerializers()[config.Extension]
	if !ok {
		return nil, fmt.Errorf("unsupported document extension %q", config.Extension)
	}

	s := &Store{
		Path:       config.Path,
		config:     config,
		serializer: serializer,
		clock:      live.NewClock(config.Now),
		recent:     make(map[string]time.Time),
		watchDirs:  make(map[string]bool),
	}
	s.hub = live.NewHub(s.evaluate, config.Logger, config.EventBuffer)
	return s, nil
}

// Initialize creates the root and system directories.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.Path, s.config.SystemDir), 0o755); err != nil {
		return fmt.Errorf("failed to create store directories: %w", err)
	}
	return nil
}

// Add implements core.DocumentStore.
func (s *Store) Add(ctx context.Context, collection string, fields core.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := s.collectionDir(collection)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create collection directory: %w", err)
	}
	s.ensureWatched(dir)

	id := uuid.NewString()
	s.mu.Lock()
	err = s.write(s.documentPath(dir, id), s.clock.Resolve(fields))
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	s.publish(core.EventCreate, collection, id)
	return id, nil
}

// Update implements core.DocumentStore.
func (s *Store) Update(ctx context.Context, collection, id string, fields core.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	existing, err := s.read(path)
	if err != nil {
		s.mu.Unlock()
		return s.notFound(collection, id, err)
	}
	merged := maps.Clone(existing)
	maps.Copy(merged, s.clock.Resolve(fields))
	err = s.write(path, merged)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(core.EventModify, collection, id)
	return nil
}

// Get implements core.DocumentStore.
func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	path, err := s.path(collection, id)
	if err != nil {
		return core.Document{}, err
	}

	s.mu.RLock()
	fields, err := s.read(path)
	s.mu.RUnlock()
	if err != nil {
		return core.Document{}, s.notFound(collection, id, err)
	}
	return core.Document{ID: id, Fields: fields}, nil
}

// Delete implements core.DocumentStore.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = os.Remove(path)
	if err == nil {
		s.recent[path] = time.Now()
	}
	s.mu.Unlock()
	if err != nil {
		return s.notFound(collection, id, err)
	}

	s.publish(core.EventDelete, collection, id)
	return nil
}

// Listen implements core.DocumentStore.
func (s *Store) Listen(q core.Query, onSnapshot func([]core.Document), onError func(error)) (func(), error) {
	dir, err := s.collectionDir(q.Collection)
	if err != nil {
		return nil, err
	}
	s.ensureWatched(dir)
	return s.hub.Listen(q, onSnapshot, onError)
}

// Watch implements core.Watchable.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan core.Event, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return nil, err
	}
	s.ensureWatched(dir)
	return s.hub.Watch(ctx, collection)
}

// List returns every document of collection, unordered.
func (s *Store) List(ctx context.Context, collection string) ([]core.Document, error) {
	return s.evaluate(ctx, core.Query{Collection: collection})
}

// Close stops the watcher and every live query.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.hub.Close()
		s.mu.RLock()
		sup := s.supervisor
		s.mu.RUnlock()
		if sup != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = sup.Stop(ctx)
		}
	})
	return err
}

func (s *Store) evaluate(ctx context.Context, q core.Query) ([]core.Document, error) {
	dir, err := s.collectionDir(q.Collection)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return []core.Document{}, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "*"+s.config.Extension)
	if err != nil {
		return nil, err
	}

	docs := make([]core.Document, 0, len(matches))
	for _, name := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isTempFile(name) {
			continue
		}
		fields, err := s.read(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			s.config.Logger.Warn("skipping unreadable document", "collection", q.Collection, "file", name, "error", err)
			continue
		}
		docs = append(docs, core.Document{ID: strings.TrimSuffix(name, s.config.Extension), Fields: fields})
	}
	return q.Apply(docs), nil
}

func (s *Store) read(path string) (core.Fields, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fields, err := s.serializer.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return fields, nil
}

// write must be called with s.mu held.
func (s *Store) write(path string, fields core.Fields) error {
	data, err := s.serializer.Serialize(fields)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	s.recent[path] = time.Now()
	s.writes++
	return nil
}

func (s *Store) publish(t core.EventType, collection, id string) {
	s.config.Logger.Debug("document changed", "type", t, "collection", collection, "id", id)
	s.hub.Publish(core.Event{
		Type:       t,
		Collection: collection,
		ID:         id,
		Timestamp:  time.Now().Unix(),
	})
}

// echo reports whether a watcher event for path was caused by this store.
func (s *Store) echo(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for p, at := range s.recent {
		if now.Sub(at) > selfWriteWindow {
			delete(s.recent, p)
		}
	}
	_, ok := s.recent[path]
	return ok
}

func (s *Store) collectionDir(collection string) (string, error) {
	if err := core.ValidateKey("collection", collection); err != nil {
		return "", err
	}
	if collection == s.config.SystemDir || strings.HasPrefix(collection, ".") {
		return "", &core.ValidationError{Field: "collection", Reason: "reserved name"}
	}
	return filepath.Join(s.Path, collection), nil
}

func (s *Store) documentPath(dir, id string) string {
	return filepath.Join(dir, id+s.config.Extension)
}

func (s *Store) path(collection, id string) (string, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return "", err
	}
	if err := core.ValidateKey("id", id); err != nil {
		return "", err
	}
	if strings.HasPrefix(id, ".") {
		return "", &core.ValidationError{Field: "id", Reason: "must not start with a dot"}
	}
	return s.documentPath(dir, id), nil
}

func (s *Store) notFound(collection, id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	return err
}

// ensureWatched starts the supervised watcher on first use and adds dir to it.
func (s *Store) ensureWatched(dir string) {
	if !s.config.Watch {
		return
	}
	s.watchOnce.Do(s.startWatcher)

	s.mu.Lock()
	s.watchDirs[dir] = true
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		w.add(dir)
	}
}

// startWatcher runs the watch worker under a one-for-one supervisor, so a
// failed watcher is replaced and re-adds every known collection directory.
func (s *Store) startWatcher() {
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w := newWatchWorker(s)
			s.mu.Lock()
			if s.watcher != nil {
				s.restarts++
			}
			s.watcher = w
			s.mu.Unlock()
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     5 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("fs-store", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(context.Background()); err != nil {
		s.config.Logger.Error("failed to start watcher", "error", err)
		return
	}
	s.mu.Lock()
	s.supervisor = sup
	s.mu.Unlock()
}

func (s *Store) knownDirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirs := make([]string, 0, len(s.watchDirs))
	for dir := range s.watchDirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

func (s *Store) setWatcherActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherActive = active
}
