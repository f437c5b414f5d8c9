// Package memory provides an in-process document store and identity provider.
//
// Both behave like their remote counterparts: writes are acknowledged with
// server timestamps and live queries are pushed asynchronously. Failure
// injection helpers let tests simulate transport outages.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notesync/internal/live"
	"github.com/aretw0/notesync/pkg/core"
)

// Store is an in-memory core.DocumentStore.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]core.Fields
	writeErr    error
	now         func() time.Time
	clock       *live.Clock
	logger      *slog.Logger
	hub         *live.Hub
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the acknowledgment clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// WithLogger sets the logger of the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]core.Fields),
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = live.NewClock(s.now)
	s.hub = live.NewHub(s.evaluate, s.logger, live.DefaultEventBuffer)
	return s
}

// Add implements core.DocumentStore.
func (s *Store) Add(ctx context.Context, collection string, fields core.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return "", err
	}
	docs := s.collections[collection]
	if docs == nil {
		docs = make(map[string]core.Fields)
		s.collections[collection] = docs
	}
	docs[id] = s.clock.Resolve(fields)
	s.mu.Unlock()

	s.publish(core.EventCreate, collection, id)
	return id, nil
}

// Update implements core.DocumentStore.
func (s *Store) Update(ctx context.Context, collection, id string, fields core.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	merged := maps.Clone(existing)
	maps.Copy(merged, s.clock.Resolve(fields))
	s.collections[collection][id] = merged
	s.mu.Unlock()

	s.publish(core.EventModify, collection, id)
	return nil
}

// Get implements core.DocumentStore.
func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.collections[collection][id]
	if !ok {
		return core.Document{}, fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	return core.Document{ID: id, Fields: maps.Clone(fields)}, nil
}

// Delete implements core.DocumentStore.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, core.ErrNotFound)
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.publish(core.EventDelete, collection, id)
	return nil
}

// Listen implements core.DocumentStore.
func (s *Store) Listen(q core.Query, onSnapshot func([]core.Document), onError func(error)) (func(), error) {
	return s.hub.Listen(q, onSnapshot, onError)
}

// Watch implements core.Watchable.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan core.Event, error) {
	return s.hub.Watch(ctx, collection)
}

// Put writes fields verbatim under id, without resolving server timestamps.
// Tests use it to seed foreign or not yet acknowledged documents.
func (s *Store) Put(collection, id string, fields core.Fields) {
	s.mu.Lock()
	docs := s.collections[collection]
	if docs == nil {
		docs = make(map[string]core.Fields)
		s.collections[collection] = docs
	}
	docs[id] = maps.Clone(fields)
	s.mu.Unlock()

	s.publish(core.EventModify, collection, id)
}

// FailWrites makes every following write fail with err; nil restores writes.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// BreakListeners delivers err to every live query of collection.
func (s *Store) BreakListeners(collection string, err error) {
	s.hub.Fail(collection, err)
}

// Listeners returns the number of registered live queries.
func (s *Store) Listeners() int {
	return s.hub.Len()
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Close stops every live query.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) evaluate(ctx context.Context, q core.Query) ([]core.Document, error) {
	s.mu.RLock()
	docs := make([]core.Document, 0, len(s.collections[q.Collection]))
	for id, fields := range s.collections[q.Collection] {
		docs = append(docs, core.Document{ID: id, Fields: maps.Clone(fields)})
	}
	s.mu.RUnlock()
	return q.Apply(docs), nil
}

func (s *Store) publish(t core.EventType, collection, id string) {
	s.logger.Debug("document changed", "type", t, "collection", collection, "id", id)
	s.hub.Publish(core.Event{
		Type:       t,
		Collection: collection,
		ID:         id,
		Timestamp:  time.Now().Unix(),
	})
}
