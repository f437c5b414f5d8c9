package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ServiceConfig holds the configuration of a Service.
type ServiceConfig struct {
	Collection string
	Logger     *slog.Logger
	// Closers are released by Close, in order, after the stack is torn down.
	Closers []io.Closer
}

// Service wires the session store, the note repository and the navigator
// around one document store and one identity provider.
// It replaces process-wide singletons: construct it, Start it, Close it.
type Service struct {
	store    DocumentStore
	provider IdentityProvider
	logger   *slog.Logger

	sessions  *SessionStore
	notes     *NoteRepository
	navigator *Navigator
	closers   []io.Closer

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewService creates a new Service.
func NewService(store DocumentStore, provider IdentityProvider, config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessions := NewSessionStore(provider, logger.With("component", "session"))
	notes := NewNoteRepository(store, NoteRepositoryConfig{
		Collection: config.Collection,
		Logger:     logger.With("component", "notes"),
	})
	return &Service{
		store:     store,
		provider:  provider,
		logger:    logger,
		sessions:  sessions,
		notes:     notes,
		navigator: NewNavigator(sessions, notes, logger.With("component", "navigator")),
		closers:   config.Closers,
	}
}

// Start wires the navigator to the session and begins identity resolution.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.navigator.Start()
	s.sessions.Start()
}

// Close tears down the mounted stack, stops observing the provider and
// releases the configured closers.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.navigator.Close()
	s.sessions.Close()

	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sessions returns the session store.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Notes returns the note repository.
func (s *Service) Notes() *NoteRepository {
	return s.notes
}

// Navigator returns the navigation controller.
func (s *Service) Navigator() *Navigator {
	return s.navigator
}

// Watch observes raw collection changes if the store supports it.
func (s *Service) Watch(ctx context.Context) (<-chan Event, error) {
	w, ok := s.store.(Watchable)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	return w.Watch(ctx, s.notes.collection)
}
