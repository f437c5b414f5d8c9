package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// SessionStore holds the authenticated identity of the process and
// broadcasts every identity transition to its listeners.
//
// State transitions and listener calls run on a serial dispatcher: each
// transition reaches every listener exactly once, in registration order,
// before the next transition is dispatched.
type SessionStore struct {
	provider IdentityProvider
	logger   *slog.Logger
	dispatch *dispatcher

	mu          sync.RWMutex
	identity    *Identity
	resolved    bool
	pending     int
	listeners   []*sessionListener
	transitions uint64
	started     bool
	stopObserve func()
	resolvedCh  chan struct{}
}

type sessionListener struct {
	fn      func(Session)
	removed atomic.Bool
}

// NewSessionStore creates a store in the loading state.
// Call Start to begin resolving the identity.
func NewSessionStore(provider IdentityProvider, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionStore{
		provider:   provider,
		logger:     logger,
		dispatch:   newDispatcher("session", logger),
		resolvedCh: make(chan struct{}),
	}
}

// Start begins observing the identity provider. It is safe to call twice.
func (s *SessionStore) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	stop := s.provider.ObserveIdentity(func(id *Identity) {
		s.apply("observe", id)
	})

	s.mu.Lock()
	s.stopObserve = stop
	s.mu.Unlock()
}

// Close stops observing the identity provider.
func (s *SessionStore) Close() {
	s.mu.Lock()
	stop := s.stopObserve
	s.stopObserve = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Current returns the latest known session.
// Loading is true until the first resolution and while an explicit
// sign-in, registration or sign-out is in flight.
func (s *SessionStore) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		Identity: cloneIdentity(s.identity),
		Loading:  !s.resolved || s.pending > 0,
	}
}

// WaitResolved blocks until the initial resolution completed or ctx is done.
func (s *SessionStore) WaitResolved(ctx context.Context) (Session, error) {
	select {
	case <-s.resolvedCh:
		return s.Current(), nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

// OnChange registers a listener for identity transitions.
// If the session already resolved, the listener is called right away with
// the current state. The returned function unregisters the listener; no call
// reaches the listener once it returned.
func (s *SessionStore) OnChange(fn func(Session)) (unsubscribe func()) {
	l := &sessionListener{fn: fn}
	s.dispatch.run(func() {
		s.mu.Lock()
		s.listeners = append(s.listeners, l)
		resolved := s.resolved
		current := s.notification()
		s.mu.Unlock()

		if resolved && !l.removed.Load() {
			l.fn(current)
		}
	})

	return func() {
		if l.removed.Swap(true) {
			return
		}
		s.dispatch.run(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, candidate := range s.listeners {
				if candidate == l {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// SignIn authenticates with email and password.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	since := s.begin()
	defer s.end()

	id, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return asAuthError("sign-in", err)
	}
	s.settle("sign-in", &id, since)
	return nil
}

// Register creates an account and signs it in.
func (s *SessionStore) Register(ctx context.Context, displayName, email, password string) error {
	since := s.begin()
	defer s.end()

	id, err := s.provider.Register(ctx, displayName, email, password)
	if err != nil {
		return asAuthError("register", err)
	}
	s.settle("register", &id, since)
	return nil
}

// SignOut ends the session.
func (s *SessionStore) SignOut(ctx context.Context) error {
	since := s.begin()
	defer s.end()

	if err := s.provider.SignOut(ctx); err != nil {
		return asAuthError("sign-out", err)
	}
	s.settle("sign-out", nil, since)
	return nil
}

// begin marks an explicit operation in flight and returns the transition
// count it started from.
func (s *SessionStore) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
	return s.transitions
}

func (s *SessionStore) end() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

// apply records a resolved identity and broadcasts it when it differs from
// the current one. Duplicate reports of the same identity (for example the
// provider observer echoing a sign-in) are dropped.
func (s *SessionStore) apply(source string, id *Identity) {
	s.transition(source, id, nil)
}

// settle applies the result of an explicit operation only if no transition
// happened since the operation began. Otherwise the provider observer already
// reported a newer state, such as a sign-out that landed while a sign-in was
// still returning, and the stale result is dropped.
func (s *SessionStore) settle(source string, id *Identity, since uint64) {
	s.transition(source, id, &since)
}

func (s *SessionStore) transition(source string, id *Identity, since *uint64) {
	next := cloneIdentity(id)
	s.dispatch.run(func() {
		s.mu.Lock()
		if since != nil && s.transitions != *since {
			s.mu.Unlock()
			s.logger.Debug("dropping stale session result", "source", source)
			return
		}
		if s.resolved && sameIdentity(s.identity, next) {
			s.mu.Unlock()
			return
		}
		first := !s.resolved
		s.identity = next
		s.resolved = true
		s.transitions++
		current := s.notification()
		listeners := append([]*sessionListener(nil), s.listeners...)
		s.mu.Unlock()

		if first {
			close(s.resolvedCh)
		}
		s.logger.Debug("session transition", "source", source, "authenticated", current.Authenticated(), "uid", current.UID())

		for _, l := range listeners {
			if l.removed.Load() {
				continue
			}
			s.notify(l, current)
		}
	})
}

func (s *SessionStore) notify(l *sessionListener, current Session) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logPanic(s.logger, "session listener panic", recovered)
		}
	}()
	l.fn(current)
}

// notification builds the state handed to listeners; it is always concrete.
// Must be called with s.mu held.
func (s *SessionStore) notification() Session {
	return Session{Identity: cloneIdentity(s.identity)}
}

func asAuthError(op string, err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return &AuthError{Op: op, Err: err}
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UID == b.UID
}
