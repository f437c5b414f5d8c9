// Package lifecycle exposes notesync streams as lifecycle sources.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/core"
)

type changeSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source emitting raw document changes,
// typically the channel returned by core.Service.Watch.
func NewSource(events <-chan core.Event) lifecycle.Source {
	return &changeSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

// SessionEvent is a session transition.
type SessionEvent struct {
	Session core.Session
}

func (e SessionEvent) String() string {
	if !e.Session.Authenticated() {
		return "session: signed out"
	}
	return fmt.Sprintf("session: signed in as %s (%s)", e.Session.Identity.Email, e.Session.UID())
}

// SessionBuffer is how many transitions a slow consumer may lag behind
// before new ones are dropped.
const SessionBuffer = 16

type sessionSource struct {
	sessions *core.SessionStore
	out      chan lifecycle.Event

	mu     sync.Mutex
	closed bool
}

// NewSessionSource creates a lifecycle.Source emitting session transitions.
// The session store dispatcher never blocks on the consumer.
func NewSessionSource(sessions *core.SessionStore) lifecycle.Source {
	return &sessionSource{
		sessions: sessions,
		out:      make(chan lifecycle.Event, SessionBuffer),
	}
}

func (s *sessionSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *sessionSource) Start(ctx context.Context) error {
	unsubscribe := s.sessions.OnChange(func(session core.Session) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		select {
		case s.out <- SessionEvent{Session: session}:
		default:
		}
	})

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		unsubscribe()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		close(s.out)
		return nil
	})
	return nil
}
