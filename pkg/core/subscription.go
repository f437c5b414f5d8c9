package core

import (
	"sync"
	"sync/atomic"
)

// SubscriptionState is the lifecycle state of a Subscription handle.
type SubscriptionState int32

const (
	SubscriptionInactive SubscriptionState = iota
	SubscriptionActive
	SubscriptionUnsubscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionActive:
		return "active"
	case SubscriptionUnsubscribed:
		return "unsubscribed"
	default:
		return "inactive"
	}
}

// Subscription is the handle of a live note query.
// A transport error delivers an empty list and keeps the handle active;
// Unsubscribe moves it to the terminal unsubscribed state.
type Subscription struct {
	repo    *NoteRepository
	ownerID string
	onNext  func([]Note)

	state      atomic.Int32
	deliveries atomic.Uint64
	errors     atomic.Uint64

	deliverMu sync.Mutex

	mu   sync.Mutex
	stop func()
}

// OwnerID returns the owner this subscription is scoped to.
func (s *Subscription) OwnerID() string {
	return s.ownerID
}

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Active reports whether deliveries may still reach the callback.
func (s *Subscription) Active() bool {
	return s.State() == SubscriptionActive
}

// Deliveries returns how many lists reached the callback.
func (s *Subscription) Deliveries() uint64 {
	return s.deliveries.Load()
}

// Unsubscribe stops the live query. It is idempotent and never fails,
// also when the store already closed the underlying listener.
//
// Unsubscribe does not wait for a delivery that is already running: that
// callback may still finish after Unsubscribe returns, but no delivery
// starts afterwards. It is safe to call from inside the callback.
func (s *Subscription) Unsubscribe() {
	for {
		cur := s.state.Load()
		if SubscriptionState(cur) == SubscriptionUnsubscribed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(SubscriptionUnsubscribed)) {
			break
		}
	}

	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()

	s.stopRemote(stop)
	if s.repo != nil {
		s.repo.untrack(s)
		s.repo.logger.Debug("note subscription closed", "owner", s.ownerID, "deliveries", s.Deliveries())
	}
}

// attach stores the remote stop function, or runs it right away when the
// handle was closed while the store was registering the query.
func (s *Subscription) attach(stop func()) {
	s.mu.Lock()
	if s.State() == SubscriptionUnsubscribed {
		s.mu.Unlock()
		s.stopRemote(stop)
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

func (s *Subscription) stopRemote(stop func()) {
	if stop == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil && s.repo != nil {
			s.repo.logger.Warn("ignoring failure while closing note listener", "owner", s.ownerID, "error", recovered)
		}
	}()
	stop()
}

func (s *Subscription) handleSnapshot(docs []Document) {
	notes := make([]Note, 0, len(docs))
	for _, doc := range docs {
		n := NoteFromDocument(doc)
		if n.OwnerID != s.ownerID {
			s.repo.logger.Warn("dropping note outside subscription scope", "id", n.ID, "owner", s.ownerID)
			continue
		}
		notes = append(notes, n)
	}
	SortNotes(notes)
	s.deliver(notes)
}

// handleError fails open to an empty list; it never propagates the error.
func (s *Subscription) handleError(err error) {
	s.errors.Add(1)
	s.repo.logger.Error("note subscription error", "owner", s.ownerID, "error", err)
	s.deliver([]Note{})
}

// deliver serializes deliveries and drops any that arrive after Unsubscribe.
func (s *Subscription) deliver(notes []Note) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.Active() {
		return
	}
	s.call(notes)
}

func (s *Subscription) call(notes []Note) {
	defer func() {
		if recovered := recover(); recovered != nil && s.repo != nil {
			logPanic(s.repo.logger, "note subscriber panic", recovered)
		}
	}()
	s.deliveries.Add(1)
	if s.onNext != nil {
		s.onNext(notes)
	}
}
