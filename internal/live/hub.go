// Package live fans store changes out to live queries and raw change feeds.
//
// Each live query owns a pump goroutine. Changes only signal the pump; the
// pump then evaluates the query against the current store state, so a slow
// consumer sees coalesced but never out-of-order snapshots.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/core"
)

// ErrClosed is returned when listening on a closed hub.
var ErrClosed = errors.New("live hub closed")

// DefaultEventBuffer is the buffer of a raw change feed.
const DefaultEventBuffer = 100

// Evaluator runs a query against the current store state.
type Evaluator func(ctx context.Context, q core.Query) ([]core.Document, error)

// Hub tracks the live queries and change feeds of one store.
type Hub struct {
	eval        Evaluator
	logger      *slog.Logger
	eventBuffer int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[uint64]*listener
	feeds     map[uint64]*feed
	next      uint64
	closed    bool
	published uint64
}

type listener struct {
	query      core.Query
	onSnapshot func([]core.Document)
	onError    func(error)
	wake       chan struct{}
	cancel     context.CancelFunc

	mu      sync.Mutex
	failure error
}

type feed struct {
	collection string
	ch         chan core.Event
}

// NewHub creates a hub evaluating queries with eval.
func NewHub(eval Evaluator, logger *slog.Logger, eventBuffer int) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		eval:        eval,
		logger:      logger,
		eventBuffer: eventBuffer,
		ctx:         ctx,
		cancel:      cancel,
		listeners:   make(map[uint64]*listener),
		feeds:       make(map[uint64]*feed),
	}
}

// Listen registers a live query and schedules its initial snapshot.
// The returned stop function is idempotent and does not wait for the pump.
func (h *Hub) Listen(q core.Query, onSnapshot func([]core.Document), onError func(error)) (func(), error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(h.ctx)
	l := &listener{
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		cancel:     cancel,
	}
	h.next++
	id := h.next
	h.listeners[id] = l
	h.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		return h.pump(ctx, l)
	}, lifecycle.WithErrorHandler(func(err error) {
		h.logger.Error("live query pump failed", "collection", q.Collection, "error", err)
	}))
	l.signal()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}, nil
}

// Publish records a change: it wakes the live queries of the event's
// collection and forwards the event to the matching change feeds.
func (h *Hub) Publish(e core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.published++
	for _, l := range h.listeners {
		if l.query.Collection == e.Collection {
			l.signal()
		}
	}
	for _, f := range h.feeds {
		if f.collection != e.Collection {
			continue
		}
		select {
		case f.ch <- e:
		default:
			h.logger.Warn("change feed full, dropping event", "collection", e.Collection, "id", e.ID)
		}
	}
}

// Touch wakes the live queries of collection without emitting a change
// event. Stores use it when a change was already published.
func (h *Hub) Touch(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.listeners {
		if l.query.Collection == collection {
			l.signal()
		}
	}
}

// Fail reports a transport error to every live query of collection.
func (h *Hub) Fail(collection string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.listeners {
		if l.query.Collection != collection {
			continue
		}
		l.mu.Lock()
		l.failure = err
		l.mu.Unlock()
		l.signal()
	}
}

// Watch opens a raw change feed for collection, closed when ctx is done or
// the hub closes.
func (h *Hub) Watch(ctx context.Context, collection string) (<-chan core.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.next++
	id := h.next
	f := &feed{collection: collection, ch: make(chan core.Event, h.eventBuffer)}
	h.feeds[id] = f

	lifecycle.Go(ctx, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		case <-h.ctx.Done():
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.feeds[id]; ok {
			delete(h.feeds, id)
			close(f.ch)
		}
		return nil
	})
	return f.ch, nil
}

// Len returns the number of registered live queries.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Published returns how many changes went through the hub.
func (h *Hub) Published() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published
}

// Close stops every pump and closes every change feed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, f := range h.feeds {
		delete(h.feeds, id)
		close(f.ch)
	}
	h.listeners = make(map[uint64]*listener)
	h.mu.Unlock()
	h.cancel()
}

func (h *Hub) pump(ctx context.Context, l *listener) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}

		if err := l.takeFailure(); err != nil {
			if ctx.Err() == nil {
				l.onError(err)
			}
			continue
		}

		docs, err := h.eval(ctx, l.query)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			l.onError(fmt.Errorf("evaluate %s: %w", l.query.Collection, err))
			continue
		}
		l.onSnapshot(docs)
	}
}

func (l *listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) takeFailure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.failure
	l.failure = nil
	return err
}
