package core_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// recorder collects every list delivered to a subscriber.
type recorder struct {
	mu    sync.Mutex
	lists [][]core.Note
}

func (r *recorder) record(notes []core.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, notes)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

func (r *recorder) last() []core.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lists) == 0 {
		return nil
	}
	return r.lists[len(r.lists)-1]
}

// lastIDs returns the IDs of the latest list, nil before the first delivery.
func (r *recorder) lastIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lists) == 0 {
		return nil
	}
	return ids(r.lists[len(r.lists)-1])
}

func ids(notes []core.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func titles(notes []core.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}

// countingStore counts the live queries it registers.
type countingStore struct {
	*memory.Store
	listens atomic.Int32
}

func (c *countingStore) Listen(q core.Query, onSnapshot func([]core.Document), onError func(error)) (func(), error) {
	c.listens.Add(1)
	return c.Store.Listen(q, onSnapshot, onError)
}

// leakyStore ignores the filters of live queries, as a misconfigured
// backend would.
type leakyStore struct {
	*memory.Store
}

func (l leakyStore) Listen(q core.Query, onSnapshot func([]core.Document), onError func(error)) (func(), error) {
	q.Where = nil
	return l.Store.Listen(q, onSnapshot, onError)
}

// refusingStore fails every live query registration.
type refusingStore struct {
	*memory.Store
	err error
}

func (r refusingStore) Listen(core.Query, func([]core.Document), func(error)) (func(), error) {
	return nil, r.err
}

// gatedStore blocks Add until release is closed.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) Add(ctx context.Context, collection string, fields core.Fields) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Store.Add(ctx, collection, fields)
}

// gatedAuth blocks SignIn until release is closed.
type gatedAuth struct {
	*memory.Auth
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAuth) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Auth.SignIn(ctx, email, password)
}

// lateAuth signs in at the provider, notifying observers, and only then
// blocks until release is closed, like a provider that reports the new
// identity before the call returns to the client.
type lateAuth struct {
	*memory.Auth
	entered chan struct{}
	release chan struct{}
}

func newLateAuth(t *testing.T) *lateAuth {
	t.Helper()
	return &lateAuth{Auth: newAuth(t), entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (l *lateAuth) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	id, err := l.Auth.SignIn(ctx, email, password)
	l.entered <- struct{}{}
	<-l.release
	return id, err
}

func (l *lateAuth) Register(ctx context.Context, displayName, email, password string) (core.Identity, error) {
	id, err := l.Auth.Register(ctx, displayName, email, password)
	l.entered <- struct{}{}
	<-l.release
	return id, err
}

// providerIdentity returns the identity the provider currently reports.
func providerIdentity(p core.IdentityProvider) *core.Identity {
	var current *core.Identity
	stop := p.ObserveIdentity(func(id *core.Identity) { current = id })
	stop()
	return current
}

// stopGateStore blocks the stop function of live queries while armed.
type stopGateStore struct {
	*memory.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newStopGateStore() *stopGateStore {
	return &stopGateStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *stopGateStore) Listen(q core.Query, onSnapshot func([]core.Document), onError func(error)) (func(), error) {
	stop, err := g.Store.Listen(q, onSnapshot, onError)
	if err != nil {
		return nil, err
	}
	return func() {
		if g.armed.CompareAndSwap(true, false) {
			g.entered <- struct{}{}
			<-g.release
		}
		stop()
	}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newAuth(t *testing.T) *memory.Auth {
	t.Helper()
	return memory.NewAuth(memory.WithBcryptCost(bcrypt.MinCost))
}

// newService wires a service over store and auth and closes it on cleanup.
func newService(t *testing.T, store core.DocumentStore, auth core.IdentityProvider) *core.Service {
	t.Helper()
	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}
	svc := core.NewService(store, auth, core.ServiceConfig{Closers: closers})
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func addAccount(t *testing.T, auth *memory.Auth, name, email string) core.Identity {
	t.Helper()
	id, err := auth.AddAccount(name, email, "secret1")
	if err != nil {
		t.Fatalf("add account %s: %v", email, err)
	}
	return id
}

func at(minute int) time.Time {
	return time.Date(2026, 3, 1, 12, minute, 0, 0, time.UTC)
}
