package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/notesync/internal/accounts"
	"github.com/aretw0/notesync/pkg/core"
)

// Auth is an in-memory core.IdentityProvider.
type Auth struct {
	mu        sync.Mutex
	accounts  map[string]*account
	current   *core.Identity
	observers map[uint64]func(*core.Identity)
	next      uint64
	failErr   error
	cost      int
}

type account struct {
	identity core.Identity
	hash     []byte
}

// AuthOption configures an Auth provider.
type AuthOption func(*Auth)

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AuthOption {
	return func(a *Auth) {
		a.cost = cost
	}
}

// NewAuth creates a provider without accounts and nobody signed in.
func NewAuth(opts ...AuthOption) *Auth {
	a := &Auth{
		accounts:  make(map[string]*account),
		observers: make(map[uint64]func(*core.Identity)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddAccount creates an account without signing it in.
func (a *Auth) AddAccount(displayName, email, password string) (core.Identity, error) {
	if err := accounts.ValidateRegistration(email, password); err != nil {
		return core.Identity{}, err
	}
	hash, err := accounts.HashPassword(password, a.cost)
	if err != nil {
		return core.Identity{}, err
	}

	key := accounts.NormalizeEmail(email)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.accounts[key]; exists {
		return core.Identity{}, core.ErrEmailInUse
	}
	id := core.Identity{UID: uuid.NewString(), Email: key, DisplayName: displayName}
	a.accounts[key] = &account{identity: id, hash: hash}
	return id, nil
}

// Register implements core.IdentityProvider.
func (a *Auth) Register(ctx context.Context, displayName, email, password string) (core.Identity, error) {
	if err := a.check(ctx); err != nil {
		return core.Identity{}, err
	}
	id, err := a.AddAccount(displayName, email, password)
	if err != nil {
		return core.Identity{}, err
	}
	a.setCurrent(&id)
	return id, nil
}

// SignIn implements core.IdentityProvider.
func (a *Auth) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	if err := a.check(ctx); err != nil {
		return core.Identity{}, err
	}

	a.mu.Lock()
	acc, ok := a.accounts[accounts.NormalizeEmail(email)]
	a.mu.Unlock()
	if !ok {
		return core.Identity{}, core.ErrInvalidCredentials
	}
	if err := accounts.CheckPassword(acc.hash, password); err != nil {
		return core.Identity{}, err
	}

	id := acc.identity
	a.setCurrent(&id)
	return id, nil
}

// SignOut implements core.IdentityProvider.
func (a *Auth) SignOut(ctx context.Context) error {
	if err := a.check(ctx); err != nil {
		return err
	}
	a.setCurrent(nil)
	return nil
}

// ObserveIdentity implements core.IdentityProvider.
// fn is called synchronously with the current identity.
func (a *Auth) ObserveIdentity(fn func(*core.Identity)) func() {
	a.mu.Lock()
	a.next++
	key := a.next
	a.observers[key] = fn
	current := copyIdentity(a.current)
	a.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.observers, key)
			a.mu.Unlock()
		})
	}
}

// Fail makes every following call fail with err; nil restores the provider.
func (a *Auth) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failErr = err
}

// Observers returns the number of registered identity observers.
func (a *Auth) Observers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.observers)
}

func (a *Auth) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failErr
}

func (a *Auth) setCurrent(id *core.Identity) {
	a.mu.Lock()
	a.current = copyIdentity(id)
	observers := make([]func(*core.Identity), 0, len(a.observers))
	for _, fn := range a.observers {
		observers = append(observers, fn)
	}
	a.mu.Unlock()

	for _, fn := range observers {
		fn(copyIdentity(id))
	}
}

func copyIdentity(id *core.Identity) *core.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
