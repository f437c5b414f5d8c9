package core

import "context"

// DocumentStore defines the contract of the remote document store.
// Adhering to this interface keeps the core independent of the
// underlying storage (in-process memory, filesystem, hosted database).
type DocumentStore interface {
	// Add creates a document with a store-assigned ID and returns that ID.
	// ServerTimestamp values are replaced by the acknowledgment time.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// Update merges fields into an existing document.
	// It fails with ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Get retrieves a document by its ID.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Delete removes a document by its ID.
	Delete(ctx context.Context, collection, id string) error

	// Listen registers a live query. onSnapshot receives the full ordered
	// result on registration and after every change; an empty result is a
	// snapshot, not an error. onError receives transport failures.
	// The returned stop function is idempotent.
	Listen(q Query, onSnapshot func([]Document), onError func(error)) (stop func(), err error)
}

// Watchable defines an interface for stores that expose their raw change feed.
type Watchable interface {
	// Watch emits an Event for every change in the collection until ctx is done.
	Watch(ctx context.Context, collection string) (<-chan Event, error)
}

// IdentityProvider is the remote authentication capability.
type IdentityProvider interface {
	// SignIn authenticates an existing account.
	SignIn(ctx context.Context, email, password string) (Identity, error)

	// Register creates an account and signs it in.
	Register(ctx context.Context, displayName, email, password string) (Identity, error)

	// SignOut ends the provider session.
	SignOut(ctx context.Context) error

	// ObserveIdentity calls fn with the current identity (nil when signed out)
	// and again after every change, until stop is called. A report reaching
	// fn wins over the result of a SignIn or Register that returns after it.
	ObserveIdentity(fn func(*Identity)) (stop func())
}
