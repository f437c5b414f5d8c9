package platform

import (
	"log/slog"

	"github.com/aretw0/notesync/pkg/core"
)

// Adapter names.
const (
	AdapterFS     = "fs"
	AdapterMemory = "memory"
)

// options holds the internal configuration for the notesync service.
type options struct {
	store    core.DocumentStore
	provider core.IdentityProvider
	logger   *slog.Logger
	adapter  string
	config   map[string]any
}

// Option defines a functional option for configuring notesync.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]any),
	}
}

// WithLogger sets the logger for the service and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAdapter selects the built-in adapter by name ("fs" or "memory").
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithDocumentStore injects a custom document store.
// If provided, the adapter's store is skipped.
func WithDocumentStore(store core.DocumentStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithIdentityProvider injects a custom identity provider.
// If provided, the adapter's provider is skipped.
func WithIdentityProvider(provider core.IdentityProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithCollection sets the collection notes live in. Defaults to "notes".
func WithCollection(name string) Option {
	return func(o *options) {
		o.config["collection"] = name
	}
}

// WithSystemDir sets the hidden directory of the fs adapter.
// Defaults to ".notesync".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithExtension selects the document format of the fs adapter (".md" or ".json").
func WithExtension(ext string) Option {
	return func(o *options) {
		o.config["extension"] = ext
	}
}

// WithWatch enables or disables watching the vault for external edits.
// Enabled by default.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.config["watch"] = enabled
	}
}

// WithEventBuffer sets the buffer of raw change feeds.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithBcryptCost sets the password hashing cost of the built-in providers.
func WithBcryptCost(cost int) Option {
	return func(o *options) {
		o.config["bcrypt_cost"] = cost
	}
}

// WithForceTemp forces the vault into a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
// By default (true) the vault is re-rooted into a temporary directory.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}
