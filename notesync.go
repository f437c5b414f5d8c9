package notesync

import (
	"log/slog"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/core"
)

// --- Configuration ---

// Option defines a functional option for configuring notesync.
type Option = platform.Option

// Adapters is a configured store and identity provider pair.
type Adapters = platform.Adapters

// FileConfig is the YAML configuration file.
type FileConfig = platform.FileConfig

// Built-in adapter names.
const (
	AdapterFS     = platform.AdapterFS
	AdapterMemory = platform.AdapterMemory
)

// ConfigFileName is the config file looked up in a vault root.
const ConfigFileName = platform.ConfigFileName

// WithLogger sets the logger for the service and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the built-in adapter by name ("fs" or "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithDocumentStore injects a custom document store.
func WithDocumentStore(store core.DocumentStore) Option {
	return platform.WithDocumentStore(store)
}

// WithIdentityProvider injects a custom identity provider.
func WithIdentityProvider(provider core.IdentityProvider) Option {
	return platform.WithIdentityProvider(provider)
}

// WithCollection sets the collection notes live in.
func WithCollection(name string) Option {
	return platform.WithCollection(name)
}

// WithSystemDir sets the hidden directory of the fs adapter.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithExtension selects the document format of the fs adapter.
func WithExtension(ext string) Option {
	return platform.WithExtension(ext)
}

// WithWatch enables or disables watching the vault for external edits.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithEventBuffer sets the buffer of raw change feeds.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithBcryptCost sets the password hashing cost of the built-in providers.
func WithBcryptCost(cost int) Option {
	return platform.WithBcryptCost(cost)
}

// WithForceTemp forces the vault into a temporary directory.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New creates a service over the selected adapters. Call Start on it.
func New(path string, opts ...Option) (*core.Service, error) {
	return platform.New(path, opts...)
}

// Init builds the adapters without wiring a service.
func Init(path string, opts ...Option) (*Adapters, error) {
	return platform.Init(path, opts...)
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string, required bool) (FileConfig, error) {
	return platform.LoadConfig(path, required)
}

// --- Safety & Utils ---

// ResolveVaultPath returns the path a vault really lives at.
func ResolveVaultPath(userPath string, forceTemp bool) string {
	return platform.ResolveVaultPath(userPath, forceTemp)
}

// IsDevRun reports whether the binary was built by `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// ErrNoVault is returned by FindVaultRoot when no ancestor is a vault.
var ErrNoVault = platform.ErrNoVault

// FindVaultRoot looks upwards for a vault root.
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
