package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/notesync/pkg/adapters/fs"
	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

// Adapters is a configured document store and identity provider, plus the
// resources to release when the service closes.
type Adapters struct {
	Store    core.DocumentStore
	Provider core.IdentityProvider
	Closers  []io.Closer
	// Path is the resolved vault path; empty for in-memory adapters.
	Path string
}

// Init builds the adapters selected by the options.
// The uri argument is adapter-specific (the vault path for "fs", ignored by "memory").
// Injected stores and providers take precedence over the adapter's own.
func Init(uri string, opts ...Option) (*Adapters, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	a := &Adapters{Store: o.store, Provider: o.provider}
	if a.Store != nil && a.Provider != nil {
		return a, nil
	}

	var err error
	switch o.adapter {
	case AdapterFS:
		err = initFS(uri, o, a)
	case AdapterMemory:
		initMemory(o, a)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		for _, c := range a.Closers {
			_ = c.Close()
		}
		return nil, err
	}
	return a, nil
}

func initMemory(o *options, a *Adapters) {
	cost, _ := o.config["bcrypt_cost"].(int)
	if a.Store == nil {
		store := memory.NewStore(memory.WithLogger(o.logger.With("adapter", AdapterMemory)))
		a.Store = store
		a.Closers = append(a.Closers, store)
	}
	if a.Provider == nil {
		a.Provider = memory.NewAuth(memory.WithBcryptCost(cost))
	}
}

// initFS handles the initialization logic for the filesystem adapter.
func initFS(path string, o *options, a *Adapters) error {
	tempDir, _ := o.config["temp_dir"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	extension, _ := o.config["extension"].(string)
	eventBuffer, _ := o.config["event_buffer"].(int)
	cost, _ := o.config["bcrypt_cost"].(int)
	watch := true
	if val, ok := o.config["watch"].(bool); ok {
		watch = val
	}
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	useTemp := tempDir || (IsDevRun() && devSafety)
	resolvedPath := ResolveVaultPath(path, useTemp)
	if useTemp && resolvedPath != filepath.Clean(path) {
		o.logger.Warn("running in SAFE MODE (dev/test sandbox)", "original_path", path, "resolved_path", resolvedPath)
	}
	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}
	a.Path = resolvedPath

	if a.Store == nil {
		store, err := fs.NewStore(fs.Config{
			Path:        resolvedPath,
			Extension:   extension,
			SystemDir:   systemDir,
			Watch:       watch,
			EventBuffer: eventBuffer,
			Logger:      o.logger.With("adapter", AdapterFS),
		})
		if err != nil {
			return err
		}
		if err := store.Initialize(context.Background()); err != nil {
			return err
		}
		a.Store = store
		a.Closers = append(a.Closers, store)
	}

	if a.Provider == nil {
		auth, err := fs.OpenAuth(fs.AuthConfig{
			Path:       filepath.Join(resolvedPath, systemDir, fs.AccountsFile),
			BcryptCost: cost,
		})
		if err != nil {
			return err
		}
		a.Provider = auth
		a.Closers = append(a.Closers, auth)
	}
	return nil
}
