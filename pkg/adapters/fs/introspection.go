package fs

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string `json:"path"`
	SystemDir     string `json:"system_dir"`
	Extension     string `json:"extension"`
	Watch         bool   `json:"watch"`
	WatcherActive bool   `json:"watcher_active"`
	WatchedDirs   int    `json:"watched_dirs"`
	Restarts      int    `json:"watcher_restarts"`
	Listeners     int    `json:"listeners"`
	Writes        uint64 `json:"writes"`
	Published     uint64 `json:"published"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	state := StoreState{
		Path:          s.Path,
		SystemDir:     s.config.SystemDir,
		Extension:     s.config.Extension,
		Watch:         s.config.Watch,
		WatcherActive: s.watcherActive,
		Writes:        s.writes,
		WatchedDirs:   len(s.watchDirs),
		Restarts:      s.restarts,
	}
	s.mu.RUnlock()

	state.Listeners = s.hub.Len()
	state.Published = s.hub.Published()
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

// AuthState exposes internal state for observability.
type AuthState struct {
	Path        string `json:"path"`
	Accounts    int    `json:"accounts"`
	Observers   int    `json:"observers"`
	SignedInUID string `json:"signed_in_uid,omitempty"`
}

// State implements introspection.Introspectable.
func (a *Auth) State() any {
	state := AuthState{Path: a.path}
	if n, err := a.countAccounts(); err == nil {
		state.Accounts = n
	}
	a.mu.Lock()
	state.Observers = len(a.observers)
	if a.current != nil {
		state.SignedInUID = a.current.UID
	}
	a.mu.Unlock()
	return state
}

// ComponentType implements introspection.Component.
func (a *Auth) ComponentType() string {
	return "fs-auth"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Introspectable = (*Auth)(nil)
var _ introspection.Component = (*Auth)(nil)
