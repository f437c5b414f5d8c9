package memory

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Collections map[string]int `json:"collections"`
	Listeners   int            `json:"listeners"`
	Published   uint64         `json:"published"`
	Failing     bool           `json:"failing"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.collections))
	for name, docs := range s.collections {
		counts[name] = len(docs)
	}
	return StoreState{
		Collections: counts,
		Listeners:   s.hub.Len(),
		Published:   s.hub.Published(),
		Failing:     s.writeErr != nil,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

// AuthState exposes internal state for observability.
type AuthState struct {
	Accounts      int    `json:"accounts"`
	Observers     int    `json:"observers"`
	SignedInUID   string `json:"signed_in_uid,omitempty"`
}

// State implements introspection.Introspectable.
func (a *Auth) State() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := AuthState{Accounts: len(a.accounts), Observers: len(a.observers)}
	if a.current != nil {
		state.SignedInUID = a.current.UID
	}
	return state
}

// ComponentType implements introspection.Component.
func (a *Auth) ComponentType() string {
	return "memory-auth"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Introspectable = (*Auth)(nil)
var _ introspection.Component = (*Auth)(nil)
