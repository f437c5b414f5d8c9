package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	StoreType    string         `json:"store_type"`
	ProviderType string         `json:"provider_type"`
	Session      SessionState   `json:"session"`
	Notes        NotesState     `json:"notes"`
	Navigator    NavigatorState `json:"navigator"`
}

// SessionState exposes the session store for observability.
type SessionState struct {
	Resolved      bool   `json:"resolved"`
	Authenticated bool   `json:"authenticated"`
	UID           string `json:"uid,omitempty"`
	Pending       int    `json:"pending"`
	Listeners     int    `json:"listeners"`
	Transitions   uint64 `json:"transitions"`
}

// NotesState exposes the note repository for observability.
type NotesState struct {
	Collection          string `json:"collection"`
	ActiveSubscriptions int    `json:"active_subscriptions"`
	OpenedSubscriptions uint64 `json:"opened_subscriptions"`
}

// NavigatorState exposes the navigator for observability.
type NavigatorState struct {
	Phase     string   `json:"phase"`
	Stack     string   `json:"stack"`
	Screens   []string `json:"screens"`
	Mounts    uint64   `json:"mounts"`
	Teardowns uint64   `json:"teardowns"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	return ServiceState{
		StoreType:    componentType(s.store, "store"),
		ProviderType: componentType(s.provider, "identity-provider"),
		Session:      s.sessions.State().(SessionState),
		Notes:        s.notes.State().(NotesState),
		Navigator:    s.navigator.State().(NavigatorState),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

// State implements introspection.Introspectable.
func (s *SessionStore) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := SessionState{
		Resolved:      s.resolved,
		Authenticated: s.identity != nil,
		Pending:       s.pending,
		Listeners:     len(s.listeners),
		Transitions:   s.transitions,
	}
	if s.identity != nil {
		state.UID = s.identity.UID
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *SessionStore) ComponentType() string {
	return "session-store"
}

// State implements introspection.Introspectable.
func (r *NoteRepository) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return NotesState{
		Collection:          r.collection,
		ActiveSubscriptions: len(r.active),
		OpenedSubscriptions: r.opened,
	}
}

// ComponentType implements introspection.Component.
func (r *NoteRepository) ComponentType() string {
	return "note-repository"
}

// State implements introspection.Introspectable.
func (n *Navigator) State() any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	nav := n.stateLocked()
	screens := make([]string, 0, len(nav.Screens))
	for _, s := range nav.Screens {
		screens = append(screens, string(s))
	}
	return NavigatorState{
		Phase:     nav.Phase.String(),
		Stack:     string(nav.Stack),
		Screens:   screens,
		Mounts:    n.mounts,
		Teardowns: n.teardowns,
	}
}

// ComponentType implements introspection.Component.
func (n *Navigator) ComponentType() string {
	return "navigator"
}

func componentType(v any, fallback string) string {
	if comp, ok := v.(introspection.Component); ok {
		return comp.ComponentType()
	}
	return fallback
}

var (
	_ introspection.Introspectable = (*Service)(nil)
	_ introspection.Component      = (*Service)(nil)
	_ introspection.Introspectable = (*SessionStore)(nil)
	_ introspection.Component      = (*SessionStore)(nil)
	_ introspection.Introspectable = (*NoteRepository)(nil)
	_ introspection.Component      = (*NoteRepository)(nil)
	_ introspection.Introspectable = (*Navigator)(nil)
	_ introspection.Component      = (*Navigator)(nil)
)
