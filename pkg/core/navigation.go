package core

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Phase is the authentication phase the navigator renders.
type Phase int

const (
	PhaseResolving Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "resolving"
	}
}

// StackName identifies one of the two disjoint screen stacks.
type StackName string

const (
	StackNone StackName = ""
	StackAuth StackName = "auth"
	StackApp  StackName = "app"
)

// ScreenName identifies a screen inside a stack.
type ScreenName string

const (
	ScreenSignIn     ScreenName = "sign-in"
	ScreenRegister   ScreenName = "register"
	ScreenNoteList   ScreenName = "note-list"
	ScreenNoteEditor ScreenName = "note-editor"
)

// NavState is what the presentation layer renders.
type NavState struct {
	Phase   Phase
	Stack   StackName
	Screens []ScreenName
	UID     string
}

// Top returns the visible screen, or an empty name while resolving.
func (s NavState) Top() ScreenName {
	if len(s.Screens) == 0 {
		return ""
	}
	return s.Screens[len(s.Screens)-1]
}

// mount is one mounted instance of a stack. Screens keep a pointer to their
// mount and stop working once it is torn down.
type mount struct {
	name  StackName
	uid   string
	alive atomic.Bool

	// guarded by Navigator.mu
	path     []ScreenName
	signIn   *SignInScreen
	register *RegisterScreen
	list     *NoteListScreen
	editor   *NoteEditor
}

// Navigator maps session state to exactly one mounted screen stack.
//
// Every change of phase or identity tears the previous stack down (closing
// its note subscription) before the next stack is mounted, so a list mounted
// for one identity never receives notes meant for another.
type Navigator struct {
	sessions *SessionStore
	notes    *NoteRepository
	logger   *slog.Logger
	dispatch *dispatcher

	mu        sync.RWMutex
	phase     Phase
	uid       string
	current   *mount
	listeners []*navListener
	mounts    uint64
	teardowns uint64
	stop      func()
}

type navListener struct {
	fn      func(NavState)
	removed atomic.Bool
}

// NewNavigator creates a navigator in the resolving phase.
func NewNavigator(sessions *SessionStore, notes *NoteRepository, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Navigator{
		sessions: sessions,
		notes:    notes,
		logger:   logger,
		dispatch: newDispatcher("navigator", logger),
	}
}

// Start follows the session store. It is safe to call twice.
func (n *Navigator) Start() {
	n.mu.Lock()
	if n.stop != nil {
		n.mu.Unlock()
		return
	}
	n.stop = func() {}
	n.mu.Unlock()

	stop := n.sessions.OnChange(n.onSession)

	n.mu.Lock()
	n.stop = stop
	n.mu.Unlock()
}

// Close stops following the session and tears down the mounted stack.
func (n *Navigator) Close() {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	old := n.current
	n.current = nil
	n.phase = PhaseResolving
	n.uid = ""
	n.mu.Unlock()

	if stop != nil {
		stop()
	}
	if old != nil {
		n.teardown(old)
	}
	n.publish()
}

// Current returns the rendered navigation state.
func (n *Navigator) Current() NavState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stateLocked()
}

// OnChange registers a listener called with the navigation state after every
// change, and right away with the current state.
func (n *Navigator) OnChange(fn func(NavState)) (unsubscribe func()) {
	l := &navListener{fn: fn}
	n.dispatch.run(func() {
		n.mu.Lock()
		n.listeners = append(n.listeners, l)
		state := n.stateLocked()
		n.mu.Unlock()
		if !l.removed.Load() {
			l.fn(state)
		}
	})
	return func() {
		if l.removed.Swap(true) {
			return
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, candidate := range n.listeners {
			if candidate == l {
				n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
				break
			}
		}
	}
}

// SignIn returns the mounted sign-in screen.
func (n *Navigator) SignIn() (*SignInScreen, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil || n.current.name != StackAuth {
		return nil, ErrScreenUnmounted
	}
	return n.current.signIn, nil
}

// Register returns the registration screen if it is open.
func (n *Navigator) Register() (*RegisterScreen, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil || n.current.register == nil {
		return nil, ErrScreenUnmounted
	}
	return n.current.register, nil
}

// NoteList returns the mounted note list.
func (n *Navigator) NoteList() (*NoteListScreen, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil || n.current.name != StackApp {
		return nil, ErrNotAuthenticated
	}
	return n.current.list, nil
}

// Editor returns the open note editor.
func (n *Navigator) Editor() (*NoteEditor, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil || n.current.editor == nil {
		return nil, ErrScreenUnmounted
	}
	return n.current.editor, nil
}

// onSession runs on the session dispatcher, so transitions never overlap.
func (n *Navigator) onSession(s Session) {
	phase := PhaseUnauthenticated
	if s.Authenticated() {
		phase = PhaseAuthenticated
	}
	uid := s.UID()

	n.mu.Lock()
	if n.stop == nil || (phase == n.phase && uid == n.uid) {
		n.mu.Unlock()
		return
	}
	old := n.current
	n.current = nil
	n.phase = phase
	n.uid = uid
	n.mu.Unlock()

	if old != nil {
		n.teardown(old)
	}

	var next *mount
	switch phase {
	case PhaseAuthenticated:
		next = n.mountApp(*s.Identity)
	default:
		next = n.mountAuth()
	}

	n.mu.Lock()
	if n.stop == nil {
		// Closed while mounting: nothing will ever tear next down.
		n.mu.Unlock()
		n.teardown(next)
		return
	}
	n.current = next
	n.mounts++
	n.mu.Unlock()

	n.logger.Debug("stack mounted", "stack", next.name, "uid", uid)
	n.publish()

	// The list subscribes only once it is reachable through NoteList().
	if next.list != nil {
		next.list.open()
	}
}

func (n *Navigator) mountAuth() *mount {
	m := &mount{name: StackAuth, path: []ScreenName{ScreenSignIn}}
	m.alive.Store(true)
	m.signIn = &SignInScreen{nav: n, m: m}
	return m
}

func (n *Navigator) mountApp(id Identity) *mount {
	m := &mount{name: StackApp, uid: id.UID, path: []ScreenName{ScreenNoteList}}
	m.alive.Store(true)
	m.list = &NoteListScreen{
		nav:      n,
		m:        m,
		identity: id,
		loading:  true,
		dispatch: newDispatcher("note-list", n.logger),
	}
	return m
}

// teardown unmounts a stack and closes everything it owns.
func (n *Navigator) teardown(m *mount) {
	m.alive.Store(false)

	n.mu.Lock()
	list := m.list
	m.editor = nil
	m.register = nil
	n.teardowns++
	n.mu.Unlock()

	if list != nil {
		list.close()
	}
	n.logger.Debug("stack torn down", "stack", m.name, "uid", m.uid)
}

// push adds a screen on top of m when m is still the mounted stack.
func (n *Navigator) push(m *mount, screen ScreenName, attach func()) error {
	n.mu.Lock()
	if !m.alive.Load() || n.current != m {
		n.mu.Unlock()
		return ErrScreenUnmounted
	}
	if len(m.path) > 1 {
		m.path = m.path[:1]
	}
	m.path = append(m.path, screen)
	attach()
	n.mu.Unlock()

	n.publish()
	return nil
}

// pop returns to the stack root when still is true for the caller's screen.
// A pop from a screen that is no longer visible is a no-op.
func (n *Navigator) pop(m *mount, still func() bool, detach func()) bool {
	n.mu.Lock()
	if !m.alive.Load() || n.current != m || !still() {
		n.mu.Unlock()
		return false
	}
	m.path = m.path[:1]
	detach()
	n.mu.Unlock()

	n.publish()
	return true
}

func (n *Navigator) publish() {
	n.dispatch.run(func() {
		n.mu.RLock()
		state := n.stateLocked()
		listeners := append([]*navListener(nil), n.listeners...)
		n.mu.RUnlock()

		for _, l := range listeners {
			if !l.removed.Load() {
				n.notify(l, state)
			}
		}
	})
}

func (n *Navigator) notify(l *navListener, state NavState) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logPanic(n.logger, "navigation listener panic", recovered)
		}
	}()
	l.fn(state)
}

// stateLocked must be called with n.mu held.
func (n *Navigator) stateLocked() NavState {
	state := NavState{Phase: n.phase, UID: n.uid}
	if n.current != nil {
		state.Stack = n.current.name
		state.Screens = append([]ScreenName(nil), n.current.path...)
	}
	return state
}
