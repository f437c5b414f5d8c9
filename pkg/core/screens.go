package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// SignInScreen is the entry screen of the auth stack.
type SignInScreen struct {
	nav *Navigator
	m   *mount
}

// Mounted reports whether the auth stack holding this screen is still mounted.
func (s *SignInScreen) Mounted() bool {
	return s.m.alive.Load()
}

// Submit validates the form and signs in.
func (s *SignInScreen) Submit(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &ValidationError{Reason: "please fill in all fields"}
	}
	if !s.Mounted() {
		return ErrScreenUnmounted
	}
	return s.nav.sessions.SignIn(ctx, email, password)
}

// OpenRegister navigates to the registration screen.
func (s *SignInScreen) OpenRegister() (*RegisterScreen, error) {
	r := &RegisterScreen{nav: s.nav, m: s.m}
	err := s.nav.push(s.m, ScreenRegister, func() { s.m.register = r })
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterScreen creates accounts. It lives on top of the sign-in screen.
type RegisterScreen struct {
	nav *Navigator
	m   *mount
}

// Submit validates the form, creates the account and signs it in.
func (r *RegisterScreen) Submit(ctx context.Context, name, email, password, confirm string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	switch {
	case name == "" || email == "" || password == "" || confirm == "":
		return &ValidationError{Reason: "please fill in all fields"}
	case password != confirm:
		return &ValidationError{Field: "password", Reason: "does not match confirmation"}
	case len(password) < MinPasswordLength:
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	if !r.m.alive.Load() {
		return ErrScreenUnmounted
	}
	return r.nav.sessions.Register(ctx, name, email, password)
}

// Back returns to the sign-in screen.
func (r *RegisterScreen) Back() {
	r.nav.pop(r.m, func() bool { return r.m.register == r }, func() { r.m.register = nil })
}

// NoteListScreen is the root of the app stack. It owns the live note
// subscription of the signed-in identity.
type NoteListScreen struct {
	nav      *Navigator
	m        *mount
	identity Identity

	// dispatch orders listener calls: the first call of OnUpdate and every
	// delivered list reach listeners one at a time, newest last.
	dispatch *dispatcher

	mu        sync.Mutex
	gen       uint64
	sub       *Subscription
	notes     []Note
	loading   bool
	listeners []*listListener
}

type listListener struct {
	fn      func([]Note)
	removed atomic.Bool
}

// Mounted reports whether the app stack holding this list is still mounted.
func (l *NoteListScreen) Mounted() bool {
	return l.m.alive.Load()
}

// Identity returns the identity the list is scoped to.
func (l *NoteListScreen) Identity() Identity {
	return l.identity
}

// Greeting returns the handle shown in the header.
func (l *NoteListScreen) Greeting() string {
	return l.identity.Handle()
}

// Notes returns the latest delivered list.
func (l *NoteListScreen) Notes() []Note {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneNotes(l.notes)
}

// Loading reports whether the first list of the current subscription is pending.
func (l *NoteListScreen) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Subscription returns the live handle, nil once the list is closed.
func (l *NoteListScreen) Subscription() *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub
}

// OnUpdate registers fn for every delivered list. fn is called right away
// when a list was already delivered; a list delivered concurrently always
// reaches fn after that first call.
func (l *NoteListScreen) OnUpdate(fn func([]Note)) (unsubscribe func()) {
	ll := &listListener{fn: fn}

	l.dispatch.run(func() {
		l.mu.Lock()
		l.listeners = append(l.listeners, ll)
		loaded := !l.loading
		notes := cloneNotes(l.notes)
		l.mu.Unlock()

		if loaded && l.Mounted() && !ll.removed.Load() {
			l.notify(ll, notes)
		}
	})

	return func() {
		if ll.removed.Swap(true) {
			return
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, candidate := range l.listeners {
			if candidate == ll {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				break
			}
		}
	}
}

// Refresh replaces the live subscription with a fresh one.
// The old handle is closed before the new one is opened.
func (l *NoteListScreen) Refresh() error {
	if !l.Mounted() {
		return ErrScreenUnmounted
	}
	l.open()
	return nil
}

// Delete removes a note. A missing note yields an error matching IsNotFound.
func (l *NoteListScreen) Delete(ctx context.Context, id string) error {
	if !l.Mounted() {
		return ErrScreenUnmounted
	}
	return l.nav.notes.Delete(ctx, id)
}

// OpenEditor navigates to the note editor. A nil note opens an empty editor
// that creates a note on save; otherwise the editor updates that note.
func (l *NoteListScreen) OpenEditor(note *Note) (*NoteEditor, error) {
	e := &NoteEditor{nav: l.nav, m: l.m, ownerID: l.identity.UID}
	if note != nil {
		existing := *note
		e.existing = &existing
	}
	err := l.nav.push(l.m, ScreenNoteEditor, func() { l.m.editor = e })
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SignOut ends the session; the navigator then swaps to the auth stack.
func (l *NoteListScreen) SignOut(ctx context.Context) error {
	if !l.Mounted() {
		return ErrScreenUnmounted
	}
	return l.nav.sessions.SignOut(ctx)
}

// open (re)subscribes for the list identity, closing the previous handle first.
func (l *NoteListScreen) open() {
	l.mu.Lock()
	if !l.Mounted() {
		l.mu.Unlock()
		return
	}
	l.gen++
	gen := l.gen
	old := l.sub
	l.sub = nil
	l.loading = true
	l.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}

	sub := l.nav.notes.Subscribe(l.identity.UID, func(notes []Note) {
		l.receive(gen, notes)
	})

	l.mu.Lock()
	if l.gen != gen || !l.Mounted() {
		l.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	l.sub = sub
	l.mu.Unlock()
}

// close unsubscribes and makes every pending delivery a no-op.
func (l *NoteListScreen) close() {
	l.mu.Lock()
	l.gen++
	sub := l.sub
	l.sub = nil
	l.notes = nil
	l.listeners = nil
	l.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (l *NoteListScreen) receive(gen uint64, notes []Note) {
	l.dispatch.run(func() {
		l.mu.Lock()
		if gen != l.gen || !l.Mounted() {
			l.mu.Unlock()
			return
		}
		l.notes = notes
		l.loading = false
		listeners := append([]*listListener(nil), l.listeners...)
		l.mu.Unlock()

		for _, ll := range listeners {
			if !ll.removed.Load() {
				l.notify(ll, cloneNotes(notes))
			}
		}
	})
}

func (l *NoteListScreen) notify(ll *listListener, notes []Note) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logPanic(l.nav.logger, "note list listener panic", recovered)
		}
	}()
	ll.fn(notes)
}

// NoteEditor edits an existing note or drafts a new one.
type NoteEditor struct {
	nav      *Navigator
	m        *mount
	ownerID  string
	existing *Note
	saving   atomic.Bool
	savedID  atomic.Value
}

// Existing returns the note being edited, nil for a new note.
func (e *NoteEditor) Existing() *Note {
	if e.existing == nil {
		return nil
	}
	n := *e.existing
	return &n
}

// NoteID returns the ID of the edited note, or of the created one after a
// successful save; empty before a new note was saved.
func (e *NoteEditor) NoteID() string {
	if id, ok := e.savedID.Load().(string); ok {
		return id
	}
	if e.existing != nil {
		return e.existing.ID
	}
	return ""
}

// Title returns the header of the editor.
func (e *NoteEditor) Title() string {
	if e.existing != nil {
		return "Edit Note"
	}
	return "New Note"
}

// Saving reports whether a save is in flight.
func (e *NoteEditor) Saving() bool {
	return e.saving.Load()
}

// Open reports whether the editor is still the visible screen.
func (e *NoteEditor) Open() bool {
	e.nav.mu.RLock()
	defer e.nav.mu.RUnlock()
	return e.m.alive.Load() && e.nav.current == e.m && e.m.editor == e
}

// Save updates the existing note or creates a new one, then returns to the
// note list, which picks the change up from its live subscription.
// If the editor was dismissed while the write was in flight, the write still
// completes and no navigation happens.
func (e *NoteEditor) Save(ctx context.Context, title, content string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !e.Open() {
		return ErrScreenUnmounted
	}
	if !e.saving.CompareAndSwap(false, true) {
		return &ValidationError{Reason: "save already in progress"}
	}
	defer e.saving.Store(false)

	var err error
	id := ""
	if e.existing != nil {
		id = e.existing.ID
		err = e.nav.notes.Update(ctx, id, title, content)
	} else {
		id, err = e.nav.notes.Create(ctx, e.ownerID, title, content)
	}
	if err != nil {
		return err
	}
	e.savedID.Store(id)

	if !e.close() {
		e.nav.logger.Debug("editor dismissed before save completed")
	}
	return nil
}

// Cancel returns to the note list without saving.
func (e *NoteEditor) Cancel() {
	e.close()
}

func (e *NoteEditor) close() bool {
	return e.nav.pop(e.m, func() bool { return e.m.editor == e }, func() { e.m.editor = nil })
}

// cloneNotes copies notes; the copy is never nil.
func cloneNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	copy(out, notes)
	return out
}
