package core

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// NotesCollection is the default collection holding notes.
const NotesCollection = "notes"

// Field names of a note document.
const (
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldOwnerID   = "ownerId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

const maxKeyLength = 128

// NoteRepositoryConfig holds the configuration of a NoteRepository.
type NoteRepositoryConfig struct {
	Collection string // defaults to NotesCollection
	Logger     *slog.Logger
}

// NoteRepository implements note CRUD and owner-scoped live subscriptions
// on top of a DocumentStore.
type NoteRepository struct {
	store      DocumentStore
	collection string
	logger     *slog.Logger

	mu     sync.Mutex
	active map[*Subscription]struct{}
	opened uint64
}

// NewNoteRepository creates a repository over store.
func NewNoteRepository(store DocumentStore, config NoteRepositoryConfig) *NoteRepository {
	if config.Collection == "" {
		config.Collection = NotesCollection
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &NoteRepository{
		store:      store,
		collection: config.Collection,
		logger:     config.Logger,
		active:     make(map[*Subscription]struct{}),
	}
}

// Create stores a new note for ownerID and returns its ID.
// Title and content are trimmed; both timestamps are assigned by the store.
func (r *NoteRepository) Create(ctx context.Context, ownerID, title, content string) (string, error) {
	if err := ValidateKey("ownerId", ownerID); err != nil {
		return "", err
	}

	id, err := r.store.Add(ctx, r.collection, Fields{
		FieldTitle:     strings.TrimSpace(title),
		FieldContent:   strings.TrimSpace(content),
		FieldOwnerID:   ownerID,
		FieldCreatedAt: ServerTimestamp,
		FieldUpdatedAt: ServerTimestamp,
	})
	if err != nil {
		return "", &StoreError{Op: "create", Err: err}
	}

	r.logger.Debug("note created", "id", id, "owner", ownerID)
	return id, nil
}

// Update replaces title and content of a note and refreshes UpdatedAt.
// Ownership is enforced by the store's access rules, not here.
func (r *NoteRepository) Update(ctx context.Context, id, title, content string) error {
	if err := ValidateKey("id", id); err != nil {
		return err
	}

	err := r.store.Update(ctx, r.collection, id, Fields{
		FieldTitle:     strings.TrimSpace(title),
		FieldContent:   strings.TrimSpace(content),
		FieldUpdatedAt: ServerTimestamp,
	})
	if err != nil {
		return &StoreError{Op: "update", ID: id, Err: err}
	}

	r.logger.Debug("note updated", "id", id)
	return nil
}

// Delete removes a note. Deleting a missing note fails with a StoreError
// matching IsNotFound, which callers may ignore.
func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	if err := ValidateKey("id", id); err != nil {
		return err
	}

	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}

	r.logger.Debug("note deleted", "id", id)
	return nil
}

// Get retrieves a single note.
func (r *NoteRepository) Get(ctx context.Context, id string) (Note, error) {
	if err := ValidateKey("id", id); err != nil {
		return Note{}, err
	}

	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return Note{}, &StoreError{Op: "get", ID: id, Err: err}
	}
	return NoteFromDocument(doc), nil
}

// Subscribe opens a live, owner-scoped view of the notes of ownerID ordered
// by UpdatedAt descending. onNext receives the full list on every change.
//
// An empty or malformed ownerID never reaches the store: onNext is called
// once with an empty list and the returned handle is already closed.
//
// Callers must Unsubscribe before subscribing again for the same view;
// two live handles both deliver.
func (r *NoteRepository) Subscribe(ownerID string, onNext func([]Note)) *Subscription {
	sub := &Subscription{
		repo:    r,
		ownerID: ownerID,
		onNext:  onNext,
	}

	if err := ValidateKey("ownerId", ownerID); err != nil {
		r.logger.Warn("refusing unscoped note subscription", "owner", ownerID, "error", err)
		sub.state.Store(int32(SubscriptionUnsubscribed))
		sub.call([]Note{})
		return sub
	}

	sub.state.Store(int32(SubscriptionActive))
	r.track(sub)

	stop, err := r.store.Listen(r.ownerQuery(ownerID), sub.handleSnapshot, sub.handleError)
	if err != nil {
		sub.handleError(&StoreError{Op: "listen", Err: err})
		return sub
	}
	sub.attach(stop)

	r.logger.Debug("note subscription opened", "owner", ownerID)
	return sub
}

// ActiveSubscriptions returns the number of handles not yet unsubscribed.
// Tests use it to detect leaked subscriptions.
func (r *NoteRepository) ActiveSubscriptions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *NoteRepository) ownerQuery(ownerID string) Query {
	return Query{
		Collection: r.collection,
		Where:      []Filter{{Field: FieldOwnerID, Value: ownerID}},
		OrderBy:    FieldUpdatedAt,
		Direction:  Descending,
	}
}

func (r *NoteRepository) track(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[sub] = struct{}{}
	r.opened++
}

func (r *NoteRepository) untrack(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sub)
}

// ValidateKey checks an owner or document identifier.
func ValidateKey(field, v string) error {
	switch {
	case v == "":
		return &ValidationError{Field: field, Reason: "is required"}
	case len(v) > maxKeyLength:
		return &ValidationError{Field: field, Reason: "is too long"}
	case strings.TrimSpace(v) != v:
		return &ValidationError{Field: field, Reason: "has surrounding whitespace"}
	case strings.ContainsFunc(v, func(r rune) bool { return r == '/' || unicode.IsControl(r) }):
		return &ValidationError{Field: field, Reason: "contains invalid characters"}
	}
	return nil
}

// NoteFromDocument maps a raw document to a Note.
// Unresolved or missing timestamps become nil.
func NoteFromDocument(doc Document) Note {
	n := Note{ID: doc.ID}
	n.Title, _ = doc.Fields[FieldTitle].(string)
	n.Content, _ = doc.Fields[FieldContent].(string)
	n.OwnerID, _ = doc.Fields[FieldOwnerID].(string)
	n.CreatedAt = timeField(doc.Fields[FieldCreatedAt])
	n.UpdatedAt = timeField(doc.Fields[FieldUpdatedAt])
	return n
}

func timeField(v any) *time.Time {
	t, ok := AsTime(v)
	if !ok {
		return nil
	}
	return &t
}

// SortNotes orders notes by UpdatedAt descending.
// A nil UpdatedAt (write not yet acknowledged) counts as the oldest value so
// pending notes stay at the end instead of jumping around. Ties fall back to
// CreatedAt descending, then ID.
func SortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if c := compareTimePtr(notes[i].UpdatedAt, notes[j].UpdatedAt); c != 0 {
			return c > 0
		}
		if c := compareTimePtr(notes[i].CreatedAt, notes[j].CreatedAt); c != 0 {
			return c > 0
		}
		return notes[i].ID < notes[j].ID
	})
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
