// Note is the central entity of the domain.
package core

import (
	"strings"
	"time"
)

// Note is a single user-owned note.
// CreatedAt and UpdatedAt stay nil until the store acknowledged the write.
type Note struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	OwnerID   string     `json:"ownerId"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// DisplayTitle returns the title or a placeholder for untitled notes.
func (n Note) DisplayTitle() string {
	if n.Title == "" {
		return "Untitled"
	}
	return n.Title
}

// DisplayContent returns the content or a placeholder for empty notes.
func (n Note) DisplayContent() string {
	if n.Content == "" {
		return "No content"
	}
	return n.Content
}

// Identity is an authenticated principal as reported by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Handle returns the name used to greet the user.
func (i Identity) Handle() string {
	if i.DisplayName != "" {
		return "@" + i.DisplayName
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return "@user"
}

// Session is the authentication state of the process.
// A nil Identity means nobody is signed in.
type Session struct {
	Identity *Identity `json:"identity,omitempty"`
	Loading  bool      `json:"loading"`
}

// Authenticated reports whether the session carries an identity.
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// UID returns the identity UID or an empty string.
func (s Session) UID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UID
}

// Fields are the raw key-value pairs of a stored document.
type Fields map[string]any

// Document is a raw record of the document store.
type Document struct {
	ID     string
	Fields Fields
}

// EventType represents the type of change in a collection.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in a collection.
type Event struct {
	Type       EventType
	Collection string
	ID         string
	Timestamp  int64 // Unix timestamp
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return string(e.Type) + " " + e.Collection + "/" + e.ID
}

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp asks the store to write its acknowledgment time in place of the value.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
