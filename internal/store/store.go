package store

import (
	"context"
	"time"
)

// Draft is a locally saved message draft. Drafts are encrypted at
// rest; ID "last_active" is the implicit autosave slot.
type Draft struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	CC        string    `json:"cc"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultDraftID is used when a draft is saved without an ID.
const DefaultDraftID = "last_active"

// Contact is one address book entry. Pinyin holds the phonetic
// transliteration of the name for search; Frequency counts how often
// the contact has been used.
type Contact struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Pinyin    string    `json:"pinyin,omitempty"`
	Frequency int       `json:"frequency"`
	LastUsed  time.Time `json:"lastUsed"`
}

// Notification records a new message observed by the background
// watcher, for the UI to surface.
type Notification struct {
	ID        string    `json:"id"`
	Mailbox   string    `json:"mailbox"`
	UID       uint32    `json:"uid"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store defines the persistence interface for drafts, contacts,
// notifications, and per-mailbox sync cursors.
type Store interface {
	SaveDraft(ctx context.Context, draft Draft) error
	// GetDraft returns nil without error when the draft is missing
	// or cannot be decrypted.
	GetDraft(ctx context.Context, id string) (*Draft, error)

	SaveContact(ctx context.Context, c Contact) error
	GetContact(ctx context.Context, email string) (*Contact, error)
	GetContacts(ctx context.Context) ([]Contact, error)

	CreateNotification(ctx context.Context, n Notification) error
	GetUnreadNotifications(ctx context.Context) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	GetSyncCursor(ctx context.Context, mailbox string) (uint32, error)
	SetSyncCursor(ctx context.Context, mailbox string, lastUID uint32) error
}
