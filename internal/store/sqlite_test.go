package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nexusmail/nexusmail/internal/secure"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	cipher, err := secure.NewCipher("test-secret")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	s, err := NewSQLiteStore(":memory:", cipher)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDraftRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	draft := Draft{
		ID:      "d1",
		To:      "bob@example.com",
		CC:      "carol@example.com",
		Subject: "Quarterly numbers",
		Body:    "Attached below.",
	}
	if err := s.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	got, err := s.GetDraft(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got == nil {
		t.Fatal("GetDraft returned nil for an existing draft")
	}
	if got.To != draft.To || got.Subject != draft.Subject || got.Body != draft.Body {
		t.Errorf("draft round trip mismatch: got %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be populated on save")
	}
}

func TestDraftDefaultSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveDraft(ctx, Draft{Body: "autosaved"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	got, err := s.GetDraft(ctx, "")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got == nil || got.Body != "autosaved" {
		t.Fatalf("empty ID should address the %q slot, got %+v", DefaultDraftID, got)
	}
	if got.ID != DefaultDraftID {
		t.Errorf("draft ID: got %q, want %q", got.ID, DefaultDraftID)
	}
}

func TestDraftMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetDraft(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got != nil {
		t.Errorf("missing draft should be nil, got %+v", got)
	}
}

func TestDraftEncryptedAtRest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveDraft(ctx, Draft{ID: "d1", Body: "highly sensitive text"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	var payload []byte
	if err := s.db.Get(&payload, "SELECT payload FROM drafts WHERE id = 'd1'"); err != nil {
		t.Fatalf("reading stored payload: %v", err)
	}
	if bytes.Contains(payload, []byte("highly sensitive")) {
		t.Error("draft body stored in cleartext")
	}
}

func TestDraftUndecryptableDegradesToMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(
		"INSERT INTO drafts (id, payload, updated_at) VALUES ('bad', ?, ?)",
		[]byte("garbage that is not a sealed blob"), time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("inserting corrupt row: %v", err)
	}

	got, err := s.GetDraft(ctx, "bad")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got != nil {
		t.Errorf("undecryptable draft should degrade to missing, got %+v", got)
	}
}

func TestContactUpsertAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contacts := []Contact{
		{Email: "rare@example.com", Name: "Rare", Frequency: 1},
		{Email: "frequent@example.com", Name: "Frequent", Frequency: 9},
		{Email: "mid@example.com", Name: "Mid", Frequency: 4},
	}
	for _, c := range contacts {
		if err := s.SaveContact(ctx, c); err != nil {
			t.Fatalf("SaveContact(%s): %v", c.Email, err)
		}
	}

	got, err := s.GetContacts(ctx)
	if err != nil {
		t.Fatalf("GetContacts: %v", err)
	}
	want := []string{"frequent@example.com", "mid@example.com", "rare@example.com"}
	if len(got) != len(want) {
		t.Fatalf("contacts: got %d, want %d", len(got), len(want))
	}
	for i, email := range want {
		if got[i].Email != email {
			t.Errorf("position %d: got %q, want %q", i, got[i].Email, email)
		}
	}

	// Re-saving the same email replaces, not duplicates.
	if err := s.SaveContact(ctx, Contact{Email: "mid@example.com", Name: "Renamed", Frequency: 5}); err != nil {
		t.Fatalf("SaveContact upsert: %v", err)
	}
	one, err := s.GetContact(ctx, "mid@example.com")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if one == nil || one.Name != "Renamed" || one.Frequency != 5 {
		t.Errorf("upsert did not replace: %+v", one)
	}

	all, err := s.GetContacts(ctx)
	if err != nil {
		t.Fatalf("GetContacts: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("upsert created a duplicate, got %d contacts", len(all))
	}
}

func TestGetContactUnknown(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetContact(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got != nil {
		t.Errorf("unknown contact should be nil, got %+v", got)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, subject := range []string{"first", "second"} {
		n := Notification{
			Mailbox:   "INBOX",
			UID:       uint32(100 + i),
			Subject:   subject,
			From:      "sender@example.com",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}

	unread, err := s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("GetUnreadNotifications: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("unread count: got %d, want 2", len(unread))
	}
	if unread[0].Subject != "second" {
		t.Errorf("newest first: got %q at head", unread[0].Subject)
	}
	if unread[0].ID == "" {
		t.Error("notification should be assigned an ID on insert")
	}

	if err := s.MarkNotificationRead(ctx, unread[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}

	unread, err = s.GetUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("GetUnreadNotifications: %v", err)
	}
	if len(unread) != 1 || unread[0].Subject != "first" {
		t.Errorf("after marking read: got %+v", unread)
	}
}

func TestSyncCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cursor, err := s.GetSyncCursor(ctx, "INBOX")
	if err != nil {
		t.Fatalf("GetSyncCursor: %v", err)
	}
	if cursor != 0 {
		t.Errorf("unsynced mailbox cursor: got %d, want 0", cursor)
	}

	if err := s.SetSyncCursor(ctx, "INBOX", 4200); err != nil {
		t.Fatalf("SetSyncCursor: %v", err)
	}
	if err := s.SetSyncCursor(ctx, "Archive", 7); err != nil {
		t.Fatalf("SetSyncCursor: %v", err)
	}

	cursor, err = s.GetSyncCursor(ctx, "INBOX")
	if err != nil {
		t.Fatalf("GetSyncCursor: %v", err)
	}
	if cursor != 4200 {
		t.Errorf("INBOX cursor: got %d, want 4200", cursor)
	}

	cursor, err = s.GetSyncCursor(ctx, "Archive")
	if err != nil {
		t.Fatalf("GetSyncCursor: %v", err)
	}
	if cursor != 7 {
		t.Errorf("Archive cursor: got %d, want 7", cursor)
	}

	// Cursors are per-mailbox overwrite slots.
	if err := s.SetSyncCursor(ctx, "INBOX", 4201); err != nil {
		t.Fatalf("SetSyncCursor: %v", err)
	}
	cursor, _ = s.GetSyncCursor(ctx, "INBOX")
	if cursor != 4201 {
		t.Errorf("overwritten cursor: got %d, want 4201", cursor)
	}
}
