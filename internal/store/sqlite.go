package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/nexusmail/nexusmail/internal/secure"
)

// SQLiteStore implements the Store interface using a local SQLite
// database. Draft payloads are encrypted with the given cipher
// before they touch disk.
type SQLiteStore struct {
	db     *sqlx.DB
	cipher *secure.Cipher
	log    *logrus.Entry
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, cipher *secure.Cipher) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		cipher: cipher,
		log:    logrus.WithField("pkg", "store"),
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveDraft encrypts and upserts a draft. An empty ID falls back to
// the autosave slot.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft Draft) error {
	if draft.ID == "" {
		draft.ID = DefaultDraftID
	}
	if draft.UpdatedAt.IsZero() {
		draft.UpdatedAt = time.Now()
	}

	plain, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshaling draft %s: %w", draft.ID, err)
	}

	payload, err := s.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypting draft %s: %w", draft.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drafts (id, payload, updated_at)
		VALUES (?, ?, ?)`,
		draft.ID, payload, draft.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting draft %s: %w", draft.ID, err)
	}

	return nil
}

// GetDraft decrypts and returns a draft. Missing drafts and payloads
// that fail decryption both return nil; a corrupted draft should
// degrade to "not found" for the caller.
func (s *SQLiteStore) GetDraft(ctx context.Context, id string) (*Draft, error) {
	if id == "" {
		id = DefaultDraftID
	}

	var payload []byte
	err := s.db.GetContext(ctx, &payload, "SELECT payload FROM drafts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting draft %s: %w", id, err)
	}

	plain, err := s.cipher.Decrypt(payload)
	if err != nil {
		s.log.WithError(err).WithField("id", id).Warn("draft failed to decrypt")
		return nil, nil
	}

	var draft Draft
	if err := json.Unmarshal(plain, &draft); err != nil {
		s.log.WithError(err).WithField("id", id).Warn("draft payload unreadable")
		return nil, nil
	}

	return &draft, nil
}

// SaveContact upserts a contact keyed by email.
func (s *SQLiteStore) SaveContact(ctx context.Context, c Contact) error {
	if c.LastUsed.IsZero() {
		c.LastUsed = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO contacts (email, name, avatar, pinyin, frequency, last_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Email, c.Name, c.Avatar, c.Pinyin, c.Frequency, c.LastUsed.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting contact %s: %w", c.Email, err)
	}

	return nil
}

// GetContact returns a single contact by email, or nil when unknown.
func (s *SQLiteStore) GetContact(ctx context.Context, email string) (*Contact, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM contacts WHERE email = ?", email)

	c, err := scanContactRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact %s: %w", email, err)
	}

	return &c, nil
}

// GetContacts returns all contacts ordered by usage frequency.
func (s *SQLiteStore) GetContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM contacts ORDER BY frequency DESC, last_used DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, mailbox, uid, subject, sender, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Mailbox, n.UID, n.Subject, n.From,
		boolToInt(n.Read), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	return nil
}

// GetUnreadNotifications retrieves all unread notifications, newest
// first.
func (s *SQLiteStore) GetUnreadNotifications(ctx context.Context) ([]Notification, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM notifications WHERE read = 0 ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying unread notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// GetSyncCursor returns the last observed UID for a mailbox, zero
// when the mailbox has never been synced.
func (s *SQLiteStore) GetSyncCursor(ctx context.Context, mailbox string) (uint32, error) {
	var lastUID uint32
	err := s.db.GetContext(ctx, &lastUID,
		"SELECT last_uid FROM sync_cursors WHERE mailbox = ?", mailbox,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting sync cursor for %s: %w", mailbox, err)
	}
	return lastUID, nil
}

// SetSyncCursor records the last observed UID for a mailbox.
func (s *SQLiteStore) SetSyncCursor(ctx context.Context, mailbox string, lastUID uint32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_cursors (mailbox, last_uid, updated_at)
		VALUES (?, ?, ?)`,
		mailbox, lastUID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting sync cursor for %s: %w", mailbox, err)
	}
	return nil
}

// scanContact scans a contact row from a sqlx.Rows result set.
func scanContact(rows *sqlx.Rows) (Contact, error) {
	var (
		c        Contact
		lastUsed time.Time
	)

	err := rows.Scan(&c.Email, &c.Name, &c.Avatar, &c.Pinyin, &c.Frequency, &lastUsed)
	if err != nil {
		return Contact{}, fmt.Errorf("scanning contact row: %w", err)
	}

	c.LastUsed = lastUsed
	return c, nil
}

// scanContactRow scans a single contact row from a sqlx.Row.
func scanContactRow(row *sqlx.Row) (Contact, error) {
	var (
		c        Contact
		lastUsed time.Time
	)

	err := row.Scan(&c.Email, &c.Name, &c.Avatar, &c.Pinyin, &c.Frequency, &lastUsed)
	if err != nil {
		return Contact{}, err
	}

	c.LastUsed = lastUsed
	return c, nil
}

// scanNotification scans a notification row from a sqlx.Rows result
// set.
func scanNotification(rows *sqlx.Rows) (Notification, error) {
	var (
		n         Notification
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(&n.ID, &n.Mailbox, &n.UID, &n.Subject, &n.From, &readInt, &createdAt)
	if err != nil {
		return Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Read = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
