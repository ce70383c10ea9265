// Package watcher runs the background incremental sync loop. It owns
// the per-mailbox sync cursor: on each tick it asks the engine for
// messages newer than the cursor, records a notification per new
// message, and advances the cursor. Sync is at-least-once, so the
// notification insert is keyed idempotently by mailbox and UID at
// the loop level: a UID at or below the cursor is never re-reported.
package watcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexusmail/nexusmail/internal/mail"
	"github.com/nexusmail/nexusmail/internal/store"
)

// State represents the current state of the sync loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status is a snapshot of the watcher's condition.
type Status struct {
	State    State     `json:"state"`
	Mailbox  string    `json:"mailbox"`
	LastSync time.Time `json:"lastSync"`
	LastErr  string    `json:"lastError,omitempty"`
	NewCount int       `json:"newCount"`
}

// syncTimeout bounds a single sync pass.
const syncTimeout = 30 * time.Second

// Watcher polls one mailbox for new messages in the background.
type Watcher struct {
	engine   *mail.Engine
	store    store.Store
	mailbox  string
	interval time.Duration
	log      *logrus.Entry

	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      sync.Mutex
	running bool
	status  Status
}

// New creates a watcher for the given mailbox.
func New(engine *mail.Engine, s store.Store, mailbox string, interval time.Duration) *Watcher {
	if mailbox == "" {
		mailbox = mail.DefaultMailbox
	}
	if interval <= 0 {
		interval = 120 * time.Second
	}
	return &Watcher{
		engine:    engine,
		store:     s,
		mailbox:   mailbox,
		interval:  interval,
		log:       logrus.WithField("pkg", "watcher").WithField("mailbox", mailbox),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		status:    Status{State: StateIdle, Mailbox: mailbox},
	}
}

// Start launches the polling goroutine. Starting twice is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run()
}

// Stop halts the polling goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
}

// Refresh triggers an immediate sync pass without blocking.
func (w *Watcher) Refresh() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
		// A pass is already queued.
	}
}

// Status returns the current sync status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// ResetCursor forgets the mailbox's sync position, so the next pass
// reports everything from UID 1 up. Needed after server-side mailbox
// recreation, where UIDs may be reissued.
func (w *Watcher) ResetCursor(ctx context.Context) error {
	return w.store.SetSyncCursor(ctx, w.mailbox, 0)
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.syncOnce()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncOnce()
		case <-w.triggerCh:
			w.syncOnce()
		}
	}
}

// syncOnce performs one incremental pass: cursor → SyncSince →
// notifications → cursor advance.
func (w *Watcher) syncOnce() {
	session := w.engine.Current()
	if session == nil || !session.Alive() {
		w.setStatus(StateIdle, nil, 0)
		return
	}

	w.setStatus(StateRunning, nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	cursor, err := w.store.GetSyncCursor(ctx, w.mailbox)
	if err != nil {
		w.setStatus(StateError, err, 0)
		return
	}

	msgs, err := w.engine.SyncSince(ctx, session, strconv.FormatUint(uint64(cursor), 10), w.mailbox)
	if err != nil {
		w.log.WithError(err).Warn("sync pass failed")
		w.setStatus(StateError, err, 0)
		return
	}

	if len(msgs) == 0 {
		w.setStatus(StateIdle, nil, 0)
		return
	}

	for _, msg := range msgs {
		n := store.Notification{
			Mailbox: w.mailbox,
			UID:     msg.UID,
			Subject: msg.Subject,
			From:    msg.From,
		}
		if err := w.store.CreateNotification(ctx, n); err != nil {
			w.log.WithError(err).WithField("uid", msg.UID).Warn("notification not recorded")
		}
	}

	// Results are newest-first; the head carries the highest UID.
	if err := w.store.SetSyncCursor(ctx, w.mailbox, msgs[0].UID); err != nil {
		w.setStatus(StateError, err, len(msgs))
		return
	}

	w.log.WithField("count", len(msgs)).Info("new messages observed")
	w.setStatus(StateIdle, nil, len(msgs))
}

func (w *Watcher) setStatus(state State, err error, newCount int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.State = state
	w.status.NewCount = newCount
	w.status.LastErr = ""
	if err != nil {
		w.status.LastErr = err.Error()
	}
	if state == StateIdle && err == nil {
		w.status.LastSync = time.Now()
	}
}
