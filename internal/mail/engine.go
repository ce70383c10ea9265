package mail

import (
	"context"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMailbox is opened by Connect to validate reachability
	// and is the fallback for operations that omit a mailbox.
	DefaultMailbox = "INBOX"

	// DefaultFetchLimit is used when a caller passes a non-positive
	// limit to FetchRecent.
	DefaultFetchLimit = 20
)

// Engine owns the mailbox synchronization logic: connection
// lifecycle, range-based initial fetch, UID-delta incremental sync,
// folder discovery, and move/create operations. One engine manages at
// most one live session at a time; reconnecting replaces and closes
// the previous one.
type Engine struct {
	dial DialFunc
	log  *logrus.Entry

	mu      sync.Mutex
	session *Session
	creds   *Credentials
}

// NewEngine creates an engine using the given dialer. A nil dialer
// selects the go-imap transport.
func NewEngine(dial DialFunc) *Engine {
	if dial == nil {
		dial = DialIMAP
	}
	return &Engine{
		dial: dial,
		log:  logrus.WithField("pkg", "mail"),
	}
}

// Connect establishes a session for the given account and opens the
// default mailbox to validate reachability before returning. On any
// failure it discards partial state and returns a ConnectionError;
// there is no retry. A prior live session is invalidated and closed.
func (e *Engine) Connect(ctx context.Context, creds Credentials) (*Session, error) {
	// Credentials are remembered even if the attempt fails, so that
	// SendMessage can submit via SMTP independently of IMAP health.
	e.mu.Lock()
	c := creds
	e.creds = &c
	e.mu.Unlock()

	sess := &Session{}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	transport, err := e.dial(dialCtx, creds, func(cause error) {
		e.log.WithError(cause).Warn("transport error event, invalidating session")
		sess.invalidate()
	})
	if err != nil {
		return nil, &ConnectionError{Host: creds.Host, Cause: err}
	}

	if _, err := transport.Open(ctx, DefaultMailbox); err != nil {
		_ = transport.Close()
		return nil, &ConnectionError{Host: creds.Host, Cause: err}
	}

	sess.transport = transport
	sess.mailbox = DefaultMailbox
	sess.alive.Store(true)

	e.mu.Lock()
	old := e.session
	e.session = sess
	e.mu.Unlock()

	if old != nil {
		old.invalidate()
		_ = old.transport.Close()
	}

	e.log.WithFields(logrus.Fields{
		"host": creds.Host,
		"user": creds.User,
	}).Info("connected")
	return sess, nil
}

// Current returns the engine's live session, or nil if none exists.
func (e *Engine) Current() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// FetchRecent returns the most recent limit messages of the mailbox,
// newest first. An empty mailbox yields an empty slice, not an error.
// Fetching never marks messages as read, and a single message failing
// to decode is dropped without failing the batch.
func (e *Engine) FetchRecent(ctx context.Context, s *Session, limit int, mailbox string) ([]Message, error) {
	if s == nil || !s.Alive() {
		return nil, ErrNotConnected
	}
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	if mailbox == "" {
		mailbox = DefaultMailbox
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.transport.Open(ctx, mailbox)
	if err != nil {
		return nil, err
	}
	s.mailbox = mailbox

	if total == 0 {
		return []Message{}, nil
	}

	start := uint32(1)
	if uint32(limit) < total {
		start = total - uint32(limit) + 1
	}

	e.log.WithFields(logrus.Fields{
		"mailbox": mailbox,
		"start":   start,
		"end":     total,
	}).Debug("fetching sequence range")

	raws, err := s.transport.FetchRange(ctx, start, total)
	if err != nil {
		return nil, err
	}

	// Servers return ascending sequence order; present newest first.
	reverse(raws)
	return e.decodeAll(ctx, raws), nil
}

// SyncSince returns all messages with UID strictly greater than
// lastUID, newest first. This is an at-least-once primitive: a stale
// cursor can resurface messages, and callers merge idempotently by
// UID. A cursor that does not parse as a non-negative integer fails
// before any query is issued.
func (e *Engine) SyncSince(ctx context.Context, s *Session, lastUID string, mailbox string) ([]Message, error) {
	last, err := strconv.ParseUint(lastUID, 10, 32)
	if err != nil {
		return nil, &InvalidCursorError{Value: lastUID}
	}
	if s == nil || !s.Alive() {
		return nil, ErrNotConnected
	}
	if mailbox == "" {
		mailbox = DefaultMailbox
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.transport.Open(ctx, mailbox); err != nil {
		return nil, err
	}
	s.mailbox = mailbox

	raws, err := s.transport.FetchNewer(ctx, uint32(last))
	if err != nil {
		return nil, err
	}

	// Some servers treat the range lower bound inclusively; enforce
	// the strict cursor contract here.
	fresh := raws[:0]
	for _, raw := range raws {
		if uint64(raw.UID) > last {
			fresh = append(fresh, raw)
		}
	}
	if len(fresh) == 0 {
		return []Message{}, nil
	}

	reverse(fresh)
	return e.decodeAll(ctx, fresh), nil
}

// ListFolders flattens the server's mailbox tree to full path names
// in pre-order. Non-selectable nodes are excluded but their children
// are still visited; each child path is joined with its parent's
// delimiter.
func (e *Engine) ListFolders(ctx context.Context, s *Session) ([]string, error) {
	if s == nil || !s.Alive() {
		return nil, ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.transport.ListMailboxes(ctx)
	if err != nil {
		return nil, err
	}

	var paths []string
	var walk func(node *Folder, prefix string)
	walk = func(node *Folder, prefix string) {
		path := prefix + node.Name
		if node.Selectable {
			paths = append(paths, path)
		}
		for _, child := range node.Children {
			walk(child, path+node.Delimiter)
		}
	}
	for _, root := range tree {
		walk(root, "")
	}

	e.log.WithField("count", len(paths)).Debug("folders listed")
	return paths, nil
}

// MoveMessage moves one message by UID from source to target. The
// source mailbox is opened first because it is the move's implicit
// context. The move is a single server-side request; no rollback is
// needed.
func (e *Engine) MoveMessage(ctx context.Context, s *Session, uid uint32, target, source string) error {
	if s == nil || !s.Alive() {
		return ErrNotConnected
	}
	if source == "" {
		source = DefaultMailbox
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.transport.Open(ctx, source); err != nil {
		return &MoveError{UID: uid, Target: target, Cause: err}
	}
	s.mailbox = source

	if err := s.transport.Move(ctx, uid, target); err != nil {
		return &MoveError{UID: uid, Target: target, Cause: err}
	}

	e.log.WithFields(logrus.Fields{
		"uid":    uid,
		"source": source,
		"target": target,
	}).Info("message moved")
	return nil
}

// CreateFolder creates a mailbox by path name. Callers must re-invoke
// ListFolders to observe the change; nothing is cached.
func (e *Engine) CreateFolder(ctx context.Context, s *Session, name string) error {
	if s == nil || !s.Alive() {
		return ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transport.CreateMailbox(ctx, name); err != nil {
		return &FolderError{Name: name, Cause: err}
	}

	e.log.WithField("name", name).Info("folder created")
	return nil
}

// decodeAll decodes a batch concurrently, preserving input order.
// Batch latency is bounded by the slowest single decode. A failed
// decode is logged and dropped; it never fails its siblings.
func (e *Engine) decodeAll(ctx context.Context, raws []RawMessage) []Message {
	decoded := make([]*Message, len(raws))

	g, _ := errgroup.WithContext(ctx)
	for i, raw := range raws {
		g.Go(func() error {
			msg, err := decodeMessage(raw)
			if err != nil {
				e.log.WithError(err).WithField("uid", raw.UID).
					Warn("dropping undecodable message")
				return nil
			}
			decoded[i] = msg
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Message, 0, len(raws))
	for _, msg := range decoded {
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out
}

func reverse(raws []RawMessage) {
	for i, j := 0, len(raws)-1; i < j; i, j = i+1, j-1 {
		raws[i], raws[j] = raws[j], raws[i]
	}
}
