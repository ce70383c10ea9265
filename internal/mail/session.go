package mail

import (
	"sync"
	"sync/atomic"
)

// Session is the owned handle to one authenticated connection,
// returned by Connect and passed into every subsequent engine call.
//
// Lifecycle: a session is live from the moment Connect returns until
// either the transport reports an asynchronous error (invalidation)
// or a newer Connect replaces it. A failed synchronous operation does
// not invalidate the session; only a transport-level error event
// does. There is no way back from invalidated: reconnect for a fresh
// handle.
type Session struct {
	transport Transport
	mailbox   string
	alive     atomic.Bool

	// mu serializes operations on this session. The selected mailbox
	// is shared server-side state; without this, concurrent fetches
	// would race each other's Open.
	mu sync.Mutex
}

// Alive reports whether the session can still be used.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// Mailbox returns the mailbox most recently opened on this session.
func (s *Session) Mailbox() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mailbox
}

// invalidate clears the liveness flag so subsequent operations fail
// fast with ErrNotConnected instead of hanging on a dead connection.
func (s *Session) invalidate() {
	s.alive.Store(false)
}
