package mail

import (
	"context"
	"errors"
	"net"
	"sync"
)

// Transport is the narrow adapter the engine speaks to a remote mail
// store through. Implementations must not require callers to reach
// into library internals; everything the engine needs is expressed
// here.
//
// Open selects a mailbox and returns its total message count, which
// is authoritative only at the instant of the call. FetchRange
// fetches full bodies for an inclusive 1-based sequence range without
// setting the \Seen flag. FetchNewer fetches full bodies for UIDs in
// [lastUID+1, *]; implementations may return boundary-inclusive
// results, the engine filters defensively. ListMailboxes returns the
// fully materialized mailbox tree.
type Transport interface {
	Open(ctx context.Context, mailbox string) (total uint32, err error)
	FetchRange(ctx context.Context, start, end uint32) ([]RawMessage, error)
	FetchNewer(ctx context.Context, lastUID uint32) ([]RawMessage, error)
	Move(ctx context.Context, uid uint32, target string) error
	CreateMailbox(ctx context.Context, name string) error
	ListMailboxes(ctx context.Context) ([]*Folder, error)
	Close() error
}

// DialFunc opens a Transport for the given account. onFatal is
// invoked at most once if the underlying connection dies
// asynchronously after a successful dial (server-initiated close,
// idle timeout); it must not be called for ordinary command errors.
type DialFunc func(ctx context.Context, creds Credentials, onFatal func(error)) (Transport, error)

// watchConn wraps a net.Conn and reports the first fatal read or
// write error through a callback. Locally initiated closes are not
// reported.
type watchConn struct {
	net.Conn
	once    sync.Once
	onFatal func(error)
}

func (c *watchConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.observe(err)
	return n, err
}

func (c *watchConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.observe(err)
	return n, err
}

func (c *watchConn) observe(err error) {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return
	}
	c.once.Do(func() {
		if c.onFatal != nil {
			c.onFatal(err)
		}
	})
}
