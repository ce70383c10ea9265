package mail

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation is attempted
	// without a live session. The caller must reconnect.
	ErrNotConnected = errors.New("no live mail session")

	// ErrConfigMissing is returned by SendMessage when no account
	// credentials have been provided yet.
	ErrConfigMissing = errors.New("no account configured")
)

// ConnectionError reports a failed connection attempt: network,
// TLS, or authentication failure during Connect.
type ConnectionError struct {
	Host  string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Host, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// InvalidCursorError reports a sync cursor that does not parse as a
// non-negative integer. This is a caller bug; no query is issued.
type InvalidCursorError struct {
	Value string
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid sync cursor %q", e.Value)
}

// DecodeError reports a single message that could not be decoded.
// It is logged and the message dropped; it never fails a batch.
type DecodeError struct {
	UID   uint32
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding message uid %d: %v", e.UID, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// MoveError reports a rejected move operation, with the transport
// cause attached.
type MoveError struct {
	UID    uint32
	Target string
	Cause  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("moving uid %d to %q: %v", e.UID, e.Target, e.Cause)
}

func (e *MoveError) Unwrap() error { return e.Cause }

// FolderError reports a rejected folder creation.
type FolderError struct {
	Name  string
	Cause error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("creating folder %q: %v", e.Name, e.Cause)
}

func (e *FolderError) Unwrap() error { return e.Cause }

// SendError reports a failed SMTP submission.
type SendError struct {
	Cause error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending message: %v", e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }
