package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"
)

// connectTimeout bounds the dial and TLS handshake. Commands issued
// after connect run to completion or transport failure.
const connectTimeout = 10 * time.Second

// imapTransport implements Transport on top of go-imap v2.
type imapTransport struct {
	client *imapclient.Client
	log    *logrus.Entry
}

// DialIMAP connects to the account's IMAP server, authenticates, and
// returns a Transport. TLS credentials dial an implicit-TLS
// connection; otherwise the connection is upgraded via STARTTLS. The
// connection is wrapped so that an asynchronous transport failure
// after connect reaches onFatal.
func DialIMAP(ctx context.Context, creds Credentials, onFatal func(error)) (Transport, error) {
	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	dialer := &net.Dialer{Timeout: connectTimeout}

	var client *imapclient.Client

	if creds.TLS {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			ServerName: creds.Host,
		})
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", addr, err)
		}
		client = imapclient.New(&watchConn{Conn: conn, onFatal: onFatal}, nil)
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", addr, err)
		}
		client, err = imapclient.NewStartTLS(&watchConn{Conn: conn, onFatal: onFatal}, nil)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("starting TLS with %s: %w", addr, err)
		}
	}

	if err := client.Login(creds.User, creds.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authenticating %s: %w", creds.User, err)
	}

	return &imapTransport{
		client: client,
		log:    logrus.WithField("pkg", "mail").WithField("host", creds.Host),
	}, nil
}

func (t *imapTransport) Open(_ context.Context, mailbox string) (uint32, error) {
	data, err := t.client.Select(mailbox, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	return data.NumMessages, nil
}

// fullBody is the shared peek body section: fetching must never set
// the \Seen flag as a side effect.
var fullBody = &imap.FetchItemBodySection{Peek: true}

func fetchOptions() *imap.FetchOptions {
	return &imap.FetchOptions{
		UID:         true,
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{fullBody},
	}
}

func (t *imapTransport) FetchRange(_ context.Context, start, end uint32) ([]RawMessage, error) {
	seqSet := imap.SeqSet{{Start: start, Stop: end}}
	return t.collect(t.client.Fetch(seqSet, fetchOptions()))
}

func (t *imapTransport) FetchNewer(_ context.Context, lastUID uint32) ([]RawMessage, error) {
	// Stop 0 is the open upper bound "*".
	uidSet := imap.UIDSet{{Start: imap.UID(lastUID + 1), Stop: 0}}
	return t.collect(t.client.Fetch(uidSet, fetchOptions()))
}

func (t *imapTransport) collect(cmd *imapclient.FetchCommand) ([]RawMessage, error) {
	bufs, err := cmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	raws := make([]RawMessage, 0, len(bufs))
	for _, buf := range bufs {
		raw := RawMessage{
			UID:  uint32(buf.UID),
			Body: buf.FindBodySection(fullBody),
		}
		for _, flag := range buf.Flags {
			switch flag {
			case imap.FlagSeen:
				raw.Seen = true
			case imap.FlagFlagged:
				raw.Flagged = true
			}
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func (t *imapTransport) Move(_ context.Context, uid uint32, target string) error {
	if _, err := t.client.Move(imap.UIDSetNum(imap.UID(uid)), target).Wait(); err != nil {
		return fmt.Errorf("move command: %w", err)
	}
	return nil
}

func (t *imapTransport) CreateMailbox(_ context.Context, name string) error {
	if err := t.client.Create(name, nil).Wait(); err != nil {
		return fmt.Errorf("create command: %w", err)
	}
	return nil
}

func (t *imapTransport) ListMailboxes(_ context.Context) ([]*Folder, error) {
	entries, err := t.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}

	roots, index := []*Folder{}, map[string]*Folder{}
	for _, entry := range entries {
		delim := ""
		segments := []string{entry.Mailbox}
		if entry.Delim != 0 {
			delim = string(entry.Delim)
			segments = strings.Split(entry.Mailbox, delim)
		}

		selectable := true
		for _, attr := range entry.Attrs {
			if attr == imap.MailboxAttrNoSelect {
				selectable = false
			}
		}

		path := ""
		var parent *Folder
		for i, seg := range segments {
			if i == 0 {
				path = seg
			} else {
				path += delim + seg
			}

			node, ok := index[path]
			if !ok {
				// Parents implied by a child path but never announced
				// by the server are grouping segments only.
				node = &Folder{Name: seg, Delimiter: delim, Selectable: false}
				index[path] = node
				if parent == nil {
					roots = append(roots, node)
				} else {
					parent.Children = append(parent.Children, node)
				}
			}
			if i == len(segments)-1 {
				node.Selectable = selectable
				node.Delimiter = delim
			}
			parent = node
		}
	}

	t.log.WithField("count", len(entries)).Debug("mailbox tree listed")
	return roots, nil
}

func (t *imapTransport) Close() error {
	if err := t.client.Logout().Wait(); err != nil {
		return t.client.Close()
	}
	return nil
}
