package mail

import "time"

// Credentials holds everything needed to reach one mail account.
// TLS defaults to true in the config layer; a false value means the
// connection starts in plaintext and upgrades via STARTTLS.
type Credentials struct {
	User     string
	Password string
	Host     string
	Port     int
	TLS      bool
}

// Message is the immutable projection of a server message handed to
// the UI process. UID is unique within a mailbox only, not globally.
type Message struct {
	UID            uint32    `json:"uid"`
	Subject        string    `json:"subject"`
	From           string    `json:"from"`
	Date           time.Time `json:"date"`
	IsRead         bool      `json:"isRead"`
	IsStarred      bool      `json:"isStarred"`
	Snippet        string    `json:"snippet"`
	HasAttachments bool      `json:"hasAttachments"`
	HTML           string    `json:"html,omitempty"`
	Text           string    `json:"text,omitempty"`
}

// RawMessage is an undecoded message as returned by the transport:
// the UID, the flag bits the engine cares about, and the full RFC 822
// byte stream.
type RawMessage struct {
	UID     uint32
	Seen    bool
	Flagged bool
	Body    []byte
}

// Folder is one node of the server's mailbox tree. Delimiter is the
// hierarchy separator reported for this node; it may differ between
// nodes. A non-selectable folder exists structurally but cannot hold
// messages itself.
type Folder struct {
	Name       string
	Delimiter  string
	Selectable bool
	Children   []*Folder
}
