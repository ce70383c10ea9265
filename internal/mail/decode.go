package mail

import (
	"bytes"
	"io"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// snippetLen is the maximum snippet length in runes.
const snippetLen = 100

// decodeMessage parses a raw RFC 822 byte stream into a Message.
// A failure here affects only this message; the engine drops it from
// the batch and keeps the rest.
func decodeMessage(raw RawMessage) (*Message, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, &DecodeError{UID: raw.UID, Cause: err}
	}
	defer mr.Close()

	msg := &Message{
		UID:       raw.UID,
		IsRead:    raw.Seen,
		IsStarred: raw.Flagged,
	}

	if subject, err := mr.Header.Subject(); err == nil && subject != "" {
		msg.Subject = subject
	} else {
		msg.Subject = "(no subject)"
	}

	msg.From = "unknown sender"
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		if from[0].Name != "" {
			msg.From = from[0].Name
		} else {
			msg.From = from[0].Address
		}
	}

	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		msg.Date = date
	} else {
		msg.Date = time.Now()
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever parts decoded so far.
			break
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				msg.Text = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				msg.HTML = string(body)
			}
		case *gomail.AttachmentHeader:
			msg.HasAttachments = true
		}
	}

	msg.Snippet = snippet(msg.Text)
	return msg, nil
}

// snippet collapses all whitespace runs to single spaces and
// truncates to snippetLen runes.
func snippet(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) > snippetLen {
		return string(runes[:snippetLen])
	}
	return collapsed
}
