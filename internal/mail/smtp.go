package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// smtpPort is the implicit-TLS submission port used for all sends.
const smtpPort = "465"

// SendMessage composes a plain-text message and delivers it over a
// transient SMTP session. The submission host is derived from the
// account's IMAP host by substituting the service prefix, which holds
// for the common providers this client targets. Requires credentials
// from a prior Connect attempt; IMAP session health is irrelevant.
func (e *Engine) SendMessage(ctx context.Context, to, subject, body string) error {
	e.mu.Lock()
	creds := e.creds
	e.mu.Unlock()

	if creds == nil {
		return ErrConfigMissing
	}

	host := submissionHost(creds.Host)
	addr := host + ":" + smtpPort

	msg := composeMessage(creds.User, to, subject, body)

	if err := sendWithTLS(ctx, addr, host, creds.User, creds.Password, to, msg); err != nil {
		return &SendError{Cause: err}
	}

	e.log.WithField("to", to).Info("message sent")
	return nil
}

// submissionHost derives the SMTP host from the IMAP host by
// substituting the service prefix. Hosts without the prefix pass
// through unchanged.
func submissionHost(imapHost string) string {
	return strings.Replace(imapHost, "imap", "smtp", 1)
}

func composeMessage(from, to, subject, body string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}

// sendWithTLS delivers one message over an implicit TLS connection.
func sendWithTLS(ctx context.Context, addr, host, user, password, to, body string) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host}}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", user, password, host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	if err := client.Mail(user); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
