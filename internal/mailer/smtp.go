// Package mailer sends plain-text mail over an SMTP relay.  Delivery is
// intentionally minimal: the interesting parts of the mail pipeline live in
// the queue consumer, and anything smarter than SendMail belongs to the
// relay itself.
package mailer

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers messages through a single configured SMTP relay.
type Sender struct {
	addr string // host:port of the relay
	auth smtp.Auth
	from string
}

// ErrNotConfigured is returned when no relay host was configured.
var ErrNotConfigured = errors.New("smtp not configured")

// New builds a Sender.  With an empty host the Sender is inert and Send
// returns ErrNotConfigured.
func New(host, port, username, password, from string) *Sender {
	s := &Sender{from: from}
	if host == "" {
		return s
	}
	s.addr = host + ":" + port
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// Enabled reports whether a relay is configured.
func (s *Sender) Enabled() bool { return s.addr != "" }

// Send delivers a plain-text message to a single recipient.
func (s *Sender) Send(to, subject, body string) error {
	if s.addr == "" {
		return ErrNotConfigured
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(b.String()))
}
