// Package mailer is the delivery channel for recovered vault keys. The
// recovery service only sees the Deliverer port; delivery failure is reported
// distinctly from verification failure because by the time delivery runs the
// identity check has already succeeded.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Deliverer sends a message to an address.
type Deliverer interface {
	Deliver(ctx context.Context, address, subject, body string) error
}

// RecoverySubject is the fixed subject line for vault-key recovery mail.
const RecoverySubject = "Your vault key recovery"

// securityNotice is appended to every recovery mail.
const securityNotice = `
Security notice: this key was released because identity attributes matching
your escrowed record were submitted. If you did not request this recovery,
rotate your vault key immediately and contact support.`

// RecoveryBody renders the recovery mail body: the decoded vault key in
// human-readable form plus the fixed security notice.
func RecoveryBody(vaultKey string) string {
	var b strings.Builder
	b.WriteString("Your identity was verified and your vault key has been recovered.\n\n")
	b.WriteString("Vault key:\n\n    ")
	b.WriteString(vaultKey)
	b.WriteString("\n")
	b.WriteString(securityNotice)
	return b.String()
}

// SMTPMailer delivers mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

// NewSMTP builds a mailer for the given relay. Username may be empty for
// relays that accept unauthenticated submission from this host.
func NewSMTP(addr, from, username, password string) *SMTPMailer {
	m := &SMTPMailer{addr: addr, from: from}
	if username != "" {
		host, _, _ := strings.Cut(addr, ":")
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

func (m *SMTPMailer) Deliver(_ context.Context, address, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, address, subject, body)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{address}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp deliver: %w", err)
	}
	return nil
}

// LogMailer logs instead of sending, for development. The body is withheld
// from the log since it contains the recovered key.
type LogMailer struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Deliver(ctx context.Context, address, subject, _ string) error {
	m.logger.InfoContext(ctx, "mail delivery (log mode)",
		"to", address,
		"subject", subject,
	)
	return nil
}
