// Package mail hands transactional emails to an outbound sender without
// blocking the request that triggered them.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// Template names a transactional email.
type Template string

const (
	EmailVerification Template = "EMAIL_VERIFICATION"
	AccountRestore    Template = "ACCOUNT_RESTORE"
	PasswordReset     Template = "PASSWORD_RESET"
)

// Message is one templated email.
type Message struct {
	To       string
	From     string
	Template Template
	Lang     string
	Data     map[string]any
}

// Sender delivers a message. Implementations talk to the mail provider.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Queue accepts messages for fire-and-forget delivery.
type Queue interface {
	Enqueue(m Message)
}

// LogSender writes messages to the log instead of delivering them.
// It is the sender used in development and when no provider is set up.
type LogSender struct {
	Logger *zap.SugaredLogger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	// template data carries one-time codes, so only keys are logged
	keys := make([]string, 0, len(m.Data))
	for k := range m.Data {
		keys = append(keys, k)
	}
	s.Logger.Infow("mail", "to", m.To, "template", string(m.Template), "lang", m.Lang, "fields", keys)
	return nil
}

// Lang picks a supported template language from an Accept-Language value.
func Lang(accept string) string {
	if len(accept) >= 2 && (accept[:2] == "de" || accept[:2] == "DE") {
		return "de"
	}
	return "en"
}
