package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendEndpoint = "/v3/mail/send"
	fallbackLang = "en"
)

// ErrNoTemplate means no dynamic template is configured for a message.
var ErrNoTemplate = errors.New("no mail template configured")

// SendGridSender delivers messages as SendGrid dynamic templates chosen
// by template and language.
type SendGridSender struct {
	apiKey    string
	host      string
	templates map[string]string
}

// NewSendGridSender takes templates keyed "<lang>.<TEMPLATE>".
func NewSendGridSender(apiKey, host string, templates map[string]string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, host: strings.TrimRight(host, "/"), templates: templates}
}

// TemplateID resolves t for lang, falling back to English.
func (s *SendGridSender) TemplateID(t Template, lang string) (string, error) {
	for _, l := range []string{lang, fallbackLang} {
		if id := s.templates[l+"."+string(t)]; id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrNoTemplate, lang, t)
}

func (s *SendGridSender) Send(ctx context.Context, m Message) error {
	id, err := s.TemplateID(m.Template, m.Lang)
	if err != nil {
		return err
	}
	msg := sgmail.NewV3Mail()
	msg.SetFrom(sgmail.NewEmail("", m.From))
	msg.SetTemplateID(id)
	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail("", m.To))
	for k, v := range m.Data {
		p.SetDynamicTemplateData(k, v)
	}
	msg.AddPersonalizations(p)

	// one client per message: the client keeps the request body
	c := sendgrid.NewSendClient(s.apiKey)
	c.BaseURL = s.host + sendEndpoint
	resp, err := c.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
