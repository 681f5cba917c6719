package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// mailSender is the part of the SendGrid client the channel uses.
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailChannel sends notifications through SendGrid.
type EmailChannel struct {
	client   mailSender
	from     *mail.Email
	subjects string
}

// NewEmailChannel creates a SendGrid-backed channel.
func NewEmailChannel(cfg config.NotificationConfig) *EmailChannel {
	return newEmailChannel(sendgrid.NewSendClient(cfg.SendGridAPIKey), cfg)
}

func newEmailChannel(client mailSender, cfg config.NotificationConfig) *EmailChannel {
	return &EmailChannel{
		client:   client,
		from:     mail.NewEmail(cfg.EmailFromName, cfg.EmailFrom),
		subjects: cfg.EmailFromName,
	}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, d Delivery) error {
	if d.Recipient == nil || strings.TrimSpace(d.Recipient.Email) == "" {
		return ErrSkipped
	}
	to := mail.NewEmail(d.Recipient.DisplayName(), d.Recipient.Email)
	subject := d.Notification.Title
	if c.subjects != "" {
		subject = "[" + c.subjects + "] " + subject
	}
	plain := d.Notification.Message
	body := fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p>",
		html.EscapeString(d.Notification.Title), html.EscapeString(d.Notification.Message))

	resp, err := c.client.SendWithContext(ctx, mail.NewSingleEmail(c.from, subject, to, plain, body))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
