package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// WebhookPayload is the JSON body posted for each notification.
type WebhookPayload struct {
	ID          string                  `json:"id"`
	Type        domain.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	TicketID    *string                 `json:"ticket_id,omitempty"`
	RecipientID string                  `json:"recipient_id"`
	Recipient   string                  `json:"recipient,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// WebhookChannel posts notifications to a fixed URL.
type WebhookChannel struct {
	client *resty.Client
	url    string
}

// NewWebhookChannel creates a channel posting to url.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "helpdesk-service")
	return &WebhookChannel{client: client, url: url}
}

// Name implements Channel.
func (c *WebhookChannel) Name() string { return "webhook" }

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, d Delivery) error {
	n := d.Notification
	payload := WebhookPayload{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		TicketID:    n.TicketID,
		RecipientID: n.RecipientID,
		CreatedAt:   n.CreatedAt,
	}
	if d.Recipient != nil {
		payload.Recipient = d.Recipient.Username
	}

	resp, err := c.client.R().SetContext(ctx).SetBody(payload).Post(c.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode())
	}
	return nil
}
