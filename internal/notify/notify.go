// Package notify delivers stored notifications to channels outside the
// application: email and an outbound webhook.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// ErrSkipped is returned by a channel that has nothing to do for a delivery,
// e.g. a recipient without an email address.
var ErrSkipped = errors.New("notify: delivery skipped")

// Delivery is one notification addressed to a resolved user.
type Delivery struct {
	Notification domain.Notification
	Recipient    *domain.User
}

// Channel sends a delivery somewhere.
type Channel interface {
	Name() string
	Send(ctx context.Context, d Delivery) error
}

// Notifier fans a delivery out to every configured channel.
type Notifier struct {
	channels []Channel
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewNotifier wraps the given channels.
func NewNotifier(logger *zap.Logger, metrics *observability.Metrics, channels ...Channel) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{channels: channels, metrics: metrics, logger: logger}
}

// FromConfig builds the channels enabled by cfg. A missing SendGrid key or
// webhook URL leaves that channel out.
func FromConfig(cfg config.NotificationConfig, logger *zap.Logger, metrics *observability.Metrics) *Notifier {
	var channels []Channel
	if cfg.SendGridAPIKey != "" {
		channels = append(channels, NewEmailChannel(cfg))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, NewWebhookChannel(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	return NewNotifier(logger, metrics, channels...)
}

// Enabled reports whether any channel is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.channels) > 0
}

// Deliver sends d on every channel. A failing channel does not stop the others;
// the joined error is returned.
func (n *Notifier) Deliver(ctx context.Context, d Delivery) error {
	if n == nil {
		return nil
	}
	var errs []error
	for _, ch := range n.channels {
		start := time.Now()
		err := ch.Send(ctx, d)
		switch {
		case err == nil:
			n.logger.Debug("notification delivered",
				zap.String("channel", ch.Name()),
				zap.String("notification_id", d.Notification.ID),
				zap.Duration("duration", time.Since(start)))
		case errors.Is(err, ErrSkipped):
		default:
			n.metrics.DeliveryFailed(ch.Name())
			n.logger.Warn("notification delivery failed",
				zap.String("channel", ch.Name()),
				zap.String("notification_id", d.Notification.ID),
				zap.String("recipient_id", d.Notification.RecipientID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
