package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

func sampleDelivery() Delivery {
	return Delivery{
		Notification: domain.Notification{
			ID:          "n-1",
			RecipientID: "u-1",
			Type:        domain.NotificationTicketEscalated,
			Title:       "Ticket Escalated: BRTS-2025-0001",
			Message:     "Ticket has been escalated with priority: Critical",
			TicketID:    domain.StringPtr("t-1"),
			CreatedAt:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		},
		Recipient: &domain.User{ID: "u-1", Username: "admin", Email: "admin@example.com", Role: domain.RoleAdmin},
	}
}

func TestWebhookChannel_PostsPayload(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, time.Second)
	require.NoError(t, ch.Send(context.Background(), sampleDelivery()))

	assert.Equal(t, "n-1", got.ID)
	assert.Equal(t, domain.NotificationTicketEscalated, got.Type)
	assert.Equal(t, "admin", got.Recipient)
	require.NotNil(t, got.TicketID)
	assert.Equal(t, "t-1", *got.TicketID)
}

func TestWebhookChannel_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhookChannel(srv.URL, time.Second).Send(context.Background(), sampleDelivery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

type fakeSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestEmailChannel_Send(t *testing.T) {
	sender := &fakeSender{status: http.StatusAccepted}
	ch := newEmailChannel(sender, config.NotificationConfig{EmailFrom: "noreply@example.com", EmailFromName: "Helpdesk"})

	require.NoError(t, ch.Send(context.Background(), sampleDelivery()))
	require.Len(t, sender.sent, 1)
	m := sender.sent[0]
	assert.Equal(t, "[Helpdesk] Ticket Escalated: BRTS-2025-0001", m.Subject)
	assert.Equal(t, "noreply@example.com", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "admin@example.com", m.Personalizations[0].To[0].Address)
}

func TestEmailChannel_SkipsWithoutAddress(t *testing.T) {
	sender := &fakeSender{status: http.StatusAccepted}
	ch := newEmailChannel(sender, config.NotificationConfig{EmailFrom: "noreply@example.com"})

	d := sampleDelivery()
	d.Recipient.Email = ""
	assert.ErrorIs(t, ch.Send(context.Background(), d), ErrSkipped)
	assert.Empty(t, sender.sent)
}

func TestEmailChannel_RejectedStatus(t *testing.T) {
	sender := &fakeSender{status: http.StatusUnauthorized}
	ch := newEmailChannel(sender, config.NotificationConfig{EmailFrom: "noreply@example.com"})

	assert.Error(t, ch.Send(context.Background(), sampleDelivery()))
}

type stubChannel struct {
	name  string
	err   error
	calls atomic.Int32
}

func (s *stubChannel) Name() string { return s.name }
func (s *stubChannel) Send(context.Context, Delivery) error {
	s.calls.Add(1)
	return s.err
}

func TestNotifier_ContinuesAfterFailure(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	failing := &stubChannel{name: "email", err: errors.New("boom")}
	skipped := &stubChannel{name: "sms", err: ErrSkipped}
	ok := &stubChannel{name: "webhook"}
	n := NewNotifier(nil, metrics, failing, skipped, ok)

	err := n.Deliver(context.Background(), sampleDelivery())

	require.Error(t, err)
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(1), skipped.calls.Load())
	assert.Equal(t, int32(1), ok.calls.Load())
}

func TestFromConfig(t *testing.T) {
	assert.False(t, FromConfig(config.NotificationConfig{}, nil, nil).Enabled())
	assert.True(t, FromConfig(config.NotificationConfig{WebhookURL: "http://hooks.local"}, nil, nil).Enabled())

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Deliver(context.Background(), sampleDelivery()))
}
