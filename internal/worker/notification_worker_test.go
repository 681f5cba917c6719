package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/notify"
)

type recordingDeliverer struct {
	mu   sync.Mutex
	seen []notify.Delivery
}

func (r *recordingDeliverer) Deliver(_ context.Context, d notify.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, d)
	return nil
}

func TestNotificationWorker_DeliversWithRecipient(t *testing.T) {
	deliverer := &recordingDeliverer{}
	lookup := func(_ context.Context, id string) (*domain.User, error) {
		if id == "missing" {
			return nil, errors.New("not found")
		}
		return &domain.User{ID: id, Username: "user-" + id}, nil
	}
	w := NewNotificationWorker(deliverer, lookup, nil, 2, 8)
	w.Start(context.Background())

	require.NoError(t, w.Enqueue(domain.Notification{ID: "n1", RecipientID: "1"}))
	require.NoError(t, w.Enqueue(domain.Notification{ID: "n2", RecipientID: "missing"}))
	require.NoError(t, w.Enqueue(domain.Notification{ID: "n3", RecipientID: "3"}))
	w.Stop()

	require.Len(t, deliverer.seen, 2)
	for _, d := range deliverer.seen {
		require.NotNil(t, d.Recipient)
		assert.Equal(t, d.Notification.RecipientID, d.Recipient.ID)
	}
}

func TestNotificationWorker_QueueFull(t *testing.T) {
	w := NewNotificationWorker(&recordingDeliverer{}, nil, nil, 1, 1)

	require.NoError(t, w.Enqueue(domain.Notification{ID: "n1"}))
	assert.ErrorIs(t, w.Enqueue(domain.Notification{ID: "n2"}), ErrQueueFull)
}

func TestNotificationWorker_EnqueueAfterStop(t *testing.T) {
	w := NewNotificationWorker(&recordingDeliverer{}, nil, nil, 1, 4)
	w.Start(context.Background())
	w.Stop()

	assert.ErrorIs(t, w.Enqueue(domain.Notification{ID: "n1"}), ErrStopped)
	w.Stop()
}
