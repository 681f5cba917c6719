// Package worker runs background delivery of notifications.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/notify"
)

// ErrQueueFull is returned by Enqueue when the buffer is saturated.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("notification worker stopped")

// Deliverer sends one notification out of band.
type Deliverer interface {
	Deliver(ctx context.Context, d notify.Delivery) error
}

// RecipientLookup resolves a notification recipient.
type RecipientLookup func(ctx context.Context, userID string) (*domain.User, error)

// NotificationWorker drains a bounded queue of notifications with a fixed
// number of goroutines.
type NotificationWorker struct {
	deliverer Deliverer
	lookup    RecipientLookup
	logger    *zap.Logger

	queue   chan domain.Notification
	workers int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker creates a worker; call Start before Enqueue.
func NewNotificationWorker(deliverer Deliverer, lookup RecipientLookup, logger *zap.Logger, workers, buffer int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &NotificationWorker{
		deliverer: deliverer,
		lookup:    lookup,
		logger:    logger,
		queue:     make(chan domain.Notification, buffer),
		workers:   workers,
	}
}

// Start launches the goroutines. They exit when Stop is called and the queue
// is drained, or when ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-w.queue:
					if !ok {
						return
					}
					w.handle(ctx, n)
				}
			}
		}()
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("buffer", cap(w.queue)))
}

// Enqueue schedules n without blocking.
func (w *NotificationWorker) Enqueue(n domain.Notification) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight deliveries.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) handle(ctx context.Context, n domain.Notification) {
	d := notify.Delivery{Notification: n}
	if w.lookup != nil {
		user, err := w.lookup(ctx, n.RecipientID)
		if err != nil {
			w.logger.Warn("resolve notification recipient",
				zap.String("notification_id", n.ID),
				zap.String("recipient_id", n.RecipientID),
				zap.Error(err))
			return
		}
		d.Recipient = user
	}
	// Deliver logs per-channel failures itself.
	_ = w.deliverer.Deliver(ctx, d)
}
