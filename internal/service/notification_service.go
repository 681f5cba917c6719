package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

const (
	unreadCacheTTL = 5 * time.Minute
	unreadGenTTL   = 24 * time.Hour
)

// UnreadCache caches per-user unread notification counts. Every Invalidate
// bumps the user's generation; Set only stores a count computed under the
// generation Get returned, so a count read before an invalidation is never
// written back after it.
type UnreadCache interface {
	Get(ctx context.Context, userID string) (count int, gen int64, ok bool, err error)
	Set(ctx context.Context, userID string, count int, gen int64) error
	Invalidate(ctx context.Context, userID string) error
}

type redisUnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUnreadCache returns a cache backed by client, or nil when client is nil.
func NewRedisUnreadCache(client *redis.Client) UnreadCache {
	if client == nil {
		return nil
	}
	return &redisUnreadCache{client: client, ttl: unreadCacheTTL}
}

func unreadKey(userID string) string {
	return "helpdesk:notifications:unread:" + userID
}

func unreadGenKey(userID string) string {
	return unreadKey(userID) + ":gen"
}

// KEYS[1] count, KEYS[2] generation; ARGV[1] expected generation, ARGV[2]
// count, ARGV[3] ttl in milliseconds.
var setUnreadIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *redisUnreadCache) Get(ctx context.Context, userID string) (int, int64, bool, error) {
	vals, err := c.client.MGet(ctx, unreadKey(userID), unreadGenKey(userID)).Result()
	if err != nil {
		return 0, 0, false, err
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, 0, false, fmt.Errorf("unread cache generation: %w", err)
		}
	}
	s, ok := vals[0].(string)
	if !ok {
		return 0, gen, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, 0, false, fmt.Errorf("unread cache: %w", err)
	}
	return n, gen, true, nil
}

func (c *redisUnreadCache) Set(ctx context.Context, userID string, count int, gen int64) error {
	keys := []string{unreadKey(userID), unreadGenKey(userID)}
	return setUnreadIfCurrent.Run(ctx, c.client, keys, gen, count, c.ttl.Milliseconds()).Err()
}

func (c *redisUnreadCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, unreadGenKey(userID))
		pipe.Expire(ctx, unreadGenKey(userID), unreadGenTTL)
		pipe.Del(ctx, unreadKey(userID))
		return nil
	})
	return err
}

// DeliveryQueue accepts notifications for out-of-band delivery.
type DeliveryQueue interface {
	Enqueue(n domain.Notification) error
}

// NotificationService serves users' inboxes and hands new notifications to
// the delivery queue.
type NotificationService struct {
	notifications repository.NotificationRepository
	cache         UnreadCache
	queue         DeliveryQueue
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators. Cache and Queue are optional.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Cache            UnreadCache
	Queue            DeliveryQueue
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		cache:         deps.Cache,
		queue:         deps.Queue,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventNotificationCreated, n.handleNotificationCreated)
}

func (n *NotificationService) handleNotificationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	notification := payload.Notification
	n.invalidate(ctx, notification.RecipientID)
	if n.queue == nil {
		return nil
	}
	if err := n.queue.Enqueue(notification); err != nil {
		n.logger.Warn("notification not queued for delivery",
			zap.String("notification_id", notification.ID),
			zap.String("recipient_id", notification.RecipientID),
			zap.Error(err))
	}
	return nil
}

// List returns actor's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, actor *domain.User, unreadOnly bool, page Page) ([]domain.Notification, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	page = page.normalize()
	return n.notifications.ListByRecipient(ctx, actor.ID, repository.NotificationFilter{
		UnreadOnly: unreadOnly,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
}

// MarkRead flips one of actor's notifications to read.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if err := n.notifications.MarkRead(ctx, id, actor.ID); err != nil {
		return notFound("notification", id, err)
	}
	n.invalidate(ctx, actor.ID)
	return nil
}

// MarkAllRead clears actor's inbox and reports how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor *domain.User) (int64, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	count, err := n.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	n.invalidate(ctx, actor.ID)
	return count, nil
}

// UnreadCount is served from the cache when possible. Cache failures fall
// back to the repository.
func (n *NotificationService) UnreadCount(ctx context.Context, actor *domain.User) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	cacheable := false
	var gen int64
	if n.cache != nil {
		count, g, ok, err := n.cache.Get(ctx, actor.ID)
		switch {
		case err != nil:
			n.logger.Warn("unread cache read", zap.String("user_id", actor.ID), zap.Error(err))
		case ok:
			return count, nil
		default:
			cacheable, gen = true, g
		}
	}
	count, err := n.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	if cacheable {
		if err := n.cache.Set(ctx, actor.ID, count, gen); err != nil {
			n.logger.Warn("unread cache write", zap.String("user_id", actor.ID), zap.Error(err))
		}
	}
	return count, nil
}

func (n *NotificationService) invalidate(ctx context.Context, userID string) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Invalidate(ctx, userID); err != nil {
		n.logger.Warn("unread cache invalidate", zap.String("user_id", userID), zap.Error(err))
	}
}
