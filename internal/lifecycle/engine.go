// Package lifecycle owns every write that changes a ticket. Each operation
// runs in one store transaction and returns the full set of derived history
// and notification records it produced. Events are published only after the
// transaction commits.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	defaultCreateAttempts = 3
	defaultMaxUpload      = 10 << 20
)

// Clock supplies the engine's notion of now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// AdminDirectory lists the users who receive escalation notices. users is
// bound to the caller's transaction and must be used for any reads.
type AdminDirectory interface {
	ListAdmins(ctx context.Context, users repository.UserRepository) ([]domain.User, error)
}

// Dependencies wires an Engine. Store and Numbers are required.
type Dependencies struct {
	Store      repository.Store
	Numbers    *ticketnumber.Generator
	Storage    storage.Backend
	Admins     AdminDirectory
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock

	MaxUploadBytes int64
	CreateAttempts int
}

// Engine applies ticket lifecycle transitions.
type Engine struct {
	store      repository.Store
	numbers    *ticketnumber.Generator
	blobs      storage.Backend
	admins     AdminDirectory
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock

	maxUpload int64
	attempts  int
}

// New builds an Engine, filling optional collaborators with defaults.
func New(deps Dependencies) *Engine {
	e := &Engine{
		store:      deps.Store,
		numbers:    deps.Numbers,
		blobs:      deps.Storage,
		admins:     deps.Admins,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		clock:      deps.Clock,
		maxUpload:  deps.MaxUploadBytes,
		attempts:   deps.CreateAttempts,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.maxUpload <= 0 {
		e.maxUpload = defaultMaxUpload
	}
	if e.attempts <= 0 {
		e.attempts = defaultCreateAttempts
	}
	return e
}

// Result is what one lifecycle operation wrote.
type Result struct {
	Ticket        *domain.Ticket
	Changes       []domain.FieldChange
	History       []domain.TicketHistory
	Notifications []domain.Notification
	Comment       *domain.TicketComment
	Attachment    *domain.TicketAttachment
}

// unit accumulates the writes of one transaction.
type unit struct {
	ctx   context.Context
	repos repository.Repositories
	now   time.Time

	history       []domain.TicketHistory
	notifications []domain.Notification
	changes       []domain.FieldChange
	escalated     bool
}

func (e *Engine) newUnit(ctx context.Context, repos repository.Repositories) *unit {
	return &unit{ctx: ctx, repos: repos, now: e.clock.Now()}
}

func (u *unit) record(h domain.TicketHistory) error {
	h.CreatedAt = u.now
	if err := u.repos.History.Create(u.ctx, &h); err != nil {
		return err
	}
	u.history = append(u.history, h)
	return nil
}

func (u *unit) notify(n domain.Notification) error {
	n.CreatedAt = u.now
	if err := u.repos.Notifications.Create(u.ctx, &n); err != nil {
		return err
	}
	u.notifications = append(u.notifications, n)
	return nil
}

func (u *unit) result(t *domain.Ticket) *Result {
	return &Result{
		Ticket:        t,
		Changes:       u.changes,
		History:       u.history,
		Notifications: u.notifications,
	}
}

// listAdmins prefers the configured directory and falls back to the
// transaction's own view of admin-role users. Both read inside the unit.
func (e *Engine) listAdmins(u *unit) ([]domain.User, error) {
	if e.admins != nil {
		return e.admins.ListAdmins(u.ctx, u.repos.Users)
	}
	return u.repos.Users.ListByRole(u.ctx, domain.RoleAdmin)
}

func (e *Engine) loadTicket(u *unit, id string) (*domain.Ticket, error) {
	t, err := u.repos.Tickets.GetByID(u.ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return t, err
}

// publish fans events out after commit. Delivery failures never undo a commit.
func (e *Engine) publish(ctx context.Context, evs ...events.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, ev := range evs {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = e.clock.Now()
		}
		if err := e.dispatcher.Publish(ctx, ev); err != nil {
			e.logger.Warn("publish event", zap.String("event_type", string(ev.Type)), zap.Error(err))
		}
	}
}

// afterCommit records metrics and publishes one notification_created event per notice.
func (e *Engine) afterCommit(ctx context.Context, res *Result, primary ...events.Event) {
	for _, n := range res.Notifications {
		e.metrics.NotificationCreated(string(n.Type))
	}
	evs := append([]events.Event{}, primary...)
	for _, n := range res.Notifications {
		ticketID := ""
		if n.TicketID != nil {
			ticketID = *n.TicketID
		}
		evs = append(evs, events.Event{
			Type:     events.EventNotificationCreated,
			TicketID: ticketID,
			Payload:  events.NotificationCreatedPayload{Notification: n},
		})
	}
	e.publish(ctx, evs...)
}

func actorID(actor *domain.User) *string {
	if actor == nil {
		return nil
	}
	return domain.StringPtr(actor.ID)
}
