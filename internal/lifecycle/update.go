package lifecycle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UpdateInput carries the staff-editable fields. Nil leaves a field alone;
// the Clear flags null out optional references.
type UpdateInput struct {
	Status        *domain.TicketStatus
	Priority      *domain.Level
	Severity      *domain.Level
	AssigneeID    *string
	ClearAssignee bool
	CategoryID    *string
	ClearCategory bool
}

func (in UpdateInput) validate() error {
	fields := map[string]string{}
	if in.Status != nil && !in.Status.Valid() {
		fields["status"] = "invalid status"
	}
	if in.Priority != nil && !in.Priority.Valid() {
		fields["priority"] = "invalid priority"
	}
	if in.Severity != nil && !in.Severity.Valid() {
		fields["severity"] = "invalid severity"
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

// UpdateTicket applies a staff edit and records who made it.
func (e *Engine) UpdateTicket(ctx context.Context, ticketID string, actor *domain.User, in UpdateInput) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return e.mutate(ctx, ticketID, actor, func(u *unit, t *domain.Ticket) error {
		if in.Status != nil {
			t.Status = *in.Status
		}
		if in.Priority != nil {
			t.Priority = *in.Priority
		}
		if in.Severity != nil {
			t.Severity = *in.Severity
		}
		switch {
		case in.ClearAssignee:
			t.AssigneeID = nil
		case in.AssigneeID != nil:
			if _, err := e.loadAssignee(u, *in.AssigneeID); err != nil {
				return err
			}
			t.AssigneeID = domain.StringPtr(*in.AssigneeID)
		}
		switch {
		case in.ClearCategory:
			t.CategoryID = nil
		case in.CategoryID != nil:
			if _, err := u.repos.Categories.GetByID(u.ctx, *in.CategoryID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NewFieldError("category", "category does not exist")
				}
				return err
			}
			t.CategoryID = domain.StringPtr(*in.CategoryID)
		}
		return nil
	}, func(u *unit, t *domain.Ticket) error {
		if actor == nil {
			return nil
		}
		return u.record(domain.TicketHistory{
			TicketID:    t.ID,
			Action:      domain.HistoryUpdated,
			ActorID:     actorID(actor),
			Description: "Ticket updated by " + actor.DisplayName(),
		})
	})
}

// Assign sets or clears the assignee. A nil assigneeID unassigns.
func (e *Engine) Assign(ctx context.Context, ticketID string, assigneeID *string, actor *domain.User) (*Result, error) {
	return e.mutate(ctx, ticketID, actor, func(u *unit, t *domain.Ticket) error {
		if assigneeID == nil {
			t.AssigneeID = nil
			return nil
		}
		if _, err := e.loadAssignee(u, *assigneeID); err != nil {
			return err
		}
		t.AssigneeID = domain.StringPtr(*assigneeID)
		return nil
	}, nil)
}

// Escalate flags the ticket on behalf of actor. Escalating twice changes nothing.
func (e *Engine) Escalate(ctx context.Context, ticketID string, actor *domain.User) (*Result, error) {
	res, err := e.mutate(ctx, ticketID, actor, func(u *unit, t *domain.Ticket) error {
		if !t.Escalate(actorID(actor), u.now) {
			return errUnchanged
		}
		return nil
	}, nil)
	if err == nil && len(res.Changes) > 0 {
		for _, ch := range res.Changes {
			if ch.Field == domain.FieldEscalated {
				e.metrics.Escalated("manual")
			}
		}
	}
	return res, err
}

// errUnchanged lets a change func report that nothing needs writing.
var errUnchanged = errors.New("ticket unchanged")

// mutate loads a ticket, lets change edit a copy, persists it and emits the
// diff-derived records. after runs inside the same transaction.
func (e *Engine) mutate(
	ctx context.Context,
	ticketID string,
	actor *domain.User,
	change func(*unit, *domain.Ticket) error,
	after func(*unit, *domain.Ticket) error,
) (*Result, error) {
	var res *Result
	err := e.store.WithinTx(ctx, func(repos repository.Repositories) error {
		u := e.newUnit(ctx, repos)
		prev, err := e.loadTicket(u, ticketID)
		if err != nil {
			return err
		}
		next := prev.Clone()
		if err := change(u, next); err != nil {
			if errors.Is(err, errUnchanged) {
				res = u.result(prev)
				return nil
			}
			return err
		}
		if err := e.applyUpdate(u, prev, next, actor); err != nil {
			return err
		}
		if after != nil {
			if err := after(u, next); err != nil {
				return err
			}
		}
		res = u.result(next)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.Changes) == 0 && len(res.History) == 0 {
		return res, nil
	}
	if len(res.Changes) > 0 {
		e.logger.Info("ticket updated",
			zap.String("ticket_id", res.Ticket.ID),
			zap.String("ticket_number", res.Ticket.Number),
			zap.Int("changes", len(res.Changes)))
	}
	e.afterCommit(ctx, res, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: res.Ticket.ID,
		ActorID:  actorID(actor),
		Payload:  events.TicketUpdatedPayload{Number: res.Ticket.Number, Changes: res.Changes},
	})
	return res, nil
}

// applyUpdate persists next and turns its differences from prev into history
// and notifications. The actor is attributed to status, assignee and priority
// records; escalation is attributed to whoever escalated.
func (e *Engine) applyUpdate(u *unit, prev, next *domain.Ticket, actor *domain.User) error {
	next.StampStatusTimestamps(u.now)
	next.UpdatedAt = u.now
	if err := u.repos.Tickets.Update(u.ctx, next); err != nil {
		return err
	}

	changes := domain.DiffTickets(prev, next)
	u.changes = append(u.changes, changes...)
	by := actorID(actor)

	for _, ch := range changes {
		switch ch.Field {
		case domain.FieldStatus:
			if err := u.record(domain.TicketHistory{
				TicketID:    next.ID,
				Action:      domain.HistoryStatusChanged,
				ActorID:     by,
				Description: statusDescription(prev.Status, next.Status),
				OldValue:    ch.Old,
				NewValue:    ch.New,
			}); err != nil {
				return err
			}
			if err := u.notify(statusNotification(next, prev.Status, next.Status)); err != nil {
				return err
			}

		case domain.FieldAssignee:
			if ch.New == nil {
				continue
			}
			if err := e.recordAssignment(u, next, ch, by); err != nil {
				return err
			}

		case domain.FieldPriority:
			if err := u.record(domain.TicketHistory{
				TicketID:    next.ID,
				Action:      domain.HistoryPriorityChanged,
				ActorID:     by,
				Description: priorityDescription(prev.Priority, next.Priority),
				OldValue:    ch.Old,
				NewValue:    ch.New,
			}); err != nil {
				return err
			}

		case domain.FieldEscalated:
			if err := e.recordEscalation(u, next); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) recordAssignment(u *unit, t *domain.Ticket, ch domain.FieldChange, by *string) error {
	assignee, err := u.repos.Users.GetByID(u.ctx, *ch.New)
	if err != nil {
		return err
	}
	action := domain.HistoryAssigned
	var oldValue *string
	if ch.Old != nil {
		action = domain.HistoryReassigned
		oldValue = domain.StringPtr(*ch.Old)
		if previous, err := u.repos.Users.GetByID(u.ctx, *ch.Old); err == nil {
			oldValue = domain.StringPtr(previous.String())
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	if err := u.record(domain.TicketHistory{
		TicketID:    t.ID,
		Action:      action,
		ActorID:     by,
		Description: "Ticket assigned to " + assignee.DisplayName(),
		OldValue:    oldValue,
		NewValue:    domain.StringPtr(assignee.String()),
	}); err != nil {
		return err
	}
	return u.notify(assignedNotification(t, assignee.ID))
}

func (e *Engine) recordEscalation(u *unit, t *domain.Ticket) error {
	var escalator *domain.User
	if t.EscalatedByID != nil {
		user, err := u.repos.Users.GetByID(u.ctx, *t.EscalatedByID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		escalator = user
	}
	if err := u.record(domain.TicketHistory{
		TicketID:    t.ID,
		Action:      domain.HistoryEscalated,
		ActorID:     t.EscalatedByID,
		Description: escalatedDescription(escalator),
		NewValue:    domain.StringPtr("Priority: " + string(t.Priority)),
	}); err != nil {
		return err
	}
	admins, err := e.listAdmins(u)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if err := u.notify(escalatedNotification(t, admin.ID)); err != nil {
			return err
		}
	}
	return nil
}

// loadAssignee checks that id names an agent or admin.
func (e *Engine) loadAssignee(u *unit, id string) (*domain.User, error) {
	user, err := u.repos.Users.GetByID(u.ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewFieldError("assigned_to", "user does not exist")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, apperrors.NewFieldError("assigned_to", "assignee must be an agent or admin")
	}
	return user, nil
}

// DeleteTicket removes a ticket with its history, comments and attachments.
// Notifications outlive it without the ticket link. Stored blobs are removed
// after commit on a best-effort basis.
func (e *Engine) DeleteTicket(ctx context.Context, ticketID string, actor *domain.User) error {
	var (
		t           *domain.Ticket
		attachments []domain.TicketAttachment
	)
	err := e.store.WithinTx(ctx, func(repos repository.Repositories) error {
		u := e.newUnit(ctx, repos)
		var err error
		if t, err = e.loadTicket(u, ticketID); err != nil {
			return err
		}
		if attachments, err = repos.Attachments.ListByTicket(ctx, ticketID); err != nil {
			return err
		}
		return repos.Tickets.Delete(ctx, ticketID)
	})
	if err != nil {
		return err
	}

	if e.blobs != nil {
		for _, a := range attachments {
			if err := e.blobs.Delete(ctx, a.StorageKey); err != nil {
				e.logger.Warn("delete attachment blob", zap.String("key", a.StorageKey), zap.Error(err))
			}
		}
	}
	e.logger.Info("ticket deleted", zap.String("ticket_id", t.ID), zap.String("ticket_number", t.Number))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: t.ID,
		ActorID:  actorID(actor),
		Payload:  events.TicketDeletedPayload{Number: t.Number},
	})
	return nil
}
