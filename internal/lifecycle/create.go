package lifecycle

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// CreateInput is a new ticket as filed. Empty levels take the defaults.
type CreateInput struct {
	Subject     string
	Description string
	CategoryID  *string
	Severity    domain.Level
	Priority    domain.Level
	CreatedByID string
	AssigneeID  *string
}

func (in CreateInput) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Subject) == "" {
		fields["subject"] = "this field is required"
	} else if len([]rune(in.Subject)) > 200 {
		fields["subject"] = "must be at most 200 characters"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "this field is required"
	}
	if in.Severity != "" && !in.Severity.Valid() {
		fields["severity"] = "invalid severity"
	}
	if in.Priority != "" && !in.Priority.Valid() {
		fields["priority"] = "invalid priority"
	}
	if in.CreatedByID == "" {
		fields["created_by"] = "this field is required"
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

type ruleMatch struct {
	rule    domain.TriggerRule
	matched []string
}

// CreateTicket files a ticket: numbers it, auto-prioritizes, applies trigger
// rules, writes the creation record, sends trigger notices and auto-assigns.
// A ticket number collision with a concurrent creation retries the whole unit.
func (e *Engine) CreateTicket(ctx context.Context, in CreateInput) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		res     *Result
		matches []ruleMatch
		u       *unit
		err     error
	)
	for attempt := 1; ; attempt++ {
		res, matches, u, err = e.createOnce(ctx, in)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateTicketNumber) || attempt >= e.attempts {
			return nil, err
		}
		e.metrics.TicketNumberRetry()
		e.logger.Warn("ticket number collision, retrying", zap.Int("attempt", attempt))
	}

	t := res.Ticket
	e.metrics.TicketCreated()
	if u.escalated {
		e.metrics.Escalated("trigger")
	}
	ruleNames := make([]string, 0, len(matches))
	for _, m := range matches {
		e.metrics.TriggerMatched(string(m.rule.Action))
		ruleNames = append(ruleNames, m.rule.Name)
		e.logger.Info("trigger rule matched",
			zap.String("ticket_number", t.Number),
			zap.String("rule_id", m.rule.ID),
			zap.String("action", string(m.rule.Action)),
			zap.Strings("keywords", m.matched))
	}
	e.logger.Info("ticket created",
		zap.String("ticket_id", t.ID),
		zap.String("ticket_number", t.Number),
		zap.String("priority", string(t.Priority)),
		zap.Bool("escalated", t.Escalated))

	e.afterCommit(ctx, res, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: t.ID,
		ActorID:  domain.StringPtr(t.CreatedByID),
		Payload: events.TicketCreatedPayload{
			Number:       t.Number,
			Subject:      t.Subject,
			Priority:     t.Priority,
			Escalated:    t.Escalated,
			MatchedRules: ruleNames,
		},
	})
	return res, nil
}

func (e *Engine) createOnce(ctx context.Context, in CreateInput) (*Result, []ruleMatch, *unit, error) {
	var (
		res     *Result
		matches []ruleMatch
		u       *unit
	)
	err := e.store.WithinTx(ctx, func(repos repository.Repositories) error {
		u = e.newUnit(ctx, repos)
		if err := e.checkCreateRefs(u, in); err != nil {
			return err
		}

		t := &domain.Ticket{
			Subject:     strings.TrimSpace(in.Subject),
			Description: in.Description,
			CategoryID:  in.CategoryID,
			Severity:    in.Severity,
			Priority:    in.Priority,
			Status:      domain.TicketStatusOpen,
			CreatedByID: in.CreatedByID,
			AssigneeID:  in.AssigneeID,
			CreatedAt:   u.now,
			UpdatedAt:   u.now,
		}
		t.ApplyDefaults()

		number, err := e.numbers.Next(ctx, repos.Counters, u.now.Year())
		if err != nil {
			return err
		}
		t.Number = number

		t.AutoPrioritize()
		matches, err = e.applyTriggerRules(u, t)
		if err != nil {
			return err
		}

		if err := repos.Tickets.Create(ctx, t); err != nil {
			return err
		}
		if err := u.record(domain.TicketHistory{
			TicketID:    t.ID,
			Action:      domain.HistoryCreated,
			ActorID:     domain.StringPtr(t.CreatedByID),
			Description: createdDescription(t),
			NewValue:    domain.StringPtr(createdValue(t)),
		}); err != nil {
			return err
		}

		for _, m := range matches {
			if m.rule.Action != domain.TriggerNotify {
				continue
			}
			seen := map[string]bool{}
			for _, recipient := range m.rule.NotifyUserIDs {
				if seen[recipient] {
					continue
				}
				seen[recipient] = true
				if err := u.notify(triggerNotification(t, &m.rule, m.matched, recipient)); err != nil {
					return err
				}
			}
		}

		if t.AssigneeID == nil && t.CategoryID != nil {
			if err := e.autoAssign(u, t); err != nil {
				return err
			}
		}
		res = u.result(t)
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return res, matches, u, nil
}

func (e *Engine) checkCreateRefs(u *unit, in CreateInput) error {
	if _, err := u.repos.Users.GetByID(u.ctx, in.CreatedByID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewFieldError("created_by", "user does not exist")
		}
		return err
	}
	if in.CategoryID != nil {
		if _, err := u.repos.Categories.GetByID(u.ctx, *in.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewFieldError("category", "category does not exist")
			}
			return err
		}
	}
	if in.AssigneeID != nil {
		if _, err := e.loadAssignee(u, *in.AssigneeID); err != nil {
			return err
		}
	}
	return nil
}

// applyTriggerRules runs every active rule against the unsaved ticket.
// priority_high overwrites whatever priority the ticket has, critical included.
// Notify rules are returned for the caller to act on once the ticket has an id.
func (e *Engine) applyTriggerRules(u *unit, t *domain.Ticket) ([]ruleMatch, error) {
	rules, err := u.repos.Rules.ListActive(u.ctx)
	if err != nil {
		return nil, err
	}
	text := t.SearchText()
	var matches []ruleMatch
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		matched := rule.MatchedKeywords(text)
		if len(matched) == 0 {
			continue
		}
		matches = append(matches, ruleMatch{rule: rule, matched: matched})
		switch rule.Action {
		case domain.TriggerEscalate:
			if t.Escalate(nil, u.now) {
				u.escalated = true
			}
		case domain.TriggerPriorityHigh:
			t.Priority = domain.LevelHigh
		case domain.TriggerPriorityCritical:
			t.Priority = domain.LevelCritical
		}
	}
	return matches, nil
}

// autoAssign gives the ticket to the agent with the fewest open or in-progress
// tickets. Ties go to the lowest user id. Admins are never auto-assigned.
func (e *Engine) autoAssign(u *unit, t *domain.Ticket) error {
	agents, err := u.repos.Users.ListByRole(u.ctx, domain.RoleAgent)
	if err != nil || len(agents) == 0 {
		return err
	}
	load, err := u.repos.Tickets.OpenWorkload(u.ctx)
	if err != nil {
		return err
	}
	best := agents[0]
	for _, a := range agents[1:] {
		if load[a.ID] < load[best.ID] {
			best = a
		}
	}
	prev := t.Clone()
	t.AssigneeID = domain.StringPtr(best.ID)
	return e.applyUpdate(u, prev, t, nil)
}
