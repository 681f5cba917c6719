package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

type userRepo struct{ h *handle }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	return r.h.do(func(st *state) error {
		if err := checkUserUnique(st, user); err != nil {
			return err
		}
		user.ID = uuid.NewString()
		now := r.h.now()
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	return r.h.do(func(st *state) error {
		existing, ok := st.users[user.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if err := checkUserUnique(st, user); err != nil {
			return err
		}
		user.Username = existing.Username
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = r.h.now()
		st.users[user.ID] = *user
		return nil
	})
}

func checkUserUnique(st *state, user *domain.User) error {
	for id, u := range st.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username {
			return &repository.DuplicateError{Constraint: repository.ConstraintUsersUsername}
		}
		if strings.EqualFold(u.Email, user.Email) {
			return &repository.DuplicateError{Constraint: repository.ConstraintUsersEmail}
		}
	}
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	var found *domain.User
	err := r.h.do(func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				found = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *userRepo) ListByRole(_ context.Context, roles ...domain.Role) ([]domain.User, error) {
	var result []domain.User
	err := r.h.do(func(st *state) error {
		for _, u := range st.users {
			if len(roles) == 0 || hasRole(u.Role, roles) {
				result = append(result, u)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

func hasRole(role domain.Role, roles []domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type categoryRepo struct{ h *handle }

func (r *categoryRepo) Create(_ context.Context, category *domain.Category) error {
	return r.h.do(func(st *state) error {
		if categoryNameTaken(st, category) {
			return &repository.DuplicateError{Constraint: repository.ConstraintCategoryName}
		}
		category.ID = uuid.NewString()
		category.CreatedAt = r.h.now()
		st.categories[category.ID] = *category
		return nil
	})
}

func (r *categoryRepo) Update(_ context.Context, category *domain.Category) error {
	return r.h.do(func(st *state) error {
		existing, ok := st.categories[category.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if categoryNameTaken(st, category) {
			return &repository.DuplicateError{Constraint: repository.ConstraintCategoryName}
		}
		category.CreatedAt = existing.CreatedAt
		st.categories[category.ID] = *category
		return nil
	})
}

func categoryNameTaken(st *state, category *domain.Category) bool {
	for id, c := range st.categories {
		if id != category.ID && c.Name == category.Name {
			return true
		}
	}
	return false
}

func (r *categoryRepo) Delete(_ context.Context, id string) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.categories[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.categories, id)
		for tid, t := range st.tickets {
			if t.CategoryID != nil && *t.CategoryID == id {
				t.CategoryID = nil
				st.tickets[tid] = t
			}
		}
		for rid, rule := range st.rules {
			if rule.CategoryID != nil && *rule.CategoryID == id {
				delete(st.rules, rid)
			}
		}
		return nil
	})
}

func (r *categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	var found *domain.Category
	err := r.h.do(func(st *state) error {
		c, ok := st.categories[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = &c
		return nil
	})
	return found, err
}

func (r *categoryRepo) List(_ context.Context) ([]domain.Category, error) {
	var result []domain.Category
	err := r.h.do(func(st *state) error {
		for _, c := range st.categories {
			result = append(result, c)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, err
}

type ruleRepo struct{ h *handle }

func (r *ruleRepo) Create(_ context.Context, rule *domain.TriggerRule) error {
	return r.h.do(func(st *state) error {
		rule.ID = uuid.NewString()
		rule.CreatedAt = r.h.now()
		st.rules[rule.ID] = storedRule(rule)
		return nil
	})
}

func (r *ruleRepo) Update(_ context.Context, rule *domain.TriggerRule) error {
	return r.h.do(func(st *state) error {
		existing, ok := st.rules[rule.ID]
		if !ok {
			return repository.ErrNotFound
		}
		rule.CreatedAt = existing.CreatedAt
		st.rules[rule.ID] = storedRule(rule)
		return nil
	})
}

func storedRule(rule *domain.TriggerRule) domain.TriggerRule {
	stored := *rule
	ids := append([]string(nil), rule.NotifyUserIDs...)
	sort.Strings(ids)
	stored.NotifyUserIDs = dedupe(ids)
	return stored
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func (r *ruleRepo) Delete(_ context.Context, id string) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.rules[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.rules, id)
		return nil
	})
}

func (r *ruleRepo) GetByID(_ context.Context, id string) (*domain.TriggerRule, error) {
	var found *domain.TriggerRule
	err := r.h.do(func(st *state) error {
		rule, ok := st.rules[id]
		if !ok {
			return repository.ErrNotFound
		}
		rule.NotifyUserIDs = append([]string{}, rule.NotifyUserIDs...)
		found = &rule
		return nil
	})
	return found, err
}

func (r *ruleRepo) List(_ context.Context) ([]domain.TriggerRule, error) {
	return r.list(false)
}

func (r *ruleRepo) ListActive(_ context.Context) ([]domain.TriggerRule, error) {
	return r.list(true)
}

func (r *ruleRepo) list(activeOnly bool) ([]domain.TriggerRule, error) {
	var result []domain.TriggerRule
	err := r.h.do(func(st *state) error {
		for _, rule := range st.rules {
			if activeOnly && !rule.Active {
				continue
			}
			rule.NotifyUserIDs = append([]string{}, rule.NotifyUserIDs...)
			result = append(result, rule)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, err
}

type ticketRepo struct{ h *handle }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.h.do(func(st *state) error {
		for _, t := range st.tickets {
			if t.Number == ticket.Number {
				return repository.ErrDuplicateTicketNumber
			}
		}
		ticket.ID = uuid.NewString()
		st.tickets[ticket.ID] = *ticket.Clone()
		return nil
	})
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.h.do(func(st *state) error {
		existing, ok := st.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		stored := ticket.Clone()
		stored.Number = existing.Number
		stored.CreatedByID = existing.CreatedByID
		stored.CreatedAt = existing.CreatedAt
		st.tickets[ticket.ID] = *stored
		return nil
	})
}

func (r *ticketRepo) Delete(_ context.Context, id string) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.tickets[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.tickets, id)
		st.history = filterOut(st.history, func(h domain.TicketHistory) bool { return h.TicketID == id })
		st.comments = filterOut(st.comments, func(c domain.TicketComment) bool { return c.TicketID == id })
		st.attachments = filterOut(st.attachments, func(a domain.TicketAttachment) bool { return a.TicketID == id })
		for i := range st.notifications {
			if st.notifications[i].TicketID != nil && *st.notifications[i].TicketID == id {
				st.notifications[i].TicketID = nil
			}
		}
		return nil
	})
}

func filterOut[T any](items []T, drop func(T) bool) []T {
	out := items[:0]
	for _, item := range items {
		if !drop(item) {
			out = append(out, item)
		}
	}
	return out
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var found *domain.Ticket
	err := r.h.do(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = t.Clone()
		return nil
	})
	return found, err
}

func (r *ticketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	var found *domain.Ticket
	err := r.h.do(func(st *state) error {
		for _, t := range st.tickets {
			if t.Number == number {
				found = t.Clone()
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *ticketRepo) matching(st *state, filter repository.TicketFilter) []domain.Ticket {
	var result []domain.Ticket
	for _, t := range st.tickets {
		if ticketMatches(st, &t, filter) {
			result = append(result, *t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result
}

func ticketMatches(st *state, t *domain.Ticket, f repository.TicketFilter) bool {
	if f.CreatedByID != nil && t.CreatedByID != *f.CreatedByID {
		return false
	}
	if f.AssigneeID != nil && !domain.SameID(t.AssigneeID, f.AssigneeID) {
		return false
	}
	if f.Unassigned && t.AssigneeID != nil {
		return false
	}
	if f.CategoryID != nil && !domain.SameID(t.CategoryID, f.CategoryID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsValue(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsValue(f.Priorities, t.Priority) {
		return false
	}
	if f.Escalated != nil && t.Escalated != *f.Escalated {
		return false
	}
	if f.ResolvedFrom != nil && (t.ResolvedAt == nil || t.ResolvedAt.Before(*f.ResolvedFrom)) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" {
			creator := st.users[t.CreatedByID]
			haystacks := []string{t.Number, t.Subject, t.Description, creator.Username}
			found := false
			for _, h := range haystacks {
				if strings.Contains(strings.ToLower(h), term) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func containsValue[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.h.do(func(st *state) error {
		result = r.matching(st, filter)
		return nil
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, err
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], err
}

func (r *ticketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	var count int
	err := r.h.do(func(st *state) error {
		count = len(r.matching(st, filter))
		return nil
	})
	return count, err
}

func (r *ticketRepo) CountByStatus(_ context.Context, filter repository.TicketFilter) (map[domain.TicketStatus]int, error) {
	result := make(map[domain.TicketStatus]int, len(domain.TicketStatuses))
	for _, status := range domain.TicketStatuses {
		result[status] = 0
	}
	err := r.h.do(func(st *state) error {
		for _, t := range r.matching(st, filter) {
			result[t.Status]++
		}
		return nil
	})
	return result, err
}

func (r *ticketRepo) OpenWorkload(_ context.Context) (map[string]int, error) {
	result := map[string]int{}
	err := r.h.do(func(st *state) error {
		for _, t := range st.tickets {
			if t.AssigneeID != nil && t.IsOpenWork() {
				result[*t.AssigneeID]++
			}
		}
		return nil
	})
	return result, err
}

type historyRepo struct{ h *handle }

func (r *historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.tickets[history.TicketID]; !ok {
			return fmt.Errorf("history for unknown ticket %s", history.TicketID)
		}
		history.ID = uuid.NewString()
		st.history = append(st.history, *history)
		return nil
	})
}

// ListByTicket returns newest first; entries sharing a timestamp come back
// in reverse insertion order.
func (r *historyRepo) ListByTicket(_ context.Context, ticketID string, limit int) ([]domain.TicketHistory, error) {
	var result []domain.TicketHistory
	err := r.h.do(func(st *state) error {
		for i := len(st.history) - 1; i >= 0; i-- {
			if st.history[i].TicketID == ticketID {
				result = append(result, st.history[i])
			}
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, err
}

type commentRepo struct{ h *handle }

func (r *commentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.tickets[comment.TicketID]; !ok {
			return fmt.Errorf("comment for unknown ticket %s", comment.TicketID)
		}
		comment.ID = uuid.NewString()
		st.comments = append(st.comments, *comment)
		return nil
	})
}

func (r *commentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.TicketComment, error) {
	var result []domain.TicketComment
	err := r.h.do(func(st *state) error {
		for _, c := range st.comments {
			if c.TicketID == ticketID && (includeInternal || !c.Internal) {
				result = append(result, c)
			}
		}
		return nil
	})
	return result, err
}

type attachmentRepo struct{ h *handle }

func (r *attachmentRepo) Create(_ context.Context, attachment *domain.TicketAttachment) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.tickets[attachment.TicketID]; !ok {
			return fmt.Errorf("attachment for unknown ticket %s", attachment.TicketID)
		}
		attachment.ID = uuid.NewString()
		st.attachments = append(st.attachments, *attachment)
		return nil
	})
}

func (r *attachmentRepo) GetByID(_ context.Context, id string) (*domain.TicketAttachment, error) {
	var found *domain.TicketAttachment
	err := r.h.do(func(st *state) error {
		for _, a := range st.attachments {
			if a.ID == id {
				found = &a
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	var result []domain.TicketAttachment
	err := r.h.do(func(st *state) error {
		for i := len(st.attachments) - 1; i >= 0; i-- {
			if st.attachments[i].TicketID == ticketID {
				result = append(result, st.attachments[i])
			}
		}
		return nil
	})
	return result, err
}

type notificationRepo struct{ h *handle }

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	return r.h.do(func(st *state) error {
		n.ID = uuid.NewString()
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (r *notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	var found *domain.Notification
	err := r.h.do(func(st *state) error {
		for _, n := range st.notifications {
			if n.ID == id {
				found = &n
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *notificationRepo) ListByRecipient(_ context.Context, recipientID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	var result []domain.Notification
	err := r.h.do(func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			n := st.notifications[i]
			if n.RecipientID == recipientID && (!filter.UnreadOnly || !n.Read) {
				result = append(result, n)
			}
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, err
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], err
}

func (r *notificationRepo) MarkRead(_ context.Context, id, recipientID string) error {
	return r.h.do(func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].ID == id && st.notifications[i].RecipientID == recipientID {
				st.notifications[i].Read = true
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *notificationRepo) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.h.do(func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].RecipientID == recipientID && !st.notifications[i].Read {
				st.notifications[i].Read = true
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *notificationRepo) CountUnread(_ context.Context, recipientID string) (int, error) {
	var n int
	err := r.h.do(func(st *state) error {
		for _, item := range st.notifications {
			if item.RecipientID == recipientID && !item.Read {
				n++
			}
		}
		return nil
	})
	return n, err
}

type counterRepo struct{ h *handle }

// Next seeds a missing counter from the highest number already issued.
func (r *counterRepo) Next(_ context.Context, prefix string, year int) (int64, error) {
	var value int64
	err := r.h.do(func(st *state) error {
		key := fmt.Sprintf("%s-%d", prefix, year)
		current, ok := st.counters[key]
		if !ok {
			for _, t := range st.tickets {
				n, err := ticketnumber.Parse(t.Number)
				if err == nil && n.Prefix == prefix && n.Year == year && n.Sequence > current {
					current = n.Sequence
				}
			}
		}
		value = current + 1
		st.counters[key] = value
		return nil
	})
	return value, err
}
