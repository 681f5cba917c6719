package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// DashboardStats are the counters on a user's landing page.
type DashboardStats struct {
	Total         int                         `json:"total"`
	ByStatus      map[domain.TicketStatus]int `json:"by_status"`
	AssignedToMe  int                         `json:"assigned_to_me,omitempty"`
	CriticalOpen  int                         `json:"critical_open,omitempty"`
	EscalatedOpen int                         `json:"escalated_open,omitempty"`
	ResolvedToday int                         `json:"resolved_today,omitempty"`
	UnreadNotices int                         `json:"unread_notifications"`
}

// DashboardService aggregates ticket counts per role.
type DashboardService struct {
	tickets       repository.TicketRepository
	notifications *NotificationService
	now           func() time.Time
}

// NewDashboardService constructs the service. now may be nil.
func NewDashboardService(tickets repository.TicketRepository, notifications *NotificationService, now func() time.Time) *DashboardService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DashboardService{tickets: tickets, notifications: notifications, now: now}
}

var openWork = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}

// Stats returns the counters visible to actor. Clients see only their own
// tickets; staff see the whole queue.
func (s *DashboardService) Stats(ctx context.Context, actor *domain.User) (*DashboardStats, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	scope := repository.TicketFilter{}
	if actor.IsClient() {
		scope.CreatedByID = domain.StringPtr(actor.ID)
	}
	byStatus, err := s.tickets.CountByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{ByStatus: map[domain.TicketStatus]int{}}
	for _, st := range domain.TicketStatuses {
		stats.ByStatus[st] = byStatus[st]
		stats.Total += byStatus[st]
	}

	if actor.IsStaff() {
		counts := []struct {
			dst    *int
			filter repository.TicketFilter
		}{
			{&stats.AssignedToMe, repository.TicketFilter{AssigneeID: domain.StringPtr(actor.ID), Statuses: openWork}},
			{&stats.CriticalOpen, repository.TicketFilter{Priorities: []domain.Level{domain.LevelCritical}, Statuses: openWork}},
			{&stats.EscalatedOpen, repository.TicketFilter{Escalated: boolPtr(true), Statuses: openWork}},
			{&stats.ResolvedToday, repository.TicketFilter{ResolvedFrom: timePtr(startOfDay(s.now()))}},
		}
		for _, c := range counts {
			if *c.dst, err = s.tickets.Count(ctx, c.filter); err != nil {
				return nil, err
			}
		}
	}

	if s.notifications != nil {
		if stats.UnreadNotices, err = s.notifications.UnreadCount(ctx, actor); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }
