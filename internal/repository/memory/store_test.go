package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

func seedUser(t *testing.T, s *Store, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com", Role: role}
	require.NoError(t, s.Repos().Users.Create(context.Background(), u))
	return u
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	client := seedUser(t, s, "client", domain.RoleClient)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repository.Repositories) error {
		tk := &domain.Ticket{Number: "BRTS-2025-0001", Subject: "x", CreatedByID: client.ID, Status: domain.TicketStatusOpen}
		require.NoError(t, r.Tickets.Create(ctx, tk))
		require.NoError(t, r.History.Create(ctx, &domain.TicketHistory{TicketID: tk.ID, Action: domain.HistoryCreated}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := s.Repos().Tickets.Count(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWithinTxCommits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	client := seedUser(t, s, "client", domain.RoleClient)

	var id string
	require.NoError(t, s.WithinTx(ctx, func(r repository.Repositories) error {
		tk := &domain.Ticket{Number: "BRTS-2025-0001", Subject: "x", CreatedByID: client.ID}
		if err := r.Tickets.Create(ctx, tk); err != nil {
			return err
		}
		id = tk.ID
		return nil
	}))

	got, err := s.Repos().Tickets.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BRTS-2025-0001", got.Number)
}

func TestDuplicateTicketNumber(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()
	require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{Number: "BRTS-2025-0001"}))
	err := repos.Tickets.Create(ctx, &domain.Ticket{Number: "BRTS-2025-0001"})
	assert.ErrorIs(t, err, repository.ErrDuplicateTicketNumber)
}

func TestCounterSeedsFromExistingAndNeverReuses(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()
	tk := &domain.Ticket{Number: "BRTS-2025-0007"}
	require.NoError(t, repos.Tickets.Create(ctx, tk))

	v, err := repos.Counters.Next(ctx, "BRTS", 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 8, v)

	require.NoError(t, repos.Tickets.Delete(ctx, tk.ID))
	v, err = repos.Counters.Next(ctx, "BRTS", 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 9, v)

	v, err = repos.Counters.Next(ctx, "BRTS", 2026)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestTicketDeleteCascadesAndNullsNotifications(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()
	client := seedUser(t, s, "client", domain.RoleClient)
	tk := &domain.Ticket{Number: "BRTS-2025-0001", CreatedByID: client.ID}
	require.NoError(t, repos.Tickets.Create(ctx, tk))
	require.NoError(t, repos.History.Create(ctx, &domain.TicketHistory{TicketID: tk.ID, Action: domain.HistoryCreated}))
	require.NoError(t, repos.Comments.Create(ctx, &domain.TicketComment{TicketID: tk.ID, AuthorID: client.ID, Content: "hi"}))
	n := &domain.Notification{RecipientID: client.ID, TicketID: &tk.ID, Title: "t"}
	require.NoError(t, repos.Notifications.Create(ctx, n))

	require.NoError(t, repos.Tickets.Delete(ctx, tk.ID))

	history, _ := repos.History.ListByTicket(ctx, tk.ID, 0)
	assert.Empty(t, history)
	comments, _ := repos.Comments.ListByTicket(ctx, tk.ID, true)
	assert.Empty(t, comments)
	got, err := repos.Notifications.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TicketID)
}

func TestCategoryDeleteNullsTicketsAndDropsRules(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()
	cat := &domain.Category{Name: "Network"}
	require.NoError(t, repos.Categories.Create(ctx, cat))
	tk := &domain.Ticket{Number: "BRTS-2025-0001", CategoryID: &cat.ID}
	require.NoError(t, repos.Tickets.Create(ctx, tk))
	rule := &domain.TriggerRule{Name: "vpn", Keywords: "vpn", Action: domain.TriggerNotify, CategoryID: &cat.ID, Active: true}
	require.NoError(t, repos.Rules.Create(ctx, rule))

	require.NoError(t, repos.Categories.Delete(ctx, cat.ID))

	got, _ := repos.Tickets.GetByID(ctx, tk.ID)
	assert.Nil(t, got.CategoryID)
	_, err := repos.Rules.GetByID(ctx, rule.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCategoryNameUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Repos().Categories.Create(ctx, &domain.Category{Name: "Network"}))
	err := s.Repos().Categories.Create(ctx, &domain.Category{Name: "Network"})
	require.ErrorIs(t, err, repository.ErrDuplicate)
	var dup *repository.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "name", dup.DuplicateField())
}

func TestTicketListFiltersAndSearch(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	repos := s.Repos()
	alice := seedUser(t, s, "alice", domain.RoleClient)
	agent := seedUser(t, s, "agent", domain.RoleAgent)

	mk := func(num, subject string, status domain.TicketStatus, assignee *string, offset time.Duration) {
		require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{
			Number: num, Subject: subject, Status: status, Priority: domain.LevelMedium,
			CreatedByID: alice.ID, AssigneeID: assignee, CreatedAt: base.Add(offset),
		}))
	}
	mk("BRTS-2025-0001", "Printer jam", domain.TicketStatusOpen, &agent.ID, 0)
	mk("BRTS-2025-0002", "VPN drops", domain.TicketStatusInProgress, &agent.ID, time.Hour)
	mk("BRTS-2025-0003", "Password", domain.TicketStatusResolved, nil, 2*time.Hour)

	all, err := repos.Tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BRTS-2025-0003", all[0].Number)

	unassigned, _ := repos.Tickets.List(ctx, repository.TicketFilter{Unassigned: true})
	require.Len(t, unassigned, 1)

	term := "vpn"
	found, _ := repos.Tickets.List(ctx, repository.TicketFilter{SearchTerm: &term})
	require.Len(t, found, 1)
	assert.Equal(t, "BRTS-2025-0002", found[0].Number)

	term = "ALICE"
	byCreator, _ := repos.Tickets.Count(ctx, repository.TicketFilter{SearchTerm: &term})
	assert.Equal(t, 3, byCreator)

	workload, _ := repos.Tickets.OpenWorkload(ctx)
	assert.Equal(t, map[string]int{agent.ID: 2}, workload)

	counts, _ := repos.Tickets.CountByStatus(ctx, repository.TicketFilter{})
	assert.Equal(t, 1, counts[domain.TicketStatusOpen])
	assert.Equal(t, 0, counts[domain.TicketStatusClosed])
}

func TestNotificationsReadState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repos := s.Repos()
	for i := 0; i < 3; i++ {
		require.NoError(t, repos.Notifications.Create(ctx, &domain.Notification{RecipientID: "u1", Title: "t"}))
	}
	require.NoError(t, repos.Notifications.Create(ctx, &domain.Notification{RecipientID: "u2", Title: "t"}))

	list, _ := repos.Notifications.ListByRecipient(ctx, "u1", repository.NotificationFilter{})
	require.Len(t, list, 3)

	assert.ErrorIs(t, repos.Notifications.MarkRead(ctx, list[0].ID, "u2"), repository.ErrNotFound)
	require.NoError(t, repos.Notifications.MarkRead(ctx, list[0].ID, "u1"))
	unread, _ := repos.Notifications.CountUnread(ctx, "u1")
	assert.Equal(t, 2, unread)

	n, _ := repos.Notifications.MarkAllRead(ctx, "u1")
	assert.EqualValues(t, 2, n)
	unread, _ = repos.Notifications.CountUnread(ctx, "u2")
	assert.Equal(t, 1, unread)
}
