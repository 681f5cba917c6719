package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeCache struct {
	mu          sync.Mutex
	values      map[string]int
	gens        map[string]int64
	gets        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]int{}, gens: map[string]int64{}}
}

func (c *fakeCache) Get(_ context.Context, id string) (int, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.values[id]
	return v, c.gens[id], ok, nil
}

func (c *fakeCache) Set(_ context.Context, id string, n int, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] == gen {
		c.values[id] = n
	}
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, id)
	c.gens[id]++
	c.invalidated = append(c.invalidated, id)
	return nil
}

type fakeQueue struct {
	mu     sync.Mutex
	queued []domain.Notification
}

func (q *fakeQueue) Enqueue(n domain.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, n)
	return nil
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	cfg   config.Config
	cache *fakeCache
	queue *fakeQueue

	auth          *AuthService
	users         *UserService
	categories    *CategoryService
	rules         *TriggerRuleService
	tickets       *TicketService
	notifications *NotificationService
	dashboard     *DashboardService

	client *domain.User
	other  *domain.User
	agent  *domain.User
	admin  *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.NewStore(),
		cache: newFakeCache(),
		queue: &fakeQueue{},
	}
	f.store.SetClock(func() time.Time { return testNow })
	f.cfg.Auth = config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost}

	blobs, err := storage.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	gen, err := ticketnumber.NewGenerator("BRTS")
	require.NoError(t, err)

	repos := f.store.Repos()
	dispatcher := events.NewInMemoryDispatcher(nil)
	f.users = NewUserService(f.cfg, UserDependencies{UserRepo: repos.Users})
	engine := lifecycle.New(lifecycle.Dependencies{
		Store:      f.store,
		Numbers:    gen,
		Storage:    blobs,
		Admins:     f.users,
		Dispatcher: dispatcher,
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		Clock:      lifecycle.ClockFunc(func() time.Time { return testNow }),
	})

	f.auth = NewAuthService(f.cfg, AuthDependencies{UserRepo: repos.Users})
	f.categories = NewCategoryService(repos.Categories, nil)
	f.rules = NewTriggerRuleService(TriggerRuleDependencies{RuleRepo: repos.Rules, UserRepo: repos.Users, CategoryRepo: repos.Categories})
	f.tickets = NewTicketService(TicketDependencies{Engine: engine, Store: f.store, Storage: blobs})
	f.notifications = NewNotificationService(NotificationDependencies{
		NotificationRepo: repos.Notifications,
		Cache:            f.cache,
		Queue:            f.queue,
		Dispatcher:       dispatcher,
	})
	f.notifications.RegisterHandlers()
	f.dashboard = NewDashboardService(repos.Tickets, f.notifications, func() time.Time { return testNow })

	f.client = f.user(t, "john_client", domain.RoleClient)
	f.other = f.user(t, "jane_client", domain.RoleClient)
	f.agent = f.user(t, "mike_agent", domain.RoleAgent)
	f.admin = f.user(t, "admin", domain.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, username string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{Username: username, Email: username + "@example.com", Role: role, PasswordHash: hash}
	require.NoError(t, f.store.Repos().Users.Create(f.ctx, u))
	return u
}

func (f *fixture) ticket(t *testing.T, owner *domain.User, subject string) *domain.Ticket {
	t.Helper()
	res, err := f.tickets.CreateTicket(f.ctx, owner, TicketCreateInput{Subject: subject, Description: "details"})
	require.NoError(t, err)
	return res.Ticket
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, code), "want %s, got %v", code, err)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(f.ctx, RegisterInput{
		Username: "newbie", Email: "newbie@example.com",
		Password: "password123", PasswordConfirm: "password124",
	})

	requireCode(t, err, apperrors.CodeValidation)
	assert.Contains(t, apperrors.FieldErrors(err), "password_confirm")
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(f.ctx, RegisterInput{
		Username: "john_client", Email: "JOHN_CLIENT@example.com",
		Password: "password123", PasswordConfirm: "password123",
	})

	fields := apperrors.FieldErrors(err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)

	session, err := f.auth.Register(f.ctx, RegisterInput{
		Username: "newbie", Email: "Newbie@Example.com",
		Password: "password123", PasswordConfirm: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, session.User.Role)
	assert.Equal(t, "newbie@example.com", session.User.Email)
	assert.NotEmpty(t, session.Token)

	byName, err := f.auth.Login(f.ctx, "newbie", "password123")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, byName.User.ID)

	byEmail, err := f.auth.Login(f.ctx, "newbie@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, byEmail.User.ID)

	claims, err := f.auth.TokenManager().ParseToken(byEmail.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
}

func TestLogin_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Login(f.ctx, "john_client", "wrong-password")
	requireCode(t, err, apperrors.CodeBadCredential)

	_, err = f.auth.Login(f.ctx, "nobody", "password123")
	requireCode(t, err, apperrors.CodeBadCredential)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)

	err := f.auth.ChangePassword(f.ctx, f.client, "nope", "newpassword1", "newpassword1")
	assert.Contains(t, apperrors.FieldErrors(err), "current_password")

	err = f.auth.ChangePassword(f.ctx, f.client, "password123", "newpassword1", "different1")
	assert.Contains(t, apperrors.FieldErrors(err), "new_password_confirm")

	require.NoError(t, f.auth.ChangePassword(f.ctx, f.client, "password123", "newpassword1", "newpassword1"))
	_, err = f.auth.Login(f.ctx, "john_client", "newpassword1")
	assert.NoError(t, err)
}

func TestUserService_CreateStaff(t *testing.T) {
	f := newFixture(t)
	in := CreateUserInput{Username: "sara_agent", Email: "sara@example.com", Password: "password123", Role: domain.RoleAgent}

	_, err := f.users.CreateUser(f.ctx, f.agent, in)
	requireCode(t, err, apperrors.CodeForbidden)

	u, err := f.users.CreateUser(f.ctx, f.admin, in)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, u.Role)

	agents, err := f.users.ListUsers(f.ctx, f.admin, domain.RoleAgent)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	_, err = f.users.ListUsers(f.ctx, f.client)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestUserService_Profile(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Get(f.ctx, f.client, f.other.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	first := "John"
	u, err := f.users.UpdateProfile(f.ctx, f.client, ProfileInput{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "John", u.FirstName)
	assert.Equal(t, domain.RoleClient, u.Role)
}

func TestCategoryService(t *testing.T) {
	f := newFixture(t)

	_, err := f.categories.Create(f.ctx, f.agent, CategoryInput{Name: "Network"})
	requireCode(t, err, apperrors.CodeForbidden)

	c, err := f.categories.Create(f.ctx, f.admin, CategoryInput{Name: " Network "})
	require.NoError(t, err)
	assert.Equal(t, "Network", c.Name)
	assert.Equal(t, domain.DefaultCategoryColor, c.Color)

	_, err = f.categories.Create(f.ctx, f.admin, CategoryInput{Name: "Network"})
	assert.Equal(t, "name already exists", apperrors.FieldErrors(err)["name"])

	_, err = f.categories.Create(f.ctx, f.admin, CategoryInput{Name: "Email", Color: "red"})
	assert.Contains(t, apperrors.FieldErrors(err), "color")

	require.NoError(t, f.categories.Delete(f.ctx, f.admin, c.ID))
	requireCode(t, f.categories.Delete(f.ctx, f.admin, c.ID), apperrors.CodeNotFound)
}

func TestTriggerRuleService_NotifyRecipientsMustBeStaff(t *testing.T) {
	f := newFixture(t)

	_, err := f.rules.Create(f.ctx, f.admin, TriggerRuleInput{
		Name: "Outages", Keywords: "outage", Action: domain.TriggerNotify,
		NotifyUserIDs: []string{f.client.ID}, Active: true,
	})
	assert.Contains(t, apperrors.FieldErrors(err), "notify_users")

	r, err := f.rules.Create(f.ctx, f.admin, TriggerRuleInput{
		Name: "Outages", Keywords: "outage", Action: domain.TriggerNotify,
		NotifyUserIDs: []string{f.agent.ID}, Active: true,
	})
	require.NoError(t, err)

	r, err = f.rules.SetActive(f.ctx, f.admin, r.ID, false)
	require.NoError(t, err)
	assert.False(t, r.Active)
}

func TestTriggerRuleService_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.rules.Create(f.ctx, f.admin, TriggerRuleInput{Name: "", Keywords: " , ", Action: "explode"})
	fields := apperrors.FieldErrors(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "keywords")
	assert.Contains(t, fields, "action")

	_, err = f.rules.List(f.ctx, f.agent)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestCreateTicket_ClientCannotChoosePriorityOrAssignee(t *testing.T) {
	f := newFixture(t)

	res, err := f.tickets.CreateTicket(f.ctx, f.client, TicketCreateInput{
		Subject: "Printer jam", Description: "tray 2",
		Priority: domain.LevelCritical, AssigneeID: &f.agent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LevelMedium, res.Ticket.Priority)
	assert.Nil(t, res.Ticket.AssigneeID)

	res, err = f.tickets.CreateTicket(f.ctx, f.agent, TicketCreateInput{
		Subject: "Printer jam", Description: "tray 3",
		Priority: domain.LevelHigh, AssigneeID: &f.agent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LevelHigh, res.Ticket.Priority)
	require.NotNil(t, res.Ticket.AssigneeID)
}

func TestTicketVisibility(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "VPN broken")

	_, err := f.tickets.GetTicket(f.ctx, f.other, tk.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.tickets.GetTicket(f.ctx, f.other, "missing")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.tickets.AddComment(f.ctx, f.other, tk.ID, "me too", false)
	requireCode(t, err, apperrors.CodeForbidden)

	d, err := f.tickets.GetTicket(f.ctx, f.agent, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, d.Creator.ID)
}

func TestTicketDetail_HidesInternalCommentsFromClients(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "VPN broken")

	_, err := f.tickets.AddComment(f.ctx, f.agent, tk.ID, "**checking** the tunnel", false)
	require.NoError(t, err)
	_, err = f.tickets.AddComment(f.ctx, f.agent, tk.ID, "client config is wrong", true)
	require.NoError(t, err)

	_, err = f.tickets.AddComment(f.ctx, f.client, tk.ID, "secret", true)
	requireCode(t, err, apperrors.CodeForbidden)

	clientView, err := f.tickets.GetTicket(f.ctx, f.client, tk.ID)
	require.NoError(t, err)
	require.Len(t, clientView.Comments, 1)
	assert.Contains(t, clientView.Comments[0].HTML, "<strong>checking</strong>")
	assert.Equal(t, f.agent.ID, clientView.Comments[0].Author.ID)

	staffView, err := f.tickets.GetTicket(f.ctx, f.agent, tk.ID)
	require.NoError(t, err)
	assert.Len(t, staffView.Comments, 2)
	assert.NotEmpty(t, staffView.History)
}

func TestTicketDetail_HistoryIsCapped(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "Noisy ticket")
	for i := 0; i < 25; i++ {
		_, err := f.tickets.AddComment(f.ctx, f.agent, tk.ID, "ping", false)
		require.NoError(t, err)
	}

	d, err := f.tickets.GetTicket(f.ctx, f.agent, tk.ID)
	require.NoError(t, err)
	assert.Len(t, d.History, detailHistoryLimit)

	all, err := f.tickets.History(f.ctx, f.agent, tk.ID)
	require.NoError(t, err)
	assert.Len(t, all, 26)
}

func TestStaffOnlyOperations(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "Laptop")
	status := domain.TicketStatusResolved

	_, err := f.tickets.UpdateTicket(f.ctx, f.client, tk.ID, lifecycle.UpdateInput{Status: &status})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.AssignTicket(f.ctx, f.client, tk.ID, &f.agent.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.EscalateTicket(f.ctx, f.client, tk.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	requireCode(t, f.tickets.DeleteTicket(f.ctx, f.agent, tk.ID), apperrors.CodeForbidden)

	res, err := f.tickets.UpdateTicket(f.ctx, f.agent, tk.ID, lifecycle.UpdateInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, res.Ticket.Status)

	require.NoError(t, f.tickets.DeleteTicket(f.ctx, f.admin, tk.ID))
}

func TestListTickets_Filters(t *testing.T) {
	f := newFixture(t)
	mine := f.ticket(t, f.client, "Server outage in DC1")
	f.ticket(t, f.client, "Keyboard sticky")
	f.ticket(t, f.other, "Mouse broken")
	_, err := f.tickets.AssignTicket(f.ctx, f.agent, mine.ID, &f.agent.ID)
	require.NoError(t, err)

	clientPage, err := f.tickets.ListTickets(f.ctx, f.client, TicketQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, clientPage.Total)

	critical, err := f.tickets.ListTickets(f.ctx, f.agent, TicketQuery{Priority: domain.LevelCritical})
	require.NoError(t, err)
	require.Equal(t, 1, critical.Total)
	assert.Equal(t, mine.ID, critical.Items[0].ID)

	assigned, err := f.tickets.ListTickets(f.ctx, f.agent, TicketQuery{Assigned: "me"})
	require.NoError(t, err)
	assert.Equal(t, 1, assigned.Total)

	unassigned, err := f.tickets.ListTickets(f.ctx, f.agent, TicketQuery{Assigned: "unassigned"})
	require.NoError(t, err)
	assert.Equal(t, 2, unassigned.Total)

	byCreator, err := f.tickets.ListTickets(f.ctx, f.agent, TicketQuery{Search: "jane_client"})
	require.NoError(t, err)
	assert.Equal(t, 1, byCreator.Total)

	paged, err := f.tickets.ListTickets(f.ctx, f.agent, TicketQuery{Page: Page{Limit: 2, Offset: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	assert.Len(t, paged.Items, 1)

	_, err = f.tickets.ListTickets(f.ctx, f.agent, TicketQuery{Status: "done"})
	assert.Contains(t, apperrors.FieldErrors(err), "status")
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "Crash report")
	body := "panic: nil map"

	res, err := f.tickets.AddAttachment(f.ctx, f.client, lifecycle.AttachmentInput{
		TicketID: tk.ID, FileName: "crash.log", Size: int64(len(body)),
		ContentType: "text/plain", Type: domain.AttachmentLog, Body: strings.NewReader(body),
	})
	require.NoError(t, err)

	_, _, err = f.tickets.OpenAttachment(f.ctx, f.other, res.Attachment.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	meta, rc, err := f.tickets.OpenAttachment(f.ctx, f.agent, res.Attachment.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.Equal(t, "crash.log", meta.FileName)

	_, err = f.tickets.AddAttachment(f.ctx, f.other, lifecycle.AttachmentInput{
		TicketID: tk.ID, FileName: "x.txt", Size: 1, Body: strings.NewReader("x"),
	})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestNotifications_InboxAndCache(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "Wifi")
	_, err := f.tickets.AssignTicket(f.ctx, f.admin, tk.ID, &f.agent.ID)
	require.NoError(t, err)
	_, err = f.tickets.AddComment(f.ctx, f.agent, tk.ID, "on it", false)
	require.NoError(t, err)

	assert.Len(t, f.queue.queued, 2)
	assert.Contains(t, f.cache.invalidated, f.agent.ID)
	assert.Contains(t, f.cache.invalidated, f.client.ID)

	count, err := f.notifications.UnreadCount(f.ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.cache.values[f.client.ID])

	count, err = f.notifications.UnreadCount(f.ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	inbox, err := f.notifications.List(f.ctx, f.client, true, Page{})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationNewComment, inbox[0].Type)

	requireCode(t, f.notifications.MarkRead(f.ctx, f.other, inbox[0].ID), apperrors.CodeNotFound)
	require.NoError(t, f.notifications.MarkRead(f.ctx, f.client, inbox[0].ID))
	_, cached := f.cache.values[f.client.ID]
	assert.False(t, cached)

	count, err = f.notifications.UnreadCount(f.ctx, f.client)
	require.NoError(t, err)
	assert.Zero(t, count)

	changed, err := f.notifications.MarkAllRead(f.ctx, f.agent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	outage := f.ticket(t, f.client, "Production outage")
	f.ticket(t, f.client, "Question")
	f.ticket(t, f.other, "Other")
	_, err := f.tickets.AssignTicket(f.ctx, f.agent, outage.ID, &f.agent.ID)
	require.NoError(t, err)
	_, err = f.tickets.EscalateTicket(f.ctx, f.agent, outage.ID)
	require.NoError(t, err)

	clientStats, err := f.dashboard.Stats(f.ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, 2, clientStats.Total)
	assert.Equal(t, 2, clientStats.ByStatus[domain.TicketStatusOpen])
	assert.Zero(t, clientStats.CriticalOpen)

	staffStats, err := f.dashboard.Stats(f.ctx, f.agent)
	require.NoError(t, err)
	assert.Equal(t, 3, staffStats.Total)
	assert.Equal(t, 1, staffStats.AssignedToMe)
	assert.Equal(t, 1, staffStats.CriticalOpen)
	assert.Equal(t, 1, staffStats.EscalatedOpen)

	resolved := domain.TicketStatusResolved
	_, err = f.tickets.UpdateTicket(f.ctx, f.agent, outage.ID, lifecycle.UpdateInput{Status: &resolved})
	require.NoError(t, err)
	staffStats, err = f.dashboard.Stats(f.ctx, f.agent)
	require.NoError(t, err)
	assert.Equal(t, 1, staffStats.ResolvedToday)
}

func TestEscalateTicket_NotifiesAdmins(t *testing.T) {
	f := newFixture(t)
	tk := f.ticket(t, f.client, "Laptop")

	done := make(chan struct{})
	var res *lifecycle.Result
	var err error
	go func() {
		defer close(done)
		res, err = f.tickets.EscalateTicket(f.ctx, f.agent, tk.ID)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("EscalateTicket did not return")
	}

	require.NoError(t, err)
	assert.True(t, res.Ticket.Escalated)
	var adminNotices int
	for _, n := range res.Notifications {
		if n.RecipientID == f.admin.ID && n.Type == domain.NotificationTicketEscalated {
			adminNotices++
		}
	}
	assert.Equal(t, 1, adminNotices)
}

// countHook runs after the unread count is read and before it is cached.
type countHook struct {
	repository.NotificationRepository
	after func()
}

func (h countHook) CountUnread(ctx context.Context, recipientID string) (int, error) {
	n, err := h.NotificationRepository.CountUnread(ctx, recipientID)
	if h.after != nil {
		h.after()
	}
	return n, err
}

func TestUnreadCount_NotificationDuringRecountIsNotHidden(t *testing.T) {
	f := newFixture(t)
	repo := f.store.Repos().Notifications
	dispatcher := events.NewInMemoryDispatcher(nil)

	hook := &countHook{NotificationRepository: repo}
	svc := NewNotificationService(NotificationDependencies{
		NotificationRepo: hook,
		Cache:            f.cache,
		Dispatcher:       dispatcher,
	})
	svc.RegisterHandlers()

	hook.after = func() {
		hook.after = nil
		n := domain.Notification{RecipientID: f.client.ID, Type: domain.NotificationTicketUpdated, Title: "t", Message: "m", CreatedAt: testNow}
		require.NoError(t, repo.Create(f.ctx, &n))
		require.NoError(t, dispatcher.Publish(f.ctx, events.Event{
			Type:    events.EventNotificationCreated,
			Payload: events.NotificationCreatedPayload{Notification: n},
		}))
	}

	count, err := svc.UnreadCount(f.ctx, f.client)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, cached := f.cache.values[f.client.ID]
	assert.False(t, cached)

	count, err = svc.UnreadCount(f.ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.cache.values[f.client.ID])
}
