package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

type testServer struct {
	app   *fiber.App
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	var cfg config.Config
	cfg.Auth = config.AuthConfig{JWTSecret: "router-secret", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}

	blobs, err := storage.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	numbers, err := ticketnumber.NewGenerator("BRTS")
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	logger := zap.NewNop()

	repos := store.Repos()
	dispatcher := events.NewInMemoryDispatcher(logger)
	authService := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: repos.Users})
	userService := service.NewUserService(cfg, service.UserDependencies{UserRepo: repos.Users})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		Dispatcher:       dispatcher,
	})
	notifications.RegisterHandlers()
	engine := lifecycle.New(lifecycle.Dependencies{
		Store:          store,
		Numbers:        numbers,
		Storage:        blobs,
		Admins:         userService,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		MaxUploadBytes: 1 << 10,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk-service", "test", map[string]handlers.Pinger{"redis": nil}),
		Users:  handlers.NewUsersHandler(authService, userService),
		Tickets: handlers.NewTicketsHandler(service.NewTicketService(service.TicketDependencies{
			Engine: engine, Store: store, Storage: blobs,
		})),
		Catalog: handlers.NewCatalogHandler(
			service.NewCategoryService(repos.Categories, nil),
			service.NewTriggerRuleService(service.TriggerRuleDependencies{
				RuleRepo: repos.Rules, UserRepo: repos.Users, CategoryRepo: repos.Categories,
			}),
		),
		Notifications:  handlers.NewNotificationsHandler(notifications, service.NewDashboardService(repos.Tickets, notifications, nil)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), repos.Users),
		MetricsPath:    "/metrics",
		Registry:       registry,
	})

	for _, u := range []struct {
		name string
		role domain.Role
	}{{"admin", domain.RoleAdmin}, {"mike_agent", domain.RoleAgent}, {"john_client", domain.RoleClient}, {"jane_client", domain.RoleClient}} {
		hash, err := auth.HashPassword("password123", bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, repos.Users.Create(context.Background(), &domain.User{
			Username: u.name, Email: u.name + "@example.com", Role: u.role, PasswordHash: hash,
		}))
	}
	return &testServer{app: app, store: store}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return s.send(t, req, token)
}

func (s *testServer) send(t *testing.T, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, status)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

type ticketResult struct {
	Ticket struct {
		ID        string `json:"id"`
		Number    string `json:"ticket_number"`
		Priority  string `json:"priority"`
		Status    string `json:"status"`
		Escalated bool   `json:"is_escalated"`
	} `json:"ticket"`
	History []struct {
		Action string `json:"action"`
	} `json:"history"`
	Attachment *struct {
		ID          string `json:"id"`
		DownloadURL string `json:"url"`
	} `json:"attachment"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/tickets", "", nil)

	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestRegisterThenCreateTicket(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "newbie", "email": "newbie@example.com",
		"password": "password123", "password_confirm": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	token := decode[struct {
		AccessToken string `json:"access_token"`
	}](t, env.Data).AccessToken

	status, env = s.do(t, http.MethodPost, "/api/v1/tickets", token, map[string]any{
		"subject": "Printer jam", "description": "Paper stuck", "priority": "critical",
	})
	require.Equal(t, http.StatusCreated, status)
	res := decode[ticketResult](t, env.Data)
	assert.Regexp(t, `^BRTS-\d{4}-0001$`, res.Ticket.Number)
	assert.Equal(t, "medium", res.Ticket.Priority, "clients cannot pick a priority")
	assert.Equal(t, "open", res.Ticket.Status)
}

func TestCreateTicketValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "john_client")

	status, env := s.do(t, http.MethodPost, "/api/v1/tickets", token, map[string]any{"description": "no subject"})

	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	fields, _ := env.Error.Details["fields"].(map[string]any)
	assert.Contains(t, fields, "subject")
}

func TestTriggerRuleEscalatesNewTicket(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin")
	client := s.login(t, "john_client")

	status, _ := s.do(t, http.MethodPost, "/api/v1/trigger-rules", client, map[string]any{
		"name": "x", "keywords": "printer", "action": "escalate",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/trigger-rules", admin, map[string]any{
		"name": "Printers", "keywords": "printer, toner", "action": "escalate",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(t, http.MethodPost, "/api/v1/tickets", client, map[string]any{
		"subject": "PRINTER jammed", "description": "Paper stuck in tray 2",
	})
	require.Equal(t, http.StatusCreated, status)
	res := decode[ticketResult](t, env.Data)
	assert.True(t, res.Ticket.Escalated)
	assert.Equal(t, "high", res.Ticket.Priority, "escalation bumps medium one step")
	require.Len(t, res.History, 1)
	assert.Equal(t, "created", res.History[0].Action)

	// Creation notifies nobody about the escalation; only later escalations do.
	status, env = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", admin, nil)
	require.Equal(t, http.StatusOK, status)
	count := decode[struct {
		Unread int `json:"unread"`
	}](t, env.Data)
	assert.Zero(t, count.Unread)
}

func TestClientCannotSeeOtherClientsTicket(t *testing.T) {
	s := newTestServer(t)
	john := s.login(t, "john_client")
	jane := s.login(t, "jane_client")

	_, env := s.do(t, http.MethodPost, "/api/v1/tickets", john, map[string]any{
		"subject": "VPN", "description": "Cannot connect",
	})
	id := decode[ticketResult](t, env.Data).Ticket.ID

	status, _ := s.do(t, http.MethodGet, "/api/v1/tickets/"+id, jane, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/tickets", jane, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestAgentWorkflow(t *testing.T) {
	s := newTestServer(t)
	client := s.login(t, "john_client")
	agent := s.login(t, "mike_agent")

	_, env := s.do(t, http.MethodPost, "/api/v1/tickets", client, map[string]any{
		"subject": "Laptop", "description": "Screen flickers",
	})
	id := decode[ticketResult](t, env.Data).Ticket.ID

	status, _ := s.do(t, http.MethodPatch, "/api/v1/tickets/"+id, client, map[string]any{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodPatch, "/api/v1/tickets/"+id, agent, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, status)
	res := decode[ticketResult](t, env.Data)
	assert.Equal(t, "in_progress", res.Ticket.Status)
	require.NotEmpty(t, res.History)

	status, env = s.do(t, http.MethodPost, "/api/v1/tickets/"+id+"/escalate", agent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[ticketResult](t, env.Data).Ticket.Escalated)

	status, _ = s.do(t, http.MethodPost, "/api/v1/tickets/"+id+"/comments", client, map[string]any{
		"content": "sneaky", "is_internal": true,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/tickets/"+id+"/comments", agent, map[string]any{
		"content": "**Looking** into it",
	})
	assert.Equal(t, http.StatusCreated, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/tickets/"+id+"/history", agent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, "[]", string(env.Data))

	status, env = s.do(t, http.MethodGet, "/api/v1/tickets?escalated=true", agent, nil)
	require.Equal(t, http.StatusOK, status)
	meta := decode[struct {
		Total int `json:"total"`
	}](t, env.Meta)
	assert.Equal(t, 1, meta.Total)
}

func multipartUpload(t *testing.T, path, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("attachment_type", "log"))
	require.NoError(t, w.WriteField("description", "logs"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	s := newTestServer(t)
	client := s.login(t, "john_client")

	_, env := s.do(t, http.MethodPost, "/api/v1/tickets", client, map[string]any{
		"subject": "Crash", "description": "See log",
	})
	id := decode[ticketResult](t, env.Data).Ticket.ID

	status, env := s.send(t, multipartUpload(t, "/api/v1/tickets/"+id+"/attachments", "crash.log", []byte("boom")), client)
	require.Equal(t, http.StatusCreated, status)
	res := decode[ticketResult](t, env.Data)
	require.NotNil(t, res.Attachment)

	req := httptest.NewRequest(http.MethodGet, res.Attachment.DownloadURL, nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+client)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "boom", string(body))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "crash.log")

	status, env = s.send(t, multipartUpload(t, "/api/v1/tickets/"+id+"/attachments", "big.bin", bytes.Repeat([]byte("x"), 2<<10)), client)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FILE_REJECTED", env.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health/live", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "helpdesk_")
}

func TestMalformedIDs(t *testing.T) {
	s := newTestServer(t)
	agent := s.login(t, "mike_agent")

	status, env := s.do(t, http.MethodGet, "/api/v1/tickets?category=abc", agent, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	fields, _ := env.Error.Details["fields"].(map[string]any)
	assert.Contains(t, fields, "category")

	status, env = s.do(t, http.MethodPost, "/api/v1/tickets", agent, map[string]any{
		"subject": "VPN", "description": "down", "category_id": "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	fields, _ = env.Error.Details["fields"].(map[string]any)
	assert.Contains(t, fields, "category_id")

	status, env = s.do(t, http.MethodGet, "/api/v1/tickets/abc", agent, nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
