package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/render"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// detailHistoryLimit caps the audit entries shown on a ticket.
const detailHistoryLimit = 20

// TicketService applies access rules around the lifecycle engine and serves
// the read side of tickets.
type TicketService struct {
	engine   *lifecycle.Engine
	repos    repository.Repositories
	blobs    storage.Backend
	renderer *render.Renderer
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Engine   *lifecycle.Engine
	Store    repository.Store
	Storage  storage.Backend
	Renderer *render.Renderer
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	r := deps.Renderer
	if r == nil {
		r = render.New()
	}
	return &TicketService{
		engine:   deps.Engine,
		repos:    deps.Store.Repos(),
		blobs:    deps.Storage,
		renderer: r,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	CategoryID  *string
	Severity    domain.Level
	Priority    domain.Level
	AssigneeID  *string
}

// CreateTicket files a ticket as actor. Priority and assignee are staff
// choices; a client's values are ignored and automation decides.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, in TicketCreateInput) (*lifecycle.Result, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	create := lifecycle.CreateInput{
		Subject:     in.Subject,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Severity:    in.Severity,
		CreatedByID: actor.ID,
	}
	if actor.IsStaff() {
		create.Priority = in.Priority
		create.AssigneeID = in.AssigneeID
	}
	return s.engine.CreateTicket(ctx, create)
}

// TicketQuery narrows a ticket listing.
type TicketQuery struct {
	Status     domain.TicketStatus
	Priority   domain.Level
	CategoryID *string
	// Assigned is "me" or "unassigned"; anything else is ignored.
	Assigned  string
	Escalated *bool
	Search    string
	Page      Page
}

// TicketPage is one window of a listing.
type TicketPage struct {
	Items  []domain.Ticket
	Total  int
	Limit  int
	Offset int
}

// ListTickets lists what actor may see, newest first. Clients only ever see
// their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, q TicketQuery) (*TicketPage, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if q.Status != "" && !q.Status.Valid() {
		fields["status"] = "invalid status"
	}
	if q.Priority != "" && !q.Priority.Valid() {
		fields["priority"] = "invalid priority"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	page := q.Page.normalize()
	filter := repository.TicketFilter{
		CategoryID: q.CategoryID,
		Escalated:  q.Escalated,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if q.Status != "" {
		filter.Statuses = []domain.TicketStatus{q.Status}
	}
	if q.Priority != "" {
		filter.Priorities = []domain.Level{q.Priority}
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		filter.SearchTerm = &term
	}
	if actor.IsClient() {
		filter.CreatedByID = domain.StringPtr(actor.ID)
	} else {
		switch q.Assigned {
		case "me":
			filter.AssigneeID = domain.StringPtr(actor.ID)
		case "unassigned":
			filter.Unassigned = true
		}
	}

	items, err := s.repos.Tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repos.Tickets.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TicketPage{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// CommentView is a comment with its author and rendered body.
type CommentView struct {
	domain.TicketComment
	Author *domain.User
	HTML   string
}

// TicketDetail is everything shown on a ticket page.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Creator     *domain.User
	Assignee    *domain.User
	Category    *domain.Category
	Comments    []CommentView
	Attachments []domain.TicketAttachment
	History     []domain.TicketHistory
}

// GetTicket loads a ticket with its activity. Internal comments are hidden
// from clients and history is limited to the latest entries.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, id string) (*TicketDetail, error) {
	t, err := s.visibleTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	d := &TicketDetail{Ticket: t}
	users := map[string]*domain.User{}
	lookup := func(id string) *domain.User {
		if u, ok := users[id]; ok {
			return u
		}
		u, err := s.repos.Users.GetByID(ctx, id)
		if err != nil {
			u = nil
		}
		users[id] = u
		return u
	}

	d.Creator = lookup(t.CreatedByID)
	if t.AssigneeID != nil {
		d.Assignee = lookup(*t.AssigneeID)
	}
	if t.CategoryID != nil {
		if c, err := s.repos.Categories.GetByID(ctx, *t.CategoryID); err == nil {
			d.Category = c
		}
	}

	comments, err := s.repos.Comments.ListByTicket(ctx, t.ID, actor.IsStaff())
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		d.Comments = append(d.Comments, CommentView{
			TicketComment: c,
			Author:        lookup(c.AuthorID),
			HTML:          s.renderer.Markdown(c.Content),
		})
	}
	if d.Attachments, err = s.repos.Attachments.ListByTicket(ctx, t.ID); err != nil {
		return nil, err
	}
	if d.History, err = s.repos.History.ListByTicket(ctx, t.ID, detailHistoryLimit); err != nil {
		return nil, err
	}
	return d, nil
}

// History returns the full audit trail, newest first. Staff only.
func (s *TicketService) History(ctx context.Context, actor *domain.User, id string) ([]domain.TicketHistory, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if _, err := s.repos.Tickets.GetByID(ctx, id); err != nil {
		return nil, notFound("ticket", id, err)
	}
	return s.repos.History.ListByTicket(ctx, id, 0)
}

// UpdateTicket applies a staff edit.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, id string, in lifecycle.UpdateInput) (*lifecycle.Result, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.engine.UpdateTicket(ctx, id, actor, in)
}

// AssignTicket sets or clears the assignee. Staff only.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, id string, assigneeID *string) (*lifecycle.Result, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.engine.Assign(ctx, id, assigneeID, actor)
}

// EscalateTicket flags a ticket for admin attention. Staff only.
func (s *TicketService) EscalateTicket(ctx context.Context, actor *domain.User, id string) (*lifecycle.Result, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.engine.Escalate(ctx, id, actor)
}

// DeleteTicket removes a ticket. Admin only.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.engine.DeleteTicket(ctx, id, actor)
}

// AddComment posts a reply. Clients may comment on their own tickets but
// never internally.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string, internal bool) (*lifecycle.Result, error) {
	if _, err := s.visibleTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	if internal && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only staff can post internal comments")
	}
	return s.engine.AddComment(ctx, lifecycle.CommentInput{
		TicketID: ticketID,
		Author:   actor,
		Content:  content,
		Internal: internal,
	})
}

// AddAttachment uploads a file to a ticket the actor can see.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, in lifecycle.AttachmentInput) (*lifecycle.Result, error) {
	if _, err := s.visibleTicket(ctx, actor, in.TicketID); err != nil {
		return nil, err
	}
	in.Uploader = actor
	return s.engine.AddAttachment(ctx, in)
}

// OpenAttachment streams a stored file. The caller closes the reader.
func (s *TicketService) OpenAttachment(ctx context.Context, actor *domain.User, attachmentID string) (*domain.TicketAttachment, io.ReadCloser, error) {
	if err := requireUser(actor); err != nil {
		return nil, nil, err
	}
	a, err := s.repos.Attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, notFound("attachment", attachmentID, err)
	}
	if _, err := s.visibleTicket(ctx, actor, a.TicketID); err != nil {
		return nil, nil, err
	}
	if s.blobs == nil {
		return nil, nil, apperrors.NewInternalError(errors.New("attachment storage is not configured"))
	}
	body, err := s.blobs.Open(ctx, a.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperrors.NewNotFound("attachment file", map[string]any{"id": attachmentID})
	}
	if err != nil {
		return nil, nil, err
	}
	return a, body, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	t, err := s.repos.Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("ticket", id, err)
	}
	if !canView(actor, t) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket")
	}
	return t, nil
}
