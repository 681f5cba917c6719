package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CreateTicketRequest payload. Priority and assignee are honored for staff only.
type CreateTicketRequest struct {
	Subject     string       `json:"subject" validate:"required,max=200"`
	Description string       `json:"description" validate:"required"`
	CategoryID  *string      `json:"category_id" validate:"omitempty,uuid"`
	Severity    domain.Level `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Priority    domain.Level `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssignedTo  *string      `json:"assigned_to" validate:"omitempty,uuid"`
}

// UpdateTicketRequest is a staff edit. Omitted fields are left alone; the
// unassign and clear_category flags null out the references.
type UpdateTicketRequest struct {
	Status        *domain.TicketStatus `json:"status" validate:"omitempty,oneof=open in_progress pending resolved closed"`
	Priority      *domain.Level        `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Severity      *domain.Level        `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	AssignedTo    *string              `json:"assigned_to" validate:"omitempty,uuid"`
	Unassign      bool                 `json:"unassign"`
	CategoryID    *string              `json:"category_id" validate:"omitempty,uuid"`
	ClearCategory bool                 `json:"clear_category"`
}

// ToInput converts the request for the lifecycle engine.
func (r UpdateTicketRequest) ToInput() lifecycle.UpdateInput {
	return lifecycle.UpdateInput{
		Status:        r.Status,
		Priority:      r.Priority,
		Severity:      r.Severity,
		AssigneeID:    r.AssignedTo,
		ClearAssignee: r.Unassign,
		CategoryID:    r.CategoryID,
		ClearCategory: r.ClearCategory,
	}
}

// AssignRequest sets the assignee; null unassigns.
type AssignRequest struct {
	AssignedTo *string `json:"assigned_to" validate:"omitempty,uuid"`
}

// CommentRequest payload.
type CommentRequest struct {
	Content  string `json:"content" validate:"required"`
	Internal bool   `json:"is_internal"`
}

// TicketResponse is the list and write shape of a ticket.
type TicketResponse struct {
	ID            string              `json:"id"`
	Number        string              `json:"ticket_number"`
	Subject       string              `json:"subject"`
	Description   string              `json:"description"`
	CategoryID    *string             `json:"category_id,omitempty"`
	Severity      domain.Level        `json:"severity"`
	Priority      domain.Level        `json:"priority"`
	Status        domain.TicketStatus `json:"status"`
	StatusLabel   string              `json:"status_label"`
	CreatedByID   string              `json:"created_by"`
	AssigneeID    *string             `json:"assigned_to,omitempty"`
	Escalated     bool                `json:"is_escalated"`
	EscalatedAt   *time.Time          `json:"escalated_at,omitempty"`
	EscalatedByID *string             `json:"escalated_by,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
	ClosedAt      *time.Time          `json:"closed_at,omitempty"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		Number:        t.Number,
		Subject:       t.Subject,
		Description:   t.Description,
		CategoryID:    t.CategoryID,
		Severity:      t.Severity,
		Priority:      t.Priority,
		Status:        t.Status,
		StatusLabel:   t.Status.Label(),
		CreatedByID:   t.CreatedByID,
		AssigneeID:    t.AssigneeID,
		Escalated:     t.Escalated,
		EscalatedAt:   t.EscalatedAt,
		EscalatedByID: t.EscalatedByID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ResolvedAt:    t.ResolvedAt,
		ClosedAt:      t.ClosedAt,
	}
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string               `json:"id"`
	Action      domain.HistoryAction `json:"action"`
	ActorID     *string              `json:"user_id,omitempty"`
	Description string               `json:"description"`
	OldValue    *string              `json:"old_value,omitempty"`
	NewValue    *string              `json:"new_value,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(hs []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(hs))
	for _, h := range hs {
		out = append(out, HistoryResponse{
			ID:          h.ID,
			Action:      h.Action,
			ActorID:     h.ActorID,
			Description: h.Description,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}

// CommentResponse payload; HTML is the sanitized rendering of Content.
type CommentResponse struct {
	ID        string    `json:"id"`
	Author    *UserRef  `json:"author,omitempty"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	HTML      string    `json:"content_html,omitempty"`
	Internal  bool      `json:"is_internal"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID           string                `json:"id"`
	FileName     string                `json:"file_name"`
	FileSize     int64                 `json:"file_size"`
	FileSizeMB   float64               `json:"file_size_mb"`
	ContentType  string                `json:"content_type"`
	Type         domain.AttachmentType `json:"attachment_type"`
	Description  string                `json:"description,omitempty"`
	UploadedByID string                `json:"uploaded_by"`
	UploadedAt   time.Time             `json:"uploaded_at"`
	URL          string                `json:"url"`
}

// NewAttachmentResponse maps attachment metadata.
func NewAttachmentResponse(a *domain.TicketAttachment) AttachmentResponse {
	return AttachmentResponse{
		ID:           a.ID,
		FileName:     a.FileName,
		FileSize:     a.FileSize,
		FileSizeMB:   a.FileSizeMB(),
		ContentType:  a.ContentType,
		Type:         a.Type,
		Description:  a.Description,
		UploadedByID: a.UploadedByID,
		UploadedAt:   a.UploadedAt,
		URL:          "/api/v1/attachments/" + a.ID + "/download",
	}
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Creator     *UserRef             `json:"creator,omitempty"`
	Assignee    *UserRef             `json:"assignee,omitempty"`
	Category    *CategoryResponse    `json:"category,omitempty"`
	Comments    []CommentResponse    `json:"comments"`
	Attachments []AttachmentResponse `json:"attachments"`
	History     []HistoryResponse    `json:"history"`
}

// NewTicketDetailResponse maps a service detail view.
func NewTicketDetailResponse(d *service.TicketDetail) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketResponse: NewTicketResponse(d.Ticket),
		Creator:        NewUserRef(d.Creator),
		Assignee:       NewUserRef(d.Assignee),
		Comments:       make([]CommentResponse, 0, len(d.Comments)),
		Attachments:    make([]AttachmentResponse, 0, len(d.Attachments)),
		History:        NewHistoryResponses(d.History),
	}
	if d.Category != nil {
		c := NewCategoryResponse(d.Category)
		resp.Category = &c
	}
	for _, c := range d.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:        c.ID,
			Author:    NewUserRef(c.Author),
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			HTML:      c.HTML,
			Internal:  c.Internal,
			CreatedAt: c.CreatedAt,
		})
	}
	for i := range d.Attachments {
		resp.Attachments = append(resp.Attachments, NewAttachmentResponse(&d.Attachments[i]))
	}
	return resp
}

// ChangeResponse is one tracked field difference.
type ChangeResponse = domain.FieldChange

// ResultResponse reports a write and everything it produced.
type ResultResponse struct {
	Ticket        TicketResponse         `json:"ticket"`
	Changes       []ChangeResponse       `json:"changes"`
	History       []HistoryResponse      `json:"history"`
	Notifications []NotificationResponse `json:"notifications"`
	Comment       *CommentResponse       `json:"comment,omitempty"`
	Attachment    *AttachmentResponse    `json:"attachment,omitempty"`
}

// NewResultResponse maps a lifecycle result.
func NewResultResponse(res *lifecycle.Result) ResultResponse {
	out := ResultResponse{
		Ticket:        NewTicketResponse(res.Ticket),
		Changes:       res.Changes,
		History:       NewHistoryResponses(res.History),
		Notifications: make([]NotificationResponse, 0, len(res.Notifications)),
	}
	if out.Changes == nil {
		out.Changes = []ChangeResponse{}
	}
	for i := range res.Notifications {
		out.Notifications = append(out.Notifications, NewNotificationResponse(&res.Notifications[i]))
	}
	if c := res.Comment; c != nil {
		out.Comment = &CommentResponse{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			Internal:  c.Internal,
			CreatedAt: c.CreatedAt,
		}
	}
	if a := res.Attachment; a != nil {
		ar := NewAttachmentResponse(a)
		out.Attachment = &ar
	}
	return out
}

// PageMeta describes a listing window.
type PageMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
