package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventCommentAdded        EventType = "comment_added"
	EventAttachmentAdded     EventType = "attachment_added"
	EventNotificationCreated EventType = "notification_created"
)

// Event represents a domain event emitted after a unit of work commits.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number       string       `json:"ticket_number"`
	Subject      string       `json:"subject"`
	Priority     domain.Level `json:"priority"`
	Escalated    bool         `json:"escalated"`
	MatchedRules []string     `json:"matched_rules,omitempty"`
}

// TicketUpdatedPayload lists the tracked fields that changed.
type TicketUpdatedPayload struct {
	Number  string               `json:"ticket_number"`
	Changes []domain.FieldChange `json:"changes"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Number string `json:"ticket_number"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID string `json:"comment_id"`
	Internal  bool   `json:"internal"`
	Preview   string `json:"preview"`
}

// AttachmentAddedPayload payload.
type AttachmentAddedPayload struct {
	AttachmentID string `json:"attachment_id"`
	FileName     string `json:"file_name"`
	FileSize     int64  `json:"file_size"`
}

// NotificationCreatedPayload carries the stored notification for outbound delivery.
type NotificationCreatedPayload struct {
	Notification domain.Notification `json:"notification"`
}
