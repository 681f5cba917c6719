package domain

import "time"

// NotificationType tags what produced a notification.
type NotificationType string

const (
	NotificationTicketAssigned   NotificationType = "ticket_assigned"
	NotificationTicketUpdated    NotificationType = "ticket_updated"
	NotificationTicketEscalated  NotificationType = "ticket_escalated"
	NotificationNewComment       NotificationType = "new_comment"
	NotificationStatusChanged    NotificationType = "status_changed"
	NotificationTriggerActivated NotificationType = "trigger_activated"
)

// Notification is a per-user notice. Only Read ever changes after creation.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	TicketID    *string
	Read        bool
	CreatedAt   time.Time
}
