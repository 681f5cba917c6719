package domain

import "time"

// HistoryAction tags an audit entry.
type HistoryAction string

const (
	HistoryCreated         HistoryAction = "created"
	HistoryUpdated         HistoryAction = "updated"
	HistoryStatusChanged   HistoryAction = "status_changed"
	HistoryAssigned        HistoryAction = "assigned"
	HistoryReassigned      HistoryAction = "reassigned"
	HistoryPriorityChanged HistoryAction = "priority_changed"
	HistoryEscalated       HistoryAction = "escalated"
	HistoryCommentAdded    HistoryAction = "comment_added"
	HistoryFileAttached    HistoryAction = "file_attached"
	HistoryResolved        HistoryAction = "resolved"
	HistoryClosed          HistoryAction = "closed"
	HistoryReopened        HistoryAction = "reopened"
)

// TicketHistory is an immutable audit entry. ActorID is nil for system changes.
type TicketHistory struct {
	ID          string
	TicketID    string
	Action      HistoryAction
	ActorID     *string
	Description string
	OldValue    *string
	NewValue    *string
	CreatedAt   time.Time
}
