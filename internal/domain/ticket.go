package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states. Any transition is permitted.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

var statusLabels = map[TicketStatus]string{
	TicketStatusOpen:       "Open",
	TicketStatusInProgress: "In Progress",
	TicketStatusPending:    "Pending Customer Response",
	TicketStatusResolved:   "Resolved",
	TicketStatusClosed:     "Closed",
}

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPending,
	TicketStatusResolved,
	TicketStatusClosed,
}

func (s TicketStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s TicketStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Level is the shared low..critical scale used by priority and severity.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

var levelOrder = []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}

var levelLabels = map[Level]string{
	LevelLow:      "Low",
	LevelMedium:   "Medium",
	LevelHigh:     "High",
	LevelCritical: "Critical",
}

func (l Level) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

func (l Level) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return string(l)
}

// Rank orders levels; unknown levels rank below low.
func (l Level) Rank() int {
	for i, v := range levelOrder {
		if v == l {
			return i
		}
	}
	return -1
}

// Next returns the level one step up the ladder. Critical stays critical.
func (l Level) Next() Level {
	r := l.Rank()
	if r < 0 {
		return LevelMedium
	}
	if r+1 >= len(levelOrder) {
		return LevelCritical
	}
	return levelOrder[r+1]
}

var (
	criticalKeywords = []string{"critical", "emergency", "outage", "down", "breach", "security breach", "data loss"}
	highKeywords     = []string{"urgent", "high", "important", "asap", "immediate", "production"}
)

// Ticket is the aggregate root of the helpdesk.
type Ticket struct {
	ID            string
	Number        string
	Subject       string
	Description   string
	CategoryID    *string
	Severity      Level
	Priority      Level
	Status        TicketStatus
	CreatedByID   string
	AssigneeID    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time
	Escalated     bool
	EscalatedAt   *time.Time
	EscalatedByID *string
}

// Clone returns a deep copy suitable for use as an immutable snapshot.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.CategoryID = cloneString(t.CategoryID)
	c.AssigneeID = cloneString(t.AssigneeID)
	c.EscalatedByID = cloneString(t.EscalatedByID)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.EscalatedAt = cloneTime(t.EscalatedAt)
	return &c
}

// SearchText is the lower-cased subject and description used for keyword matching.
func (t *Ticket) SearchText() string {
	return strings.ToLower(t.Subject + " " + t.Description)
}

// ApplyDefaults fills in the values a freshly filed ticket starts with.
func (t *Ticket) ApplyDefaults() {
	if t.Status == "" {
		t.Status = TicketStatusOpen
	}
	if t.Priority == "" {
		t.Priority = LevelMedium
	}
	if t.Severity == "" {
		t.Severity = LevelMedium
	}
}

// AutoPrioritize raises priority from the fixed keyword sets. Critical wins over high.
// It never lowers the current priority.
func (t *Ticket) AutoPrioritize() {
	text := t.SearchText()
	switch {
	case containsAny(text, criticalKeywords):
		t.raisePriority(LevelCritical)
	case containsAny(text, highKeywords):
		t.raisePriority(LevelHigh)
	}
}

func (t *Ticket) raisePriority(to Level) {
	if to.Rank() > t.Priority.Rank() {
		t.Priority = to
	}
}

// Escalate flags the ticket and bumps priority one step. A second call is a no-op.
// actorID is nil for system-initiated escalation.
func (t *Ticket) Escalate(actorID *string, now time.Time) bool {
	if t.Escalated {
		return false
	}
	t.Escalated = true
	at := now
	t.EscalatedAt = &at
	t.EscalatedByID = cloneString(actorID)
	t.Priority = t.Priority.Next()
	return true
}

// StampStatusTimestamps records the first entry into resolved or closed.
func (t *Ticket) StampStatusTimestamps(now time.Time) {
	switch t.Status {
	case TicketStatusResolved:
		if t.ResolvedAt == nil {
			at := now
			t.ResolvedAt = &at
		}
	case TicketStatusClosed:
		if t.ClosedAt == nil {
			at := now
			t.ClosedAt = &at
		}
	}
}

// IsOpenWork reports whether the ticket counts toward an agent's workload.
func (t *Ticket) IsOpenWork() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusInProgress
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StringPtr is a convenience for optional string fields.
func StringPtr(s string) *string {
	return &s
}

// SameID compares two optional identifiers.
func SameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
