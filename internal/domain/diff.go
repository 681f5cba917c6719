package domain

// ChangeField names a tracked ticket field.
type ChangeField string

const (
	FieldStatus    ChangeField = "status"
	FieldAssignee  ChangeField = "assignee"
	FieldPriority  ChangeField = "priority"
	FieldEscalated ChangeField = "escalated"
)

// FieldChange is one tracked difference between two ticket snapshots.
// Assignee values are user IDs; escalation carries no values.
type FieldChange struct {
	Field ChangeField `json:"field"`
	Old   *string     `json:"old,omitempty"`
	New   *string     `json:"new,omitempty"`
}

// DiffTickets compares two snapshots and returns the tracked changes in the
// order status, assignee, priority, escalation. Escalation is only reported
// on a false to true transition.
func DiffTickets(prev, next *Ticket) []FieldChange {
	if prev == nil || next == nil {
		return nil
	}
	var changes []FieldChange
	if prev.Status != next.Status {
		changes = append(changes, FieldChange{
			Field: FieldStatus,
			Old:   StringPtr(string(prev.Status)),
			New:   StringPtr(string(next.Status)),
		})
	}
	if !SameID(prev.AssigneeID, next.AssigneeID) {
		changes = append(changes, FieldChange{
			Field: FieldAssignee,
			Old:   cloneString(prev.AssigneeID),
			New:   cloneString(next.AssigneeID),
		})
	}
	if prev.Priority != next.Priority {
		changes = append(changes, FieldChange{
			Field: FieldPriority,
			Old:   StringPtr(string(prev.Priority)),
			New:   StringPtr(string(next.Priority)),
		})
	}
	if !prev.Escalated && next.Escalated {
		changes = append(changes, FieldChange{Field: FieldEscalated})
	}
	return changes
}
