package domain

import (
	"strings"
	"time"
)

// TriggerAction is what a matching rule does to a new ticket.
type TriggerAction string

const (
	TriggerEscalate         TriggerAction = "escalate"
	TriggerNotify           TriggerAction = "notify"
	TriggerPriorityHigh     TriggerAction = "priority_high"
	TriggerPriorityCritical TriggerAction = "priority_critical"
)

var triggerActionLabels = map[TriggerAction]string{
	TriggerEscalate:         "Auto Escalate",
	TriggerNotify:           "Send Notification",
	TriggerPriorityHigh:     "Set High Priority",
	TriggerPriorityCritical: "Set Critical Priority",
}

func (a TriggerAction) Valid() bool {
	_, ok := triggerActionLabels[a]
	return ok
}

func (a TriggerAction) Label() string {
	if label, ok := triggerActionLabels[a]; ok {
		return label
	}
	return string(a)
}

// TriggerRule is a keyword policy evaluated against newly created tickets.
type TriggerRule struct {
	ID            string
	Name          string
	Keywords      string
	Action        TriggerAction
	CategoryID    *string
	NotifyUserIDs []string
	Active        bool
	CreatedAt     time.Time
}

// KeywordList splits the comma separated keywords, trimmed and lower-cased.
func (r *TriggerRule) KeywordList() []string {
	parts := strings.Split(r.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MatchedKeywords returns the rule keywords found in text, in rule order.
// text is expected to be lower-cased already.
func (r *TriggerRule) MatchedKeywords(text string) []string {
	var matched []string
	for _, kw := range r.KeywordList() {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// Matches reports whether an active rule has at least one keyword in text.
func (r *TriggerRule) Matches(text string) bool {
	return r.Active && len(r.MatchedKeywords(text)) > 0
}
