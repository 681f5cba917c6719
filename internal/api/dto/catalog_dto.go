package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CategoryRequest creates or replaces a category.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

// CategoryResponse payload.
type CategoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCategoryResponse maps a domain category.
func NewCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, Color: c.Color, CreatedAt: c.CreatedAt}
}

// TriggerRuleRequest creates or replaces a rule. Active defaults to true.
type TriggerRuleRequest struct {
	Name          string               `json:"name" validate:"required,max=100"`
	Keywords      string               `json:"keywords" validate:"required"`
	Action        domain.TriggerAction `json:"action" validate:"required,oneof=escalate notify priority_high priority_critical"`
	CategoryID    *string              `json:"category_id" validate:"omitempty,uuid"`
	NotifyUserIDs []string             `json:"notify_users" validate:"dive,uuid"`
	Active        *bool                `json:"is_active"`
}

// ToggleRuleRequest flips a rule on or off.
type ToggleRuleRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

// TriggerRuleResponse payload.
type TriggerRuleResponse struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Keywords      string               `json:"keywords"`
	KeywordList   []string             `json:"keyword_list"`
	Action        domain.TriggerAction `json:"action"`
	ActionLabel   string               `json:"action_label"`
	CategoryID    *string              `json:"category_id,omitempty"`
	NotifyUserIDs []string             `json:"notify_users"`
	Active        bool                 `json:"is_active"`
	CreatedAt     time.Time            `json:"created_at"`
}

// NewTriggerRuleResponse maps a domain rule.
func NewTriggerRuleResponse(r *domain.TriggerRule) TriggerRuleResponse {
	notify := r.NotifyUserIDs
	if notify == nil {
		notify = []string{}
	}
	return TriggerRuleResponse{
		ID:            r.ID,
		Name:          r.Name,
		Keywords:      r.Keywords,
		KeywordList:   r.KeywordList(),
		Action:        r.Action,
		ActionLabel:   r.Action.Label(),
		CategoryID:    r.CategoryID,
		NotifyUserIDs: notify,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
	}
}

// NotificationResponse payload.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	TicketID  *string                 `json:"ticket_id,omitempty"`
	Read      bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponse maps a domain notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		TicketID:  n.TicketID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
