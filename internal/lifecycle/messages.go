package lifecycle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const commentPreviewRunes = 100

func createdDescription(t *domain.Ticket) string {
	return "Ticket created with subject: " + t.Subject
}

func createdValue(t *domain.Ticket) string {
	return fmt.Sprintf("Status: %s, Priority: %s", t.Status, t.Priority)
}

func statusDescription(from, to domain.TicketStatus) string {
	return fmt.Sprintf("Status changed from %s to %s", from.Label(), to.Label())
}

func priorityDescription(from, to domain.Level) string {
	return fmt.Sprintf("Priority changed from %s to %s", from.Label(), to.Label())
}

func escalatedDescription(by *domain.User) string {
	name := "System"
	if by != nil {
		name = by.DisplayName()
	}
	return "Ticket escalated by " + name
}

func commentPreview(content string) string {
	runes := []rune(content)
	if len(runes) <= commentPreviewRunes {
		return content
	}
	return string(runes[:commentPreviewRunes]) + "..."
}

// formatMB renders sizes the way the attachment history has always shown
// them: shortest form, but never without a decimal point.
func formatMB(mb float64) string {
	s := strconv.FormatFloat(mb, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func attachmentValue(a *domain.TicketAttachment) string {
	return fmt.Sprintf("File: %s, Size: %sMB", a.FileName, formatMB(a.FileSizeMB()))
}

func statusNotification(t *domain.Ticket, from, to domain.TicketStatus) domain.Notification {
	return domain.Notification{
		RecipientID: t.CreatedByID,
		Type:        domain.NotificationStatusChanged,
		Title:       fmt.Sprintf("Ticket %s Status Updated", t.Number),
		Message:     fmt.Sprintf("Your ticket status has been changed from %s to %s", from.Label(), to.Label()),
		TicketID:    domain.StringPtr(t.ID),
	}
}

func assignedNotification(t *domain.Ticket, assigneeID string) domain.Notification {
	return domain.Notification{
		RecipientID: assigneeID,
		Type:        domain.NotificationTicketAssigned,
		Title:       "New Ticket Assigned: " + t.Number,
		Message:     "You have been assigned ticket: " + t.Subject,
		TicketID:    domain.StringPtr(t.ID),
	}
}

func escalatedNotification(t *domain.Ticket, adminID string) domain.Notification {
	return domain.Notification{
		RecipientID: adminID,
		Type:        domain.NotificationTicketEscalated,
		Title:       "Ticket Escalated: " + t.Number,
		Message:     "Ticket has been escalated with priority: " + t.Priority.Label(),
		TicketID:    domain.StringPtr(t.ID),
	}
}

func triggerNotification(t *domain.Ticket, rule *domain.TriggerRule, matched []string, recipientID string) domain.Notification {
	return domain.Notification{
		RecipientID: recipientID,
		Type:        domain.NotificationTriggerActivated,
		Title:       "Trigger Alert: " + rule.Name,
		Message: fmt.Sprintf("Ticket %s matches trigger rule '%s'. Keywords detected: %s",
			t.Number, rule.Name, strings.Join(matched, ", ")),
		TicketID: domain.StringPtr(t.ID),
	}
}

func commentNotification(t *domain.Ticket, author *domain.User, recipientID string) domain.Notification {
	return domain.Notification{
		RecipientID: recipientID,
		Type:        domain.NotificationNewComment,
		Title:       "New Comment on Ticket " + t.Number,
		Message:     "New comment by " + author.DisplayName(),
		TicketID:    domain.StringPtr(t.ID),
	}
}

func attachmentNotification(t *domain.Ticket, a *domain.TicketAttachment, recipientID string) domain.Notification {
	return domain.Notification{
		RecipientID: recipientID,
		Type:        domain.NotificationTicketUpdated,
		Title:       "File Attached to Ticket " + t.Number,
		Message:     fmt.Sprintf("New %s attached: %s", strings.ToLower(a.Type.Label()), a.FileName),
		TicketID:    domain.StringPtr(t.ID),
	}
}
