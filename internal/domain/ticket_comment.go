package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// TicketComment is a reply on a ticket. Internal comments are hidden from clients.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Content   string
	Internal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AttachmentType classifies uploaded files.
type AttachmentType string

const (
	AttachmentGeneral    AttachmentType = "general"
	AttachmentRCA        AttachmentType = "rca"
	AttachmentScreenshot AttachmentType = "screenshot"
	AttachmentLog        AttachmentType = "log"
	AttachmentReport     AttachmentType = "report"
)

var attachmentLabels = map[AttachmentType]string{
	AttachmentGeneral:    "General Document",
	AttachmentRCA:        "Root Cause Analysis",
	AttachmentScreenshot: "Screenshot",
	AttachmentLog:        "Log File",
	AttachmentReport:     "Report",
}

func (a AttachmentType) Valid() bool {
	_, ok := attachmentLabels[a]
	return ok
}

func (a AttachmentType) Label() string {
	if label, ok := attachmentLabels[a]; ok {
		return label
	}
	return string(a)
}

// AllowedAttachmentExtensions is the upload allowlist, without dots.
var AllowedAttachmentExtensions = []string{
	"pdf", "doc", "docx", "txt", "png", "jpg", "jpeg", "gif",
	"xlsx", "xls", "csv", "log", "zip", "rar",
}

// AttachmentExtensionAllowed checks a file name against the allowlist.
func AttachmentExtensionAllowed(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range AllowedAttachmentExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// TicketAttachment is the metadata for a stored upload.
type TicketAttachment struct {
	ID           string
	TicketID     string
	UploadedByID string
	StorageKey   string
	FileName     string
	FileSize     int64
	ContentType  string
	Type         AttachmentType
	Description  string
	UploadedAt   time.Time
}

// FileSizeMB rounds the size to two decimals.
func (a *TicketAttachment) FileSizeMB() float64 {
	mb := float64(a.FileSize) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
