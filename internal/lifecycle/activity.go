package lifecycle

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// CommentInput is a reply to a ticket.
type CommentInput struct {
	TicketID string
	Author   *domain.User
	Content  string
	Internal bool
}

// AddComment stores a comment, records it and notifies the creator and the
// assignee other than the author. Clients never hear about internal comments.
func (e *Engine) AddComment(ctx context.Context, in CommentInput) (*Result, error) {
	if in.Author == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperrors.NewFieldError("content", "this field is required")
	}

	var res *Result
	err := e.store.WithinTx(ctx, func(repos repository.Repositories) error {
		u := e.newUnit(ctx, repos)
		t, err := e.loadTicket(u, in.TicketID)
		if err != nil {
			return err
		}
		comment := &domain.TicketComment{
			TicketID:  t.ID,
			AuthorID:  in.Author.ID,
			Content:   in.Content,
			Internal:  in.Internal,
			CreatedAt: u.now,
			UpdatedAt: u.now,
		}
		if err := repos.Comments.Create(ctx, comment); err != nil {
			return err
		}
		if err := u.record(domain.TicketHistory{
			TicketID:    t.ID,
			Action:      domain.HistoryCommentAdded,
			ActorID:     actorID(in.Author),
			Description: "Comment added by " + in.Author.DisplayName(),
			NewValue:    domain.StringPtr(commentPreview(in.Content)),
		}); err != nil {
			return err
		}

		recipients, err := e.participants(u, t, in.Author.ID, in.Internal)
		if err != nil {
			return err
		}
		for _, r := range recipients {
			if err := u.notify(commentNotification(t, in.Author, r)); err != nil {
				return err
			}
		}
		res = u.result(t)
		res.Comment = comment
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, res, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: res.Ticket.ID,
		ActorID:  actorID(in.Author),
		Payload: events.CommentAddedPayload{
			CommentID: res.Comment.ID,
			Internal:  res.Comment.Internal,
			Preview:   commentPreview(res.Comment.Content),
		},
	})
	return res, nil
}

// AttachmentInput is an upload to a ticket. Body is read once.
type AttachmentInput struct {
	TicketID    string
	Uploader    *domain.User
	FileName    string
	Size        int64
	ContentType string
	Type        domain.AttachmentType
	Description string
	Body        io.Reader
}

// maxAttachmentText is the width of the description and content_type columns.
const maxAttachmentText = 255

func (e *Engine) validateAttachment(in *AttachmentInput) error {
	if in.Type == "" {
		in.Type = domain.AttachmentGeneral
	}
	fields := map[string]string{}
	switch {
	case in.Body == nil || strings.TrimSpace(in.FileName) == "":
		fields["file"] = "this field is required"
	case !domain.AttachmentExtensionAllowed(in.FileName):
		fields["file"] = "file type not allowed; allowed: " + strings.Join(domain.AllowedAttachmentExtensions, ", ")
	case in.Size <= 0:
		fields["file"] = "file is empty"
	case in.Size > e.maxUpload:
		fields["file"] = "file exceeds the maximum upload size"
	}
	if !in.Type.Valid() {
		fields["attachment_type"] = "invalid attachment type"
	}
	if utf8.RuneCountInString(in.Description) > maxAttachmentText {
		fields["description"] = "must be at most 255 characters"
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	if len(in.ContentType) > maxAttachmentText {
		in.ContentType = "application/octet-stream"
	}
	return nil
}

// AddAttachment stores the blob, then records the upload and notifies the
// creator and assignee other than the uploader. Internal visibility plays no
// part here, unlike comments. The blob is removed again if the write fails.
func (e *Engine) AddAttachment(ctx context.Context, in AttachmentInput) (*Result, error) {
	if in.Uploader == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := e.validateAttachment(&in); err != nil {
		return nil, err
	}
	if e.blobs == nil {
		return nil, apperrors.NewInternalError(errors.New("attachment storage is not configured"))
	}
	if _, err := e.store.Repos().Tickets.GetByID(ctx, in.TicketID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": in.TicketID})
		}
		return nil, err
	}

	name := storage.SanitizeName(in.FileName)
	key := storage.NewKey(e.clock.Now(), name)
	if err := e.blobs.Put(ctx, key, io.LimitReader(in.Body, in.Size), in.Size, in.ContentType); err != nil {
		return nil, err
	}

	var res *Result
	err := e.store.WithinTx(ctx, func(repos repository.Repositories) error {
		u := e.newUnit(ctx, repos)
		t, err := e.loadTicket(u, in.TicketID)
		if err != nil {
			return err
		}
		a := &domain.TicketAttachment{
			TicketID:     t.ID,
			UploadedByID: in.Uploader.ID,
			StorageKey:   key,
			FileName:     name,
			FileSize:     in.Size,
			ContentType:  in.ContentType,
			Type:         in.Type,
			Description:  in.Description,
			UploadedAt:   u.now,
		}
		if err := repos.Attachments.Create(ctx, a); err != nil {
			return err
		}
		if err := u.record(domain.TicketHistory{
			TicketID:    t.ID,
			Action:      domain.HistoryFileAttached,
			ActorID:     actorID(in.Uploader),
			Description: "File attached: " + a.FileName + " (" + string(a.Type) + ")",
			NewValue:    domain.StringPtr(attachmentValue(a)),
		}); err != nil {
			return err
		}

		recipients, err := e.participants(u, t, in.Uploader.ID, false)
		if err != nil {
			return err
		}
		for _, r := range recipients {
			if err := u.notify(attachmentNotification(t, a, r)); err != nil {
				return err
			}
		}
		res = u.result(t)
		res.Attachment = a
		return nil
	})
	if err != nil {
		if derr := e.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			e.logger.Warn("remove orphaned blob", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}

	e.afterCommit(ctx, res, events.Event{
		Type:     events.EventAttachmentAdded,
		TicketID: res.Ticket.ID,
		ActorID:  actorID(in.Uploader),
		Payload: events.AttachmentAddedPayload{
			AttachmentID: res.Attachment.ID,
			FileName:     res.Attachment.FileName,
			FileSize:     res.Attachment.FileSize,
		},
	})
	return res, nil
}

// participants returns the creator and the assignee, minus the actor and
// duplicates. With staffOnly set, client-role users are dropped.
func (e *Engine) participants(u *unit, t *domain.Ticket, excludeID string, staffOnly bool) ([]string, error) {
	candidates := []string{t.CreatedByID}
	if t.AssigneeID != nil {
		candidates = append(candidates, *t.AssigneeID)
	}
	var out []string
	for _, id := range candidates {
		if id == excludeID || slices.Contains(out, id) {
			continue
		}
		if staffOnly {
			user, err := u.repos.Users.GetByID(u.ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if user.IsClient() {
				continue
			}
		}
		out = append(out, id)
	}
	return out, nil
}
