package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AttachmentRepository persists attachment metadata. Blobs live in storage.Backend.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.TicketAttachment) error
	GetByID(ctx context.Context, id string) (*domain.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

const attachmentColumns = `id, ticket_id, uploaded_by_id, storage_key, file_name, file_size,
               content_type, attachment_type, description, uploaded_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.TicketAttachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, uploaded_by_id, storage_key, file_name, file_size,
            content_type, attachment_type, description, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.UploadedByID,
		attachment.StorageKey,
		attachment.FileName,
		attachment.FileSize,
		attachment.ContentType,
		attachment.Type,
		attachment.Description,
		attachment.UploadedAt,
	).Scan(&attachment.ID)
	return mapError(err)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.TicketAttachment, error) {
	attachment, err := scanAttachment(r.db.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM ticket_attachments WHERE id=$1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return attachment, nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+attachmentColumns+` FROM ticket_attachments
        WHERE ticket_id=$1 ORDER BY uploaded_at DESC, id DESC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row) (*domain.TicketAttachment, error) {
	var attachment domain.TicketAttachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.UploadedByID,
		&attachment.StorageKey,
		&attachment.FileName,
		&attachment.FileSize,
		&attachment.ContentType,
		&attachment.Type,
		&attachment.Description,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
