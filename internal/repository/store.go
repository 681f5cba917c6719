package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrDuplicateTicketNumber is returned when two creations race on the same number.
	ErrDuplicateTicketNumber = errors.New("duplicate ticket number")
)

const (
	pgUniqueViolation           = "23505"
	// A malformed uuid can never match a row.
	pgInvalidTextRepresentation = "22P02"

	// Unique constraint names, as declared in the schema.
	ConstraintTicketNumber  = "tickets_ticket_number_key"
	ConstraintCategoryName  = "ticket_categories_name_key"
	ConstraintUsersUsername = "users_username_key"
	ConstraintUsersEmail    = "users_email_key"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to the same connection or transaction.
type Repositories struct {
	Users         UserRepository
	Categories    CategoryRepository
	Rules         TriggerRuleRepository
	Tickets       TicketRepository
	History       TicketHistoryRepository
	Comments      TicketCommentRepository
	Attachments   AttachmentRepository
	Notifications NotificationRepository
	Counters      ticketnumber.CounterStore
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repositories
	// WithinTx runs fn in one transaction. Any error from fn rolls everything back.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// NewRepositories binds every Postgres repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Users:         NewUserRepository(db),
		Categories:    NewCategoryRepository(db),
		Rules:         NewTriggerRuleRepository(db),
		Tickets:       NewTicketRepository(db),
		History:       NewTicketHistoryRepository(db),
		Comments:      NewTicketCommentRepository(db),
		Attachments:   NewAttachmentRepository(db),
		Notifications: NewNotificationRepository(db),
		Counters:      NewCounterStore(db),
	}
}

type pgStore struct {
	pool  *pgxpool.Pool
	repos Repositories
}

// NewPostgresStore returns a Store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, repos: NewRepositories(pool)}
}

func (s *pgStore) Repos() Repositories {
	return s.repos
}

func (s *pgStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(NewRepositories(tx))
	})
}

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == ConstraintTicketNumber {
			return ErrDuplicateTicketNumber
		}
		return &DuplicateError{Constraint: pgErr.ConstraintName}
	case pgInvalidTextRepresentation:
		return ErrNotFound
	}
	return err
}

// DuplicateError names the violated unique constraint.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return "duplicate record: " + e.Constraint
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateField maps a constraint to the offending input field, if known.
func (e *DuplicateError) DuplicateField() string {
	switch e.Constraint {
	case ConstraintCategoryName:
		return "name"
	case ConstraintUsersUsername:
		return "username"
	case ConstraintUsersEmail:
		return "email"
	}
	return ""
}

func execAffecting(ctx context.Context, db DBTX, query string, args ...any) error {
	cmd, err := db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
