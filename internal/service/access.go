package service

import (
	"errors"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func requireUser(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func requireStaff(actor *domain.User) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return apperrors.NewForbidden("agent or admin role required")
	}
	return nil
}

func requireAdmin(actor *domain.User) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// canView reports whether actor may see t. Clients only see their own tickets.
func canView(actor *domain.User, t *domain.Ticket) bool {
	return actor.IsStaff() || t.CreatedByID == actor.ID
}

func notFound(resource, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

// Page is a pagination window. Zero values fall back to the defaults.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
