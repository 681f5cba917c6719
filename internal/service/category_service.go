package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// CategoryService manages ticket categories.
type CategoryService struct {
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// NewCategoryService constructs the service.
func NewCategoryService(categories repository.CategoryRepository, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{categories: categories, logger: logger}
}

// CategoryInput is the editable shape of a category.
type CategoryInput struct {
	Name        string
	Description string
	Color       string
}

func (in *CategoryInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "this field is required"
	} else if len([]rune(in.Name)) > 100 {
		fields["name"] = "must be at most 100 characters"
	}
	if in.Color == "" {
		in.Color = domain.DefaultCategoryColor
	} else if !colorPattern.MatchString(in.Color) {
		fields["color"] = "must be a hex color like #6c757d"
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

// List is open to every authenticated user.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

// Get returns one category.
func (s *CategoryService) Get(ctx context.Context, id string) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("category", id, err)
	}
	return c, nil
}

// Create adds a category. Names are unique.
func (s *CategoryService) Create(ctx context.Context, actor *domain.User, in CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &domain.Category{Name: in.Name, Description: in.Description, Color: in.Color}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("category created", zap.String("category_id", c.ID), zap.String("name", c.Name))
	return c, nil
}

// Update replaces a category's fields.
func (s *CategoryService) Update(ctx context.Context, actor *domain.User, id string, in CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("category", id, err)
	}
	c.Name, c.Description, c.Color = in.Name, in.Description, in.Color
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}
	return c, nil
}

// Delete removes a category. Its tickets become uncategorized and rules
// scoped to it go with it.
func (s *CategoryService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return notFound("category", id, err)
	}
	s.logger.Info("category deleted", zap.String("category_id", id), zap.String("deleted_by", actor.ID))
	return nil
}
