package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TriggerRuleService is admin management of keyword trigger rules.
type TriggerRuleService struct {
	rules      repository.TriggerRuleRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// TriggerRuleDependencies bundles repositories.
type TriggerRuleDependencies struct {
	RuleRepo     repository.TriggerRuleRepository
	UserRepo     repository.UserRepository
	CategoryRepo repository.CategoryRepository
	Logger       *zap.Logger
}

// NewTriggerRuleService constructs the service.
func NewTriggerRuleService(deps TriggerRuleDependencies) *TriggerRuleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriggerRuleService{
		rules:      deps.RuleRepo,
		users:      deps.UserRepo,
		categories: deps.CategoryRepo,
		logger:     logger,
	}
}

// TriggerRuleInput is the editable shape of a rule.
type TriggerRuleInput struct {
	Name          string
	Keywords      string
	Action        domain.TriggerAction
	CategoryID    *string
	NotifyUserIDs []string
	Active        bool
}

func (s *TriggerRuleService) validate(ctx context.Context, in *TriggerRuleInput) error {
	in.Name = strings.TrimSpace(in.Name)
	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "this field is required"
	}
	probe := domain.TriggerRule{Keywords: in.Keywords}
	if len(probe.KeywordList()) == 0 {
		fields["keywords"] = "at least one keyword is required"
	}
	if !in.Action.Valid() {
		fields["action"] = "invalid action"
	}
	if in.Action == domain.TriggerNotify && len(in.NotifyUserIDs) == 0 {
		fields["notify_users"] = "notify rules need at least one recipient"
	}
	for _, id := range in.NotifyUserIDs {
		u, err := s.users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			fields["notify_users"] = "user " + id + " does not exist"
			break
		}
		if err != nil {
			return err
		}
		if !u.IsStaff() {
			fields["notify_users"] = "only agents and admins can be notified"
			break
		}
	}
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); errors.Is(err, repository.ErrNotFound) {
			fields["category"] = "category does not exist"
		} else if err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

// List returns every rule in evaluation order.
func (s *TriggerRuleService) List(ctx context.Context, actor *domain.User) ([]domain.TriggerRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.rules.List(ctx)
}

// Get returns one rule.
func (s *TriggerRuleService) Get(ctx context.Context, actor *domain.User, id string) (*domain.TriggerRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("trigger rule", id, err)
	}
	return r, nil
}

// Create adds a rule. It applies to tickets created from now on.
func (s *TriggerRuleService) Create(ctx context.Context, actor *domain.User, in TriggerRuleInput) (*domain.TriggerRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	r := &domain.TriggerRule{
		Name:          in.Name,
		Keywords:      in.Keywords,
		Action:        in.Action,
		CategoryID:    in.CategoryID,
		NotifyUserIDs: in.NotifyUserIDs,
		Active:        in.Active,
	}
	if err := s.rules.Create(ctx, r); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("trigger rule created",
		zap.String("rule_id", r.ID),
		zap.String("action", string(r.Action)),
		zap.Strings("keywords", r.KeywordList()))
	return r, nil
}

// Update replaces a rule's fields.
func (s *TriggerRuleService) Update(ctx context.Context, actor *domain.User, id string, in TriggerRuleInput) (*domain.TriggerRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("trigger rule", id, err)
	}
	r.Name, r.Keywords, r.Action = in.Name, in.Keywords, in.Action
	r.CategoryID, r.NotifyUserIDs, r.Active = in.CategoryID, in.NotifyUserIDs, in.Active
	if err := s.rules.Update(ctx, r); err != nil {
		return nil, apperrors.MapError(err)
	}
	return r, nil
}

// SetActive toggles a rule without touching its other fields.
func (s *TriggerRuleService) SetActive(ctx context.Context, actor *domain.User, id string, active bool) (*domain.TriggerRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("trigger rule", id, err)
	}
	if r.Active == active {
		return r, nil
	}
	r.Active = active
	if err := s.rules.Update(ctx, r); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("trigger rule toggled", zap.String("rule_id", r.ID), zap.Bool("active", active))
	return r, nil
}

// Delete removes a rule.
func (s *TriggerRuleService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return notFound("trigger rule", id, err)
	}
	return nil
}
