package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UserService manages accounts on behalf of admins and profile edits by their owners.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles repositories for the user service.
type UserDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: deps.UserRepo, bcryptCost: cfg.Auth.BcryptCost, logger: logger}
}

// CreateUserInput is an account created by an admin, usually staff.
type CreateUserInput struct {
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Password   string
	Role       domain.Role
	Department *string
}

// CreateUser adds an account of any role.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, in CreateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if strings.TrimSpace(in.Username) == "" {
		fields["username"] = "this field is required"
	}
	if strings.TrimSpace(in.Email) == "" {
		fields["email"] = "this field is required"
	}
	if !in.Role.Valid() {
		fields["role"] = "invalid role"
	}
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	user := &domain.User{
		Username:   strings.TrimSpace(in.Username),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Role:       in.Role,
		Department: in.Department,
	}
	if err := createAccount(ctx, s.users, user, in.Password, s.bcryptCost); err != nil {
		return nil, err
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("created_by", actor.ID))
	return user, nil
}

// ListUsers returns users holding any of roles. Staff may list, clients may not.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User, roles ...domain.Role) ([]domain.User, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, apperrors.NewFieldError("role", "invalid role")
		}
	}
	return s.users.ListByRole(ctx, roles...)
}

// Get returns a user; clients may only read themselves.
func (s *UserService) Get(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if actor.IsClient() && actor.ID != id {
		return nil, apperrors.NewForbidden("cannot view other users")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

// ProfileInput carries editable profile fields; nil leaves a field unchanged.
type ProfileInput struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
	Department  *string
	Company     *string
}

// UpdateProfile edits the caller's own profile. Role is never changed here.
func (s *UserService) UpdateProfile(ctx context.Context, actor *domain.User, in ProfileInput) (*domain.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, notFound("user", actor.ID, err)
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, apperrors.NewFieldError("email", "this field is required")
		}
		user.Email = email
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = in.PhoneNumber
	}
	if in.Department != nil {
		user.Department = in.Department
	}
	if in.Company != nil {
		user.Company = in.Company
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListAdmins serves as the lifecycle engine's admin directory. users is the
// transaction-bound repository; nil falls back to the service's own.
func (s *UserService) ListAdmins(ctx context.Context, users repository.UserRepository) ([]domain.User, error) {
	if users == nil {
		users = s.users
	}
	return users.ListByRole(ctx, domain.RoleAdmin)
}

// createAccount checks username and email uniqueness up front so both clashes
// are reported together, then hashes and stores.
func createAccount(ctx context.Context, users repository.UserRepository, user *domain.User, password string, cost int) error {
	fields := map[string]string{}
	if _, err := users.GetByUsername(ctx, user.Username); err == nil {
		fields["username"] = "username already exists"
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, err := users.GetByEmail(ctx, user.Email); err == nil {
		fields["email"] = "email already exists"
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := users.Create(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
