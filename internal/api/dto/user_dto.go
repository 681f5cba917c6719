package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RegisterRequest payload. Confirmation mismatch is reported by the service
// under password_confirm.
type RegisterRequest struct {
	Username        string  `json:"username" validate:"required,max=150"`
	Email           string  `json:"email" validate:"required,email"`
	FirstName       string  `json:"first_name" validate:"max=150"`
	LastName        string  `json:"last_name" validate:"max=150"`
	Password        string  `json:"password" validate:"required"`
	PasswordConfirm string  `json:"password_confirm" validate:"required"`
	PhoneNumber     *string `json:"phone_number" validate:"omitempty,max=20"`
	Company         *string `json:"company" validate:"omitempty,max=100"`
}

// LoginRequest accepts a username or an email as identifier.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

// CreateUserRequest is an admin-created account.
type CreateUserRequest struct {
	Username   string      `json:"username" validate:"required,max=150"`
	Email      string      `json:"email" validate:"required,email"`
	FirstName  string      `json:"first_name" validate:"max=150"`
	LastName   string      `json:"last_name" validate:"max=150"`
	Password   string      `json:"password" validate:"required"`
	Role       domain.Role `json:"role" validate:"required,oneof=client agent admin"`
	Department *string     `json:"department" validate:"omitempty,max=100"`
}

// UpdateProfileRequest payload; omitted fields are left alone.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
	Department  *string `json:"department" validate:"omitempty,max=100"`
	Company     *string `json:"company" validate:"omitempty,max=100"`
}

// UserResponse is the public shape of a user.
type UserResponse struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	FullName    string      `json:"full_name"`
	Role        domain.Role `json:"role"`
	RoleLabel   string      `json:"role_label"`
	PhoneNumber *string     `json:"phone_number,omitempty"`
	Department  *string     `json:"department,omitempty"`
	Company     *string     `json:"company,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// UserRef is the compact user embedded in other responses.
type UserRef struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

// TokenResponse is returned by login and registration.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.DisplayName(),
		Role:        u.Role,
		RoleLabel:   u.Role.Label(),
		PhoneNumber: u.PhoneNumber,
		Department:  u.Department,
		Company:     u.Company,
		CreatedAt:   u.CreatedAt,
	}
}

// NewUserRef maps a domain user, tolerating nil.
func NewUserRef(u *domain.User) *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Username: u.Username, FullName: u.DisplayName(), Role: u.Role}
}
