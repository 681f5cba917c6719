package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role gates every authorization decision; there are no per-permission grants.
type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

var roleLabels = map[Role]string{
	RoleClient: "Client",
	RoleAgent:  "Support Agent",
	RoleAdmin:  "Administrator",
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the human readable role name.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// IsStaff reports whether the role may work tickets.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is any account in the helpdesk: clients file tickets, agents and admins work them.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	PhoneNumber  *string
	Department   *string
	Company      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsClient() bool { return u != nil && u.Role == RoleClient }
func (u *User) IsAgent() bool  { return u != nil && u.Role == RoleAgent }
func (u *User) IsAdmin() bool  { return u != nil && u.Role == RoleAdmin }
func (u *User) IsStaff() bool  { return u != nil && u.Role.IsStaff() }

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// String renders the user as it appears in assignment history, e.g. "jdoe (Support Agent)".
func (u *User) String() string {
	return fmt.Sprintf("%s (%s)", u.Username, u.Role.Label())
}
