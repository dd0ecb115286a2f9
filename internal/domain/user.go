package domain

import (
	"strings"
	"time"
)

// GlobalRole is the organisation-wide role of a user. It is unrelated to the
// per-project ProjectRole.
type GlobalRole string

const (
	GlobalRoleAdmin   GlobalRole = "admin"
	GlobalRoleManager GlobalRole = "manager"
	GlobalRoleMember  GlobalRole = "member"
)

// Valid reports whether r is a known global role.
func (r GlobalRole) Valid() bool {
	switch r {
	case GlobalRoleAdmin, GlobalRoleManager, GlobalRoleMember:
		return true
	}
	return false
}

// User represents a platform account. Users are deactivated, never deleted.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash []byte     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         GlobalRole `json:"role"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lower-cases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserSummary is the public projection of a user embedded in other records.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

// Summary projects u to its public fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
