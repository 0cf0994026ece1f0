package domain

import "time"

// Role is a user's permission level.
type Role string

// Roles.
const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// DefaultRole applies to users without a role assignment.
const DefaultRole = RoleStudent

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// HasPermission reports whether r is at least as privileged as required.
func (r Role) HasPermission(required Role) bool {
	return r.level() >= required.level()
}

// CanReview reports whether the role may act on other users' reservations.
func (r Role) CanReview() bool {
	return r.HasPermission(RoleStaff)
}

func (r Role) level() int {
	switch r {
	case RoleStudent:
		return 1
	case RoleStaff:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// RoleAssignment binds a user to a role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveRole returns the effective role for a user's assignment rows.
// No rows means DefaultRole. Several rows only exist in legacy data; the most
// privileged one wins.
func ResolveRole(rows []RoleAssignment) Role {
	resolved := DefaultRole
	found := false
	for _, row := range rows {
		if !row.Role.IsValid() {
			continue
		}
		if !found || row.Role.level() > resolved.level() {
			resolved = row.Role
			found = true
		}
	}
	return resolved
}

// User is a profile owned by the identity provider.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserWithRole is a user joined with the resolved role.
type UserWithRole struct {
	User
	Role Role `json:"role"`
}

// Session identifies an authenticated caller.
type Session struct {
	UserID string
	Email  string
}
