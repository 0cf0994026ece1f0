package identity

import (
	"context"

	"github.com/bissquit/campus-reservations/internal/domain"
)

// Repository defines storage for user profiles and role assignments.
type Repository interface {
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	GetUserRoles(ctx context.Context, userID string) ([]domain.RoleAssignment, error)
	ListRoleAssignments(ctx context.Context) ([]domain.RoleAssignment, error)
	// ReplaceRole leaves exactly one assignment for userID in a single atomic step.
	ReplaceRole(ctx context.Context, userID string, role domain.Role) (*domain.RoleAssignment, error)
}

// Claims is the verified content of an identity provider token.
type Claims struct {
	UserID      string
	Email       string
	DisplayName string
}

// TokenVerifier verifies identity provider tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}
