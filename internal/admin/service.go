// Package admin implements role administration.
package admin

import (
	"context"
	"fmt"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/ctxlog"
)

// RoleResolver resolves a user's effective role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (domain.Role, error)
}

// Directory reads user profiles and writes role assignments.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListRoleAssignments(ctx context.Context) ([]domain.RoleAssignment, error)
	ReplaceRole(ctx context.Context, userID string, role domain.Role) (*domain.RoleAssignment, error)
}

// Policy configures role administration rules.
type Policy struct {
	// PreventSelfDemotion rejects an admin removing their own admin role.
	PreventSelfDemotion bool
}

// Service implements role administration.
type Service struct {
	directory Directory
	roles     RoleResolver
	policy    Policy
}

// NewService creates a new admin service.
func NewService(directory Directory, roles RoleResolver, policy Policy) *Service {
	return &Service{
		directory: directory,
		roles:     roles,
		policy:    policy,
	}
}

// SetRole replaces the target user's role.
func (s *Service) SetRole(ctx context.Context, callerID, targetID string, role domain.Role) (*domain.UserWithRole, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	if !role.IsValid() {
		return nil, domain.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	user, err := s.directory.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if s.policy.PreventSelfDemotion && targetID == callerID && role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admins cannot remove their own admin role", domain.ErrPermissionDenied)
	}

	if _, err := s.directory.ReplaceRole(ctx, targetID, role); err != nil {
		return nil, fmt.Errorf("replace role: %w", err)
	}

	ctxlog.FromContext(ctx).Info("role assigned", "target_user_id", targetID, "role", role)

	return &domain.UserWithRole{User: *user, Role: role}, nil
}

// ListUsers returns every known user with the resolved role.
func (s *Service) ListUsers(ctx context.Context, callerID string) ([]domain.UserWithRole, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	assignments, err := s.directory.ListRoleAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}

	byUser := make(map[string][]domain.RoleAssignment, len(assignments))
	for _, a := range assignments {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	result := make([]domain.UserWithRole, 0, len(users))
	for _, u := range users {
		result = append(result, domain.UserWithRole{
			User: u,
			Role: domain.ResolveRole(byUser[u.ID]),
		})
	}
	return result, nil
}

func (s *Service) requireAdmin(ctx context.Context, callerID string) error {
	role, err := s.roles.ResolveRole(ctx, callerID)
	if err != nil {
		return err
	}
	if !role.HasPermission(domain.RoleAdmin) {
		return fmt.Errorf("%w: admin role required", domain.ErrPermissionDenied)
	}
	return nil
}
