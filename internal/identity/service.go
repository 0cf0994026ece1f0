// Package identity resolves callers and their roles.
package identity

import (
	"context"
	"fmt"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/ctxlog"
)

// Service authenticates sessions and resolves roles. It never mutates role data.
type Service struct {
	repo     Repository
	verifier TokenVerifier
}

// NewService creates a new identity service.
func NewService(repo Repository, verifier TokenVerifier) *Service {
	return &Service{
		repo:     repo,
		verifier: verifier,
	}
}

// Authenticate verifies token and syncs the caller's profile from its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}

	user := &domain.User{
		ID:    claims.UserID,
		Email: claims.Email,
	}
	if claims.DisplayName != "" {
		name := claims.DisplayName
		user.DisplayName = &name
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("sync user profile: %w", err)
	}

	return &domain.Session{UserID: claims.UserID, Email: claims.Email}, nil
}

// ResolveRoles returns the raw role set of a user, possibly empty.
func (s *Service) ResolveRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	rows, err := s.repo.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}

	roles := make([]domain.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	return roles, nil
}

// ResolveRole returns the effective role of a user, defaulting to student.
func (s *Service) ResolveRole(ctx context.Context, userID string) (domain.Role, error) {
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}

	rows, err := s.repo.GetUserRoles(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user roles: %w", err)
	}

	return domain.ResolveRole(rows), nil
}

// GetUser retrieves a user profile. Unknown ids return domain.ErrNotFound.
func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return s.repo.GetUserByID(ctx, id)
}

// GetUserWithRole retrieves a user profile together with the resolved role.
func (s *Service) GetUserWithRole(ctx context.Context, id string) (*domain.UserWithRole, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	role, err := s.ResolveRole(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.UserWithRole{User: *user, Role: role}, nil
}

// GetUsersByIDs retrieves profiles keyed by user ID. Unknown IDs are absent from the map.
func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
