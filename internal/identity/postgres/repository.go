// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the identity.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertUser creates the profile or refreshes email and display name.
// A display name already stored is kept when the token carries none.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    display_name = COALESCE(EXCLUDED.display_name, users.display_name),
		    updated_at = CASE
		        WHEN users.email IS DISTINCT FROM EXCLUDED.email
		          OR users.display_name IS DISTINCT FROM COALESCE(EXCLUDED.display_name, users.display_name)
		        THEN NOW() ELSE users.updated_at END
		RETURNING display_name, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, user.Email, user.DisplayName).
		Scan(&user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, display_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &user, nil
}

// GetUsersByIDs retrieves the users whose IDs are in ids.
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}

	query := `
		SELECT id, email, display_name, created_at, updated_at
		FROM users
		WHERE id = ANY($1)
	`
	return r.queryUsers(ctx, query, ids)
}

// ListUsers retrieves all users ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT id, email, display_name, created_at, updated_at
		FROM users
		ORDER BY email
	`
	return r.queryUsers(ctx, query)
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// GetUserRoles retrieves the role rows of a user.
func (r *Repository) GetUserRoles(ctx context.Context, userID string) ([]domain.RoleAssignment, error) {
	query := `SELECT user_id, role, created_at FROM user_roles WHERE user_id = $1`
	return r.queryRoles(ctx, query, userID)
}

// ListRoleAssignments retrieves every role row.
func (r *Repository) ListRoleAssignments(ctx context.Context) ([]domain.RoleAssignment, error) {
	query := `SELECT user_id, role, created_at FROM user_roles ORDER BY user_id`
	return r.queryRoles(ctx, query)
}

func (r *Repository) queryRoles(ctx context.Context, query string, args ...any) ([]domain.RoleAssignment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query role assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]domain.RoleAssignment, 0)
	for rows.Next() {
		var a domain.RoleAssignment
		if err := rows.Scan(&a.UserID, &a.Role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role assignments: %w", err)
	}

	return assignments, nil
}

// ReplaceRole stores role as the only assignment of userID.
// user_roles.user_id is unique, so one upsert replaces any previous row
// without a window where the user has no role.
func (r *Repository) ReplaceRole(ctx context.Context, userID string, role domain.Role) (*domain.RoleAssignment, error) {
	query := `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET role = EXCLUDED.role, created_at = NOW()
		RETURNING user_id, role, created_at
	`
	var a domain.RoleAssignment
	err := r.db.QueryRow(ctx, query, userID, role).Scan(&a.UserID, &a.Role, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("replace role: %w", err)
	}
	return &a, nil
}
