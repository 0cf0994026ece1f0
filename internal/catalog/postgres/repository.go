// Package postgres provides PostgreSQL implementation of the catalog repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/campus-reservations/internal/catalog"
	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the catalog.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListEquipment retrieves catalog items ordered by category and name.
func (r *Repository) ListEquipment(ctx context.Context, filter catalog.EquipmentFilter) ([]domain.Equipment, error) {
	query := `
		SELECT id, name, category, available, description
		FROM equipment
	`
	var args []any
	if filter.Category != nil {
		query += " WHERE category = $1"
		args = append(args, *filter.Category)
	}
	query += " ORDER BY category, name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Equipment, 0)
	for rows.Next() {
		var item domain.Equipment
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Category,
			&item.Available,
			&item.Description,
		); err != nil {
			return nil, fmt.Errorf("scan equipment: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equipment: %w", err)
	}

	return items, nil
}

// GetEquipmentByID retrieves one catalog item.
func (r *Repository) GetEquipmentByID(ctx context.Context, id string) (*domain.Equipment, error) {
	query := `
		SELECT id, name, category, available, description
		FROM equipment
		WHERE id = $1
	`
	var item domain.Equipment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.Category,
		&item.Available,
		&item.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("equipment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get equipment by id: %w", err)
	}
	return &item, nil
}
