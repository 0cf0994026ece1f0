// Package postgres provides PostgreSQL implementation of the reservation repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/reservations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reservationColumns = `
	id, student_id, equipment_name, equipment_category, reservation_date,
	time_slot, notes, status, reviewed_by, created_at, updated_at
`

// Repository implements the reservations.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateReservation inserts a new reservation and fills its timestamps.
func (r *Repository) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	query := `
		INSERT INTO reservations (
			id, student_id, equipment_name, equipment_category, reservation_date,
			time_slot, notes, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		res.ID,
		res.StudentID,
		res.EquipmentName,
		res.EquipmentCategory,
		res.ReservationDate.Time,
		res.TimeSlot,
		res.Notes,
		res.Status,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// GetReservation retrieves a reservation by ID.
func (r *Repository) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// CompareAndSetStatus updates the status only while it still equals expected.
// It returns reservations.ErrConflict when another writer got there first.
func (r *Repository) CompareAndSetStatus(
	ctx context.Context,
	id string,
	expected, status domain.ReservationStatus,
	notes *string,
	reviewedBy string,
) (*domain.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}

	query := `
		UPDATE reservations
		SET status = $3,
		    notes = COALESCE($4, notes),
		    reviewed_by = $5,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + reservationColumns

	res, err := scanReservation(r.db.QueryRow(ctx, query, id, expected, status, notes, reviewedBy))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("compare and set status: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check reservation exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	return nil, reservations.ErrConflict
}

// ListReservations retrieves reservations matching filter, newest first.
func (r *Repository) ListReservations(ctx context.Context, filter reservations.ReservationFilter) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`

	var conditions []string
	var args []any
	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		items = append(items, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}

	return items, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	var date time.Time
	err := row.Scan(
		&res.ID,
		&res.StudentID,
		&res.EquipmentName,
		&res.EquipmentCategory,
		&date,
		&res.TimeSlot,
		&res.Notes,
		&res.Status,
		&res.ReviewedBy,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.ReservationDate = domain.DateOf(date)
	return &res, nil
}
