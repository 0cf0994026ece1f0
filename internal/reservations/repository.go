package reservations

import (
	"context"
	"errors"

	"github.com/bissquit/campus-reservations/internal/domain"
)

// ErrConflict is returned by CompareAndSetStatus when the stored status no
// longer equals the expected one.
var ErrConflict = errors.New("reservation status changed")

// Repository defines the interface for reservation storage.
type Repository interface {
	CreateReservation(ctx context.Context, reservation *domain.Reservation) error
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)
	// CompareAndSetStatus moves the reservation from expected to status in a
	// single update. Non-nil notes replace the stored notes in the same update.
	CompareAndSetStatus(ctx context.Context, id string, expected, status domain.ReservationStatus, notes *string, reviewedBy string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]domain.Reservation, error)
}

// ReservationFilter holds filter options for listing reservations.
// Results are ordered newest-created first.
type ReservationFilter struct {
	StudentID *string
	Status    *domain.ReservationStatus
}
