package catalog

import (
	"context"

	"github.com/bissquit/campus-reservations/internal/domain"
)

// Repository defines read access to the equipment catalog.
type Repository interface {
	ListEquipment(ctx context.Context, filter EquipmentFilter) ([]domain.Equipment, error)
	GetEquipmentByID(ctx context.Context, id string) (*domain.Equipment, error)
}

// EquipmentFilter represents filter criteria for listing equipment.
type EquipmentFilter struct {
	Category *string
}
