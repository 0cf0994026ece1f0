// Package catalog serves the static equipment catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/campus-reservations/internal/domain"
	"golang.org/x/text/cases"
)

// Service implements catalog lookups.
type Service struct {
	repo Repository
}

// NewService creates a new catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the catalog, optionally restricted to one category.
func (s *Service) List(ctx context.Context, filter EquipmentFilter) ([]domain.Equipment, error) {
	items, err := s.repo.ListEquipment(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return items, nil
}

// Get returns one item by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Equipment, error) {
	return s.repo.GetEquipmentByID(ctx, id)
}

// Lookup resolves a reference given by a client: an equipment ID or its
// name compared case-insensitively. Unknown references yield ErrUnknownEquipment.
func (s *Service) Lookup(ctx context.Context, ref string) (*domain.Equipment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", domain.ErrUnknownEquipment)
	}

	item, err := s.repo.GetEquipmentByID(ctx, ref)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get equipment: %w", err)
	}

	// The catalog is small reference data; match names in memory so folding
	// follows Unicode rules rather than the database collation.
	items, err := s.repo.ListEquipment(ctx, EquipmentFilter{})
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}

	// A Caser is stateful and must not be shared between goroutines
	fold := cases.Fold()
	want := fold.String(ref)
	for i := range items {
		if fold.String(items[i].Name) == want {
			return &items[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEquipment, ref)
}
