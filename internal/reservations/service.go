// Package reservations implements the reservation lifecycle: submission,
// listing and staff-driven status transitions.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/feed"
	"github.com/bissquit/campus-reservations/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// RoleResolver resolves a user's effective role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (domain.Role, error)
}

// EquipmentCatalog resolves equipment references.
type EquipmentCatalog interface {
	Lookup(ctx context.Context, ref string) (*domain.Equipment, error)
}

// UserDirectory looks up user profiles for list enrichment.
type UserDirectory interface {
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// Service implements reservation business logic.
type Service struct {
	repo      Repository
	roles     RoleResolver
	catalog   EquipmentCatalog
	users     UserDirectory
	publisher feed.Publisher
	location  *time.Location
	now       func() time.Time
}

// NewService creates a new reservation service. location defines the
// calendar day used to reject past reservation dates.
func NewService(
	repo Repository,
	roles RoleResolver,
	catalog EquipmentCatalog,
	users UserDirectory,
	publisher feed.Publisher,
	location *time.Location,
) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:      repo,
		roles:     roles,
		catalog:   catalog,
		users:     users,
		publisher: publisher,
		location:  location,
		now:       time.Now,
	}
}

// SubmitInput holds data for submitting a reservation.
type SubmitInput struct {
	EquipmentRef string
	Date         string
	TimeSlot     string
	Notes        *string
}

// TransitionInput holds data for a status transition.
type TransitionInput struct {
	Status domain.ReservationStatus
	Notes  *string
}

// Submit creates a pending reservation owned by the caller.
func (s *Service) Submit(ctx context.Context, callerID string, input SubmitInput) (*domain.Reservation, error) {
	role, err := s.roles.ResolveRole(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleStudent {
		return nil, fmt.Errorf("%w: only students submit reservations", domain.ErrPermissionDenied)
	}

	date, err := s.validateSubmit(input)
	if err != nil {
		return nil, err
	}

	equipment, err := s.catalog.Lookup(ctx, input.EquipmentRef)
	if err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		ID:                uuid.NewString(),
		StudentID:         callerID,
		EquipmentName:     equipment.Name,
		EquipmentCategory: equipment.Category,
		ReservationDate:   date,
		TimeSlot:          strings.TrimSpace(input.TimeSlot),
		Notes:             input.Notes,
		Status:            domain.ReservationStatusPending,
	}

	if err := s.repo.CreateReservation(ctx, reservation); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	submissionsTotal.Inc()
	ctxlog.FromContext(ctx).Info("reservation submitted",
		"reservation_id", reservation.ID,
		"equipment", reservation.EquipmentName,
		"date", reservation.ReservationDate.String(),
	)

	s.publish(ctx, domain.ChangeKindCreated, reservation)
	return reservation, nil
}

func (s *Service) validateSubmit(input SubmitInput) (domain.Date, error) {
	timeSlot := strings.TrimSpace(input.TimeSlot)
	if timeSlot == "" {
		return domain.Date{}, domain.NewValidationError("time_slot", "is required")
	}
	if utf8.RuneCountInString(timeSlot) > domain.MaxTimeSlotLength {
		return domain.Date{}, domain.NewValidationError("time_slot",
			fmt.Sprintf("must be at most %d characters", domain.MaxTimeSlotLength))
	}
	if err := validateNotes(input.Notes); err != nil {
		return domain.Date{}, err
	}

	date, err := domain.ParseDate(strings.TrimSpace(input.Date))
	if err != nil {
		return domain.Date{}, domain.NewValidationError("reservation_date", "must be a date in YYYY-MM-DD format")
	}
	if date.Before(s.today()) {
		return domain.Date{}, domain.NewValidationError("reservation_date", "must not be in the past")
	}

	return date, nil
}

func validateNotes(notes *string) error {
	if notes != nil && utf8.RuneCountInString(*notes) > domain.MaxNotesLength {
		return domain.NewValidationError("notes",
			fmt.Sprintf("must be at most %d characters", domain.MaxNotesLength))
	}
	return nil
}

func (s *Service) today() domain.Date {
	return domain.DateOf(s.now().In(s.location))
}

// ListForStudent returns the caller's own reservations, newest first.
func (s *Service) ListForStudent(ctx context.Context, callerID string) ([]domain.Reservation, error) {
	if callerID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	items, err := s.repo.ListReservations(ctx, ReservationFilter{StudentID: &callerID})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return items, nil
}

// ListAll returns every reservation with its owner's profile, newest first.
// Only staff and admins may list all reservations.
func (s *Service) ListAll(ctx context.Context, callerID string, status *domain.ReservationStatus) ([]domain.ReservationWithStudent, error) {
	if err := s.requireReviewer(ctx, callerID); err != nil {
		return nil, err
	}

	if status != nil && !status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", *status))
	}

	items, err := s.repo.ListReservations(ctx, ReservationFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, r := range items {
		if !seen[r.StudentID] {
			seen[r.StudentID] = true
			ids = append(ids, r.StudentID)
		}
	}

	profiles, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get reservation owners: %w", err)
	}

	result := make([]domain.ReservationWithStudent, 0, len(items))
	for _, r := range items {
		entry := domain.ReservationWithStudent{Reservation: r}
		if u, ok := profiles[r.StudentID]; ok {
			entry.StudentEmail = u.Email
			entry.StudentName = u.DisplayName
		}
		result = append(result, entry)
	}

	return result, nil
}

// Get returns one reservation. Students only see their own; a reservation
// the caller may not see is reported as not found.
func (s *Service) Get(ctx context.Context, callerID, id string) (*domain.Reservation, error) {
	role, err := s.roles.ResolveRole(ctx, callerID)
	if err != nil {
		return nil, err
	}

	reservation, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if !role.CanReview() && !reservation.IsOwnedBy(callerID) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}

	return reservation, nil
}

// Transition moves a reservation to input.Status. Notes, when given, replace
// the stored notes in the same update as the status.
func (s *Service) Transition(ctx context.Context, callerID, id string, input TransitionInput) (*domain.Reservation, error) {
	if err := s.requireReviewer(ctx, callerID); err != nil {
		return nil, err
	}

	if !input.Status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", input.Status))
	}
	if err := validateNotes(input.Notes); err != nil {
		return nil, err
	}

	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(input.Status) {
		transitionsTotal.WithLabelValues(string(input.Status), outcomeRejected).Inc()
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, input.Status)
	}

	updated, err := s.repo.CompareAndSetStatus(ctx, id, current.Status, input.Status, input.Notes, callerID)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			transitionsTotal.WithLabelValues(string(input.Status), outcomeConflict).Inc()
			return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrConcurrentModification)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update reservation status: %w", err)
	}

	transitionsTotal.WithLabelValues(string(input.Status), outcomeApplied).Inc()
	ctxlog.FromContext(ctx).Info("reservation transitioned",
		"reservation_id", id,
		"from", current.Status,
		"to", updated.Status,
	)

	s.publish(ctx, domain.ChangeKindTransitioned, updated)
	return updated, nil
}

func (s *Service) requireReviewer(ctx context.Context, callerID string) error {
	role, err := s.roles.ResolveRole(ctx, callerID)
	if err != nil {
		return err
	}
	if !role.CanReview() {
		return fmt.Errorf("%w: staff or admin role required", domain.ErrPermissionDenied)
	}
	return nil
}

// publish hands a committed change to the feed. Failures are logged only:
// the change is already stored.
func (s *Service) publish(ctx context.Context, kind domain.ChangeKind, r *domain.Reservation) {
	snapshot := *r
	change := domain.ReservationChange{
		Kind:          kind,
		ReservationID: r.ID,
		StudentID:     r.StudentID,
		Status:        r.Status,
		Reservation:   &snapshot,
		OccurredAt:    s.now().UTC(),
	}

	if err := s.publisher.Publish(ctx, change); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to publish reservation change",
			"reservation_id", r.ID,
			"kind", kind,
			"error", err,
		)
	}
}
