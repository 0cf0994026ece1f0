package domain

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

// Reservation statuses.
const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusApproved  ReservationStatus = "approved"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusCompleted ReservationStatus = "completed"
)

// Field limits, counted in characters.
const (
	MaxTimeSlotLength = 50
	MaxNotesLength    = 500
)

// ReservationDateLayout is the wire format of reservation dates.
const ReservationDateLayout = "2006-01-02"

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusApproved, ReservationStatusRejected},
	ReservationStatusApproved:  {ReservationStatusCompleted},
	ReservationStatusRejected:  nil,
	ReservationStatusCompleted: nil,
}

// AllReservationStatuses lists every status in lifecycle order.
func AllReservationStatuses() []ReservationStatus {
	return []ReservationStatus{
		ReservationStatusPending,
		ReservationStatusApproved,
		ReservationStatusRejected,
		ReservationStatusCompleted,
	}
}

// IsValid checks if the status is known.
func (s ReservationStatus) IsValid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s ReservationStatus) IsTerminal() bool {
	return s.IsValid() && len(reservationTransitions[s]) == 0
}

// CanTransitionTo reports whether target is reachable from s in one step.
// A status is never reachable from itself.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Reservation is a student's request to borrow an equipment item.
type Reservation struct {
	ID                string            `json:"id"`
	StudentID         string            `json:"student_id"`
	EquipmentName     string            `json:"equipment_name"`
	EquipmentCategory string            `json:"equipment_category"`
	ReservationDate   Date              `json:"reservation_date"`
	TimeSlot          string            `json:"time_slot"`
	Notes             *string           `json:"notes"`
	Status            ReservationStatus `json:"status"`
	ReviewedBy        *string           `json:"reviewed_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsOwnedBy reports whether userID is the requesting student.
func (r *Reservation) IsOwnedBy(userID string) bool {
	return r.StudentID == userID
}

// ReservationWithStudent is a reservation enriched with its owner's profile.
type ReservationWithStudent struct {
	Reservation
	StudentEmail string  `json:"student_email"`
	StudentName  *string `json:"student_name"`
}
