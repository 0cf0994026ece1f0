package domain

import "time"

// ChangeKind tells why a reservation changed.
type ChangeKind string

// Change kinds.
const (
	ChangeKindCreated      ChangeKind = "created"
	ChangeKindTransitioned ChangeKind = "transitioned"
)

// ReservationChange is broadcast after a reservation is created or transitioned.
type ReservationChange struct {
	Kind          ChangeKind        `json:"kind"`
	ReservationID string            `json:"reservation_id"`
	StudentID     string            `json:"student_id"`
	Status        ReservationStatus `json:"status"`
	Reservation   *Reservation      `json:"reservation,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
