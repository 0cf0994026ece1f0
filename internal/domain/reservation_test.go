package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	allowed := map[[2]ReservationStatus]bool{
		{ReservationStatusPending, ReservationStatusApproved}:  true,
		{ReservationStatusPending, ReservationStatusRejected}:  true,
		{ReservationStatusApproved, ReservationStatusCompleted}: true,
	}

	allowedCount := 0
	for _, from := range AllReservationStatuses() {
		for _, to := range AllReservationStatuses() {
			got := from.CanTransitionTo(to)
			assert.Equal(t, allowed[[2]ReservationStatus{from, to}], got, "%s -> %s", from, to)
			if got {
				allowedCount++
			}
		}
	}

	assert.Equal(t, 3, allowedCount)
}

func TestReservationStatus_NeverBackToPending(t *testing.T) {
	for _, from := range AllReservationStatuses() {
		assert.False(t, from.CanTransitionTo(ReservationStatusPending), "%s -> pending", from)
	}
}

func TestReservationStatus_IsTerminal(t *testing.T) {
	assert.False(t, ReservationStatusPending.IsTerminal())
	assert.False(t, ReservationStatusApproved.IsTerminal())
	assert.True(t, ReservationStatusRejected.IsTerminal())
	assert.True(t, ReservationStatusCompleted.IsTerminal())
	assert.False(t, ReservationStatus("cancelled").IsTerminal())
}

func TestReservationStatus_UnknownStatus(t *testing.T) {
	unknown := ReservationStatus("cancelled")

	assert.False(t, unknown.IsValid())
	assert.False(t, unknown.CanTransitionTo(ReservationStatusApproved))
	assert.False(t, ReservationStatusPending.CanTransitionTo(unknown))
}
