package reservations

import (
	"github.com/bissquit/campus-reservations/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "reservations",
			Name:      "submitted_total",
			Help:      "Reservations submitted",
		},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "reservations",
			Name:      "transitions_total",
			Help:      "Reservation status transition attempts by target status and outcome",
		},
		[]string{"status", "outcome"},
	)
)

const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
	outcomeConflict = "conflict"
)
