package feed

import (
	"github.com/bissquit/campus-reservations/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	changesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "feed",
			Name:      "published_total",
			Help:      "Reservation changes handed to the feed by result",
		},
		[]string{"result"},
	)

	changesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "feed",
			Name:      "delivered_total",
			Help:      "Changes queued to subscribers",
		},
	)

	changesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Changes skipped because a subscriber buffer was full",
		},
	)

	subscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Number of live feed subscriptions",
		},
	)
)

func recordPublished(result string) {
	changesPublished.WithLabelValues(result).Inc()
}

func recordDelivery(delivered, dropped int) {
	changesDelivered.Add(float64(delivered))
	changesDropped.Add(float64(dropped))
}
