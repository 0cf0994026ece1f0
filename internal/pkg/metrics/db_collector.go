package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordDBPoolMetrics copies a pgxpool snapshot into the pool gauges.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	stats := pool.Stat()

	for state, n := range map[string]int32{
		"in_use":       stats.AcquiredConns(),
		"idle":         stats.IdleConns(),
		"constructing": stats.ConstructingConns(),
		"total":        stats.TotalConns(),
		"max":          stats.MaxConns(),
	} {
		DBPoolConnections.WithLabelValues(state).Set(float64(n))
	}

	// Cumulative in pgxpool, so exported as gauges of the running total.
	DBPoolAcquireWaits.Set(float64(stats.EmptyAcquireCount()))
	DBPoolAcquireWaitSeconds.Set(stats.AcquireDuration().Seconds())
}
