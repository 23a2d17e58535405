package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/events"
)

// Delivery paths, used as the source label.
const (
	SourceKafka    = "kafka"
	SourceLoopback = "loopback"
)

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prayer_service",
		Subsystem: "notify",
		Name:      "records_handled_total",
		Help:      "Change records handled, by delivery path and outcome.",
	}, []string{"source", "outcome"})

	notifiedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prayer_service",
		Subsystem: "notify",
		Name:      "entries_broadcast_total",
		Help:      "Accepted entries broadcast to stream subscribers, by activity.",
	}, []string{"activity"})

	broadcastDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prayer_service",
		Subsystem: "notify",
		Name:      "broadcast_delay_seconds",
		Help:      "Time from entry commit to subscriber broadcast.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

func init() {
	prometheus.MustRegister(handledCounter, notifiedCounter, broadcastDelay)
}

func recordOutcome(source, outcome string) {
	handledCounter.WithLabelValues(source, outcome).Inc()
}

func recordBroadcast(evt events.EntryCreated, now time.Time) {
	notifiedCounter.WithLabelValues(catalog.Name(evt.ActivityTypeID)).Inc()
	if !evt.CreatedAt.IsZero() && now.After(evt.CreatedAt) {
		broadcastDelay.Observe(now.Sub(evt.CreatedAt).Seconds())
	}
}
