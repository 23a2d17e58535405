package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	entryPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "prayer_service",
		Subsystem: "persistence",
		Name:      "last_entry_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent prayer log entry committed.",
	})
	entriesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prayer_service",
		Subsystem: "entries",
		Name:      "recorded_total",
		Help:      "Number of prayer log entries accepted, labeled by source.",
	}, []string{"source"})
	cooldownRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prayer_service",
		Subsystem: "entries",
		Name:      "cooldown_rejections_total",
		Help:      "Number of submissions rejected because the device was cooling down.",
	})
)

func init() {
	prometheus.MustRegister(entryPersistGauge, entriesRecorded, cooldownRejections)
}

// RecordEntryPersisted updates the persistence watermark gauge.
func RecordEntryPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	entryPersistGauge.Set(float64(ts.Unix()))
}

// RecordEntryAccepted counts an accepted entry. source is "public" or "admin".
func RecordEntryAccepted(source string) {
	entriesRecorded.WithLabelValues(source).Inc()
}

// RecordCooldownRejection counts a submission refused by the cooldown window.
func RecordCooldownRejection() {
	cooldownRejections.Inc()
}
