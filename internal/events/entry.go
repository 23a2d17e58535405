// Package events defines the payloads broadcast when prayer entries are written.
package events

import "time"

const (
	// TypeEntryCreated is the event type emitted for every accepted prayer log entry.
	TypeEntryCreated = "entry.created"
	// Topic is the Kafka topic carrying prayer log events.
	Topic = "prayer_log_events"
	// SchemaSubject is the schema registry subject for Topic values.
	SchemaSubject = Topic + "-value"
)

// EntryCreated is broadcast after a prayer log entry commits. Subscribers treat it as a
// refresh trigger only; the device hash is deliberately left out.
type EntryCreated struct {
	EntryID        string    `json:"entry_id"`
	ActivityTypeID int       `json:"activity_type_id"`
	Value          int64     `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
}
