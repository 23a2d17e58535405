package api

import (
	"time"

	"example.com/prayer/internal/domain"
)

// ActivityTypeView describes one catalog entry.
type ActivityTypeView struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	DisplayOrder int    `json:"display_order"`
	Glyph        string `json:"glyph"`
}

// AggregatesResponse lists per-type totals known to the store.
type AggregatesResponse struct {
	Items []domain.Aggregate `json:"items"`
}

// RecentEntriesResponse lists the newest entry times of a device.
type RecentEntriesResponse struct {
	Items []domain.RecentEntry `json:"items"`
}

// CreateEntryResponse describes an accepted submission.
type CreateEntryResponse struct {
	ID             string    `json:"id"`
	ActivityTypeID int       `json:"activity_type_id"`
	Value          int64     `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Type              string `json:"type"`
	Detail            string `json:"detail"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// SessionRequest is the payload for POST /v1/admin/session.
type SessionRequest struct {
	Password string `json:"password"`
}

// AdjustmentsRequest is the payload for POST /v1/admin/adjustments, keyed by activity type id.
type AdjustmentsRequest struct {
	Adjustments map[int]int64 `json:"adjustments"`
}

// AdjustmentsResponse reports how many entries were written.
type AdjustmentsResponse struct {
	Applied int `json:"applied"`
}

// AdminEntryView is one row of the admin feed.
type AdminEntryView struct {
	ID             string    `json:"id"`
	ActivityTypeID int       `json:"activity_type_id"`
	ActivityName   string    `json:"activity_name"`
	Value          int64     `json:"value"`
	DeviceHash     string    `json:"device_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

// AdminEntriesResponse packages the admin feed.
type AdminEntriesResponse struct {
	Items      []AdminEntryView `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
