package domain

import (
	"errors"
	"fmt"
	"time"
)

// AdminDevice marks entries written through the admin adjustment panel.
const AdminDevice = "admin_adjustment"

// MaxMinutesPerEntry bounds a single timed submission.
const MaxMinutesPerEntry = 180

var (
	// ErrCooldownActive is returned when a device submits again inside the cooldown window.
	ErrCooldownActive = errors.New("cooldown active")
	// ErrUnknownActivityType is returned for ids outside the catalog.
	ErrUnknownActivityType = errors.New("unknown activity type")
	// ErrInvalidValue is returned when the value does not fit the activity unit.
	ErrInvalidValue = errors.New("invalid value")
	// ErrReservedDevice is returned when a public submission uses a reserved identity.
	ErrReservedDevice = errors.New("reserved device identity")
	// ErrMissingDevice is returned when no device hash accompanies a submission.
	ErrMissingDevice = errors.New("device hash is required")
)

// CooldownError reports how long a device must still wait.
type CooldownError struct {
	Remaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: retry in %d seconds", e.Remaining)
}

// Unwrap lets errors.Is match ErrCooldownActive.
func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// NewCooldownError computes the remaining wait for a device whose latest entry was at last.
func NewCooldownError(cooldown time.Duration, last, now time.Time) *CooldownError {
	return &CooldownError{Remaining: RemainingSeconds(cooldown, now.Sub(last))}
}

// RemainingSeconds returns ceil(cooldown - elapsed) in seconds, floored at zero.
func RemainingSeconds(cooldown, elapsed time.Duration) int {
	left := cooldown - elapsed
	if left <= 0 {
		return 0
	}
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

// LogEntry is one accepted submission. Entries are never mutated or deleted.
type LogEntry struct {
	ID             string
	ActivityTypeID int
	Value          int64
	DeviceHash     string
	CreatedAt      time.Time
}

// NewEntry is the write request for a submission.
type NewEntry struct {
	ActivityTypeID int    `json:"activity_type_id"`
	Value          int64  `json:"value"`
	DeviceHash     string `json:"device_hash"`
}

// Aggregate is the running total for one activity type.
type Aggregate struct {
	ActivityTypeID int   `json:"activity_type_id"`
	Total          int64 `json:"total"`
}

// RecentEntry is the projection used for the server-side cooldown double check.
type RecentEntry struct {
	CreatedAt time.Time `json:"created_at"`
}

// Cursor models the pagination token for the recent entries feed.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
