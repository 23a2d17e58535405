// Package domain defines the business logic for recording prayers and reading totals.
package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/events"
)

// reservedDevices cannot be claimed by public submissions.
var reservedDevices = map[string]struct{}{
	AdminDevice:   {},
	"server-side": {},
}

// EntryRepository captures persistence operations.
type EntryRepository interface {
	// Create persists entry. When cooldown > 0 it must atomically reject the write with a
	// *CooldownError if the device already has an entry newer than entry.CreatedAt-cooldown.
	Create(ctx context.Context, entry LogEntry, cooldown time.Duration) error
	Aggregates(ctx context.Context) ([]Aggregate, error)
	RecentByDevice(ctx context.Context, deviceHash string, limit int) ([]LogEntry, error)
	Recent(ctx context.Context, cursor *Cursor, limit int) ([]LogEntry, *Cursor, error)
}

// Notifier is told about committed entries when the repository does not emit events itself.
type Notifier interface {
	EntryCreated(ctx context.Context, evt events.EntryCreated)
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier publishes entry.created after each commit.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCooldown overrides the per-device cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates prayer log workflows.
type Service struct {
	repo     EntryRepository
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo EntryRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cooldown: catalog.DefaultCooldownSeconds * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cooldown reports the enforced per-device interval.
func (s *Service) Cooldown() time.Duration { return s.cooldown }

// RecordEntry validates and stores a public submission.
func (s *Service) RecordEntry(ctx context.Context, input NewEntry) (*LogEntry, error) {
	device := strings.TrimSpace(input.DeviceHash)
	if device == "" {
		return nil, ErrMissingDevice
	}
	if _, reserved := reservedDevices[device]; reserved {
		return nil, ErrReservedDevice
	}
	at, ok := catalog.Lookup(input.ActivityTypeID)
	if !ok {
		return nil, ErrUnknownActivityType
	}
	if err := validateValue(at, input.Value); err != nil {
		return nil, err
	}

	entry := s.newEntry(at.ID, input.Value, device)
	if err := s.repo.Create(ctx, entry, s.cooldown); err != nil {
		return nil, err
	}
	s.notify(ctx, entry)
	return &entry, nil
}

// RecordAdjustments writes one admin entry per non-zero delta and returns how many were written.
func (s *Service) RecordAdjustments(ctx context.Context, adjustments map[int]int64) (int, error) {
	ids := make([]int, 0, len(adjustments))
	for id, delta := range adjustments {
		if _, ok := catalog.Lookup(id); !ok {
			return 0, fmt.Errorf("%w: %d", ErrUnknownActivityType, id)
		}
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	applied := 0
	for _, id := range ids {
		entry := s.newEntry(id, adjustments[id], AdminDevice)
		if err := s.repo.Create(ctx, entry, 0); err != nil {
			return applied, fmt.Errorf("recording adjustment for %d: %w", id, err)
		}
		s.notify(ctx, entry)
		applied++
	}
	return applied, nil
}

// Aggregates returns the raw totals known to the store.
func (s *Service) Aggregates(ctx context.Context) ([]Aggregate, error) {
	return s.repo.Aggregates(ctx)
}

// Totals returns a total for every catalog entry, defaulting to zero.
func (s *Service) Totals(ctx context.Context) (map[int]int64, error) {
	aggs, err := s.repo.Aggregates(ctx)
	if err != nil {
		return nil, err
	}
	return MergeTotals(aggs), nil
}

// Summary computes the dashboard statistics.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	totals, err := s.Totals(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(totals), nil
}

// RecentByDevice returns the newest entries of a device, newest first.
func (s *Service) RecentByDevice(ctx context.Context, deviceHash string, limit int) ([]RecentEntry, error) {
	if strings.TrimSpace(deviceHash) == "" {
		return nil, ErrMissingDevice
	}
	if limit <= 0 {
		limit = 1
	}
	entries, err := s.repo.RecentByDevice(ctx, deviceHash, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RecentEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, RecentEntry{CreatedAt: e.CreatedAt})
	}
	return out, nil
}

// RecentEntries returns the global feed with cursor pagination.
func (s *Service) RecentEntries(ctx context.Context, cursor *Cursor, limit int) ([]LogEntry, *Cursor, error) {
	return s.repo.Recent(ctx, cursor, limit)
}

// MergeTotals maps aggregates onto the full catalog.
func MergeTotals(aggs []Aggregate) map[int]int64 {
	totals := make(map[int]int64, catalog.Len())
	for _, at := range catalog.All() {
		totals[at.ID] = 0
	}
	for _, agg := range aggs {
		if _, ok := totals[agg.ActivityTypeID]; ok {
			totals[agg.ActivityTypeID] = agg.Total
		}
	}
	return totals
}

func (s *Service) newEntry(activityTypeID int, value int64, device string) LogEntry {
	return LogEntry{
		ID:             uuid.NewString(),
		ActivityTypeID: activityTypeID,
		Value:          value,
		DeviceHash:     device,
		CreatedAt:      s.now().UTC(),
	}
}

func (s *Service) notify(ctx context.Context, entry LogEntry) {
	if s.notifier == nil {
		return
	}
	s.notifier.EntryCreated(ctx, events.EntryCreated{
		EntryID:        entry.ID,
		ActivityTypeID: entry.ActivityTypeID,
		Value:          entry.Value,
		CreatedAt:      entry.CreatedAt,
	})
}

func validateValue(at catalog.ActivityType, value int64) error {
	switch at.Unit {
	case catalog.UnitCount:
		if value != 1 {
			return fmt.Errorf("%w: %s accepts a value of 1", ErrInvalidValue, at.Name)
		}
	case catalog.UnitMinutes:
		if value < 1 || value > MaxMinutesPerEntry {
			return fmt.Errorf("%w: %s accepts 1..%d minutes", ErrInvalidValue, at.Name, MaxMinutesPerEntry)
		}
	}
	return nil
}
