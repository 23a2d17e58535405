// Package memory provides an in-process prayer log store for local development and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/prayer/internal/domain"
)

// Repository stores entries in memory. It satisfies domain.EntryRepository.
type Repository struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	totals  map[int]int64
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{totals: make(map[int]int64)}
}

// Create implements domain.EntryRepository.
func (r *Repository) Create(ctx context.Context, entry domain.LogEntry, cooldown time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if cooldown > 0 {
		if last, ok := r.latestLocked(entry.DeviceHash); ok && entry.CreatedAt.Sub(last) < cooldown {
			return domain.NewCooldownError(cooldown, last, entry.CreatedAt)
		}
	}

	r.entries = append(r.entries, entry)
	r.totals[entry.ActivityTypeID] += entry.Value
	return nil
}

func (r *Repository) latestLocked(device string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, e := range r.entries {
		if e.DeviceHash == device && (!found || e.CreatedAt.After(latest)) {
			latest, found = e.CreatedAt, true
		}
	}
	return latest, found
}

// Aggregates implements domain.EntryRepository.
func (r *Repository) Aggregates(ctx context.Context) ([]domain.Aggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Aggregate, 0, len(r.totals))
	for id, total := range r.totals {
		out = append(out, domain.Aggregate{ActivityTypeID: id, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityTypeID < out[j].ActivityTypeID })
	return out, nil
}

// RecentByDevice implements domain.EntryRepository.
func (r *Repository) RecentByDevice(ctx context.Context, deviceHash string, limit int) ([]domain.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LogEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].DeviceHash == deviceHash {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

// Recent implements domain.EntryRepository.
func (r *Repository) Recent(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.LogEntry, *domain.Cursor, error) {
	r.mu.RLock()
	sorted := make([]domain.LogEntry, len(r.entries))
	copy(sorted, r.entries)
	r.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool { return newer(sorted[i], sorted[j]) })

	out := make([]domain.LogEntry, 0, limit)
	for _, e := range sorted {
		if cursor != nil && !newer(domain.LogEntry{ID: cursor.ID, CreatedAt: cursor.CreatedAt}, e) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(out) == limit {
		last := out[len(out)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return out, next, nil
}

// newer orders by (created_at, id) descending, matching the Postgres feed.
func newer(a, b domain.LogEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
