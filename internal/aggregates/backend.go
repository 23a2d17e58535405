// Package aggregates keeps the client-side view of communal prayer totals in sync with the backend.
package aggregates

import (
	"context"

	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/events"
)

// Backend is the narrow contract the client needs from the hosted store.
type Backend interface {
	SelectAggregates(ctx context.Context) ([]domain.Aggregate, error)
	SelectRecentEntries(ctx context.Context, deviceHash string, limit int) ([]domain.RecentEntry, error)
	InsertEntry(ctx context.Context, entry domain.NewEntry) error
	// SubscribeInserts delivers one event per committed entry. The channel is closed when the
	// stream drops or ctx ends.
	SubscribeInserts(ctx context.Context) (<-chan events.EntryCreated, error)
}
