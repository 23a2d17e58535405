package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/events"
	"example.com/prayer/internal/observability"
)

// Repository provides Postgres-backed persistence for prayer logs and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists the entry and its outbox event inside a single transaction. When cooldown
// is positive the device row set is serialised with a transaction-scoped advisory lock so
// two concurrent submissions cannot both pass the window check.
func (r *Repository) Create(ctx context.Context, entry domain.LogEntry, cooldown time.Duration) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if cooldown > 0 {
		if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", entry.DeviceHash); err != nil {
			return err
		}

		var last time.Time
		err = tx.QueryRow(ctx,
			`SELECT created_at FROM prayer_logs WHERE device_hash=$1 ORDER BY created_at DESC LIMIT 1`,
			entry.DeviceHash,
		).Scan(&last)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = nil
		case err != nil:
			return err
		case entry.CreatedAt.Sub(last) < cooldown:
			err = domain.NewCooldownError(cooldown, last, entry.CreatedAt)
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO prayer_logs (id, prayer_type_id, value, device_hash, created_at) VALUES ($1,$2,$3,$4,$5)`,
		entry.ID, entry.ActivityTypeID, entry.Value, entry.DeviceHash, entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, entry, events.TypeEntryCreated, events.EntryCreated{
		EntryID:        entry.ID,
		ActivityTypeID: entry.ActivityTypeID,
		Value:          entry.Value,
		CreatedAt:      entry.CreatedAt,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordEntryPersisted(entry.CreatedAt)
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, entry domain.LogEntry, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"prayer_log",
		entry.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(entry),
		body,
		fmt.Sprintf("%s:%s", entry.ID, eventType),
	)
	return err
}

// Aggregates reads the per-type totals view.
func (r *Repository) Aggregates(ctx context.Context) ([]domain.Aggregate, error) {
	rows, err := r.pool.Query(ctx, `SELECT prayer_type_id, total FROM prayer_aggregates ORDER BY prayer_type_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Aggregate
	for rows.Next() {
		var agg domain.Aggregate
		if err := rows.Scan(&agg.ActivityTypeID, &agg.Total); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// RecentByDevice returns the newest entries written by a device.
func (r *Repository) RecentByDevice(ctx context.Context, deviceHash string, limit int) ([]domain.LogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, prayer_type_id, value, device_hash, created_at FROM prayer_logs
        WHERE device_hash=$1 ORDER BY created_at DESC LIMIT $2`,
		deviceHash, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows, limit)
}

// Recent returns the global feed ordered by time, newest first.
func (r *Repository) Recent(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.LogEntry, *domain.Cursor, error) {
	args := []interface{}{limit}
	query := `SELECT id, prayer_type_id, value, device_hash, created_at FROM prayer_logs`

	if cursor != nil {
		query += ` WHERE (created_at, id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results, err := scanEntries(rows, limit)
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

func scanEntries(rows pgx.Rows, capacity int) ([]domain.LogEntry, error) {
	results := make([]domain.LogEntry, 0, capacity)
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.ActivityTypeID, &e.Value, &e.DeviceHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.LogEntry) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeEntryCreated: {
		Topic:         events.Topic,
		SchemaSubject: events.SchemaSubject,
		PartitionKeyFn: func(e domain.LogEntry) string {
			return strconv.Itoa(e.ActivityTypeID)
		},
	},
}
