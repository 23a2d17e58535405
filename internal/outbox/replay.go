package outbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Replayer moves dead-lettered events back into the outbox with exponential backoff and
// quarantines entries that keep failing.
type Replayer struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
	logger     *log.Logger
}

// NewReplayer constructs a Replayer. Non-positive settings fall back to 5 retries and 1m.
func NewReplayer(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, logger *log.Logger) *Replayer {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Replayer{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// Run replays a batch every interval until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requeued, err := r.RunOnce(ctx, batchSize)
			if err != nil && ctx.Err() == nil {
				r.logger.Printf("dlq replay error: %v", err)
			} else if requeued > 0 {
				r.logger.Printf("dlq replay requeued %d events", requeued)
			}
		}
	}
}

// RunOnce handles one batch of due DLQ entries and returns how many were requeued.
func (r *Replayer) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, event_id, event_type, topic, payload, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at, created_at
                     FROM outbox_dlq
                    WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                    ORDER BY created_at
                    LIMIT $1`

	rows, err := r.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, scanDLQEntry)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, entry := range entries {
		ok, handleErr := r.handle(ctx, entry)
		if handleErr != nil {
			err = errors.Join(err, handleErr)
			continue
		}
		if ok {
			requeued++
		}
	}
	r.updateBacklog(ctx)
	return requeued, err
}

// handle requeues, defers or quarantines one entry. It reports whether the entry went back to the
// outbox. An entry that failed again after a replay arrives with its retry count carried over and
// no schedule; it waits out the backoff for that attempt before the next requeue.
func (r *Replayer) handle(ctx context.Context, entry dlqEntry) (requeued bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if entry.RetryCount >= r.maxRetries {
		if _, err = tx.Exec(ctx,
			`UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`,
			"retry limit reached", entry.ID,
		); err != nil {
			return false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return false, err
		}
		dlqQuarantinedCounter.WithLabelValues(entry.Topic).Inc()
		return false, nil
	}

	if entry.NextRetryAt == nil && entry.RetryCount > 0 {
		due := entry.CreatedAt.Add(r.backoffDelay(entry.RetryCount))
		if due.After(time.Now()) {
			if _, err = tx.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = $1 WHERE dlq_id = $2`, due, entry.ID); err != nil {
				return false, err
			}
			if err = tx.Commit(ctx); err != nil {
				return false, err
			}
			dlqRetryCounter.WithLabelValues(entry.Topic).Inc()
			return false, nil
		}
	}

	if requeueErr := requeue(ctx, tx, entry); requeueErr != nil {
		// The failed insert aborted the transaction; record the retry in a fresh one.
		_ = tx.Rollback(ctx)
		err = r.scheduleRetry(ctx, entry, requeueErr)
		return false, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	dlqRequeuedCounter.WithLabelValues(entry.Topic).Inc()
	return true, nil
}

func (r *Replayer) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	delay := r.backoffDelay(entry.RetryCount + 1)
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = NOW(),
                next_retry_at = NOW() + make_interval(secs => $1),
                reason = $2
          WHERE dlq_id = $3`,
		delay.Seconds(), cause.Error(), entry.ID,
	)
	if err == nil {
		dlqRetryCounter.WithLabelValues(entry.Topic).Inc()
	}
	return err
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (r *Replayer) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * r.baseDelay
	if delay > time.Hour || delay <= 0 {
		delay = time.Hour
	}
	return delay
}

func (r *Replayer) updateBacklog(ctx context.Context) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}

func requeue(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, retry_count)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.AggregateType, entry.AggregateID, entry.EventType, entry.Topic, entry.SchemaSubject, entry.PartitionKey, entry.Payload, entry.RetryCount+1,
	)
	return err
}

type dlqEntry struct {
	ID            int64
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
	NextRetryAt   *time.Time
	CreatedAt     time.Time
}

func scanDLQEntry(row pgx.CollectableRow) (dlqEntry, error) {
	var e dlqEntry
	err := row.Scan(&e.ID, &e.EventID, &e.EventType, &e.Topic, &e.Payload, &e.AggregateType, &e.AggregateID, &e.SchemaSubject, &e.PartitionKey, &e.RetryCount, &e.NextRetryAt, &e.CreatedAt)
	return e, err
}
