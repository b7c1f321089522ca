package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// MaxRetryCount is the number of failed publishes before an event is parked.
	MaxRetryCount = 5

	DefaultStream = "stream:offer_snapshots"

	EventSnapshotStored    = "OFFERS_SNAPSHOT_STORED"
	AggregateOfferSnapshot = "offer_snapshot"
)

// OutboxEvent is a pending notification written in the same transaction as
// the data it describes.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	TargetStream  string          `db:"target_stream"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	ErrorMessage  *string         `db:"error_message"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
}

type OutboxRepository struct {
	db     *DB
	stream string
}

func NewOutboxRepository(db *DB, stream string) *OutboxRepository {
	if stream == "" {
		stream = DefaultStream
	}
	return &OutboxRepository{db: db, stream: stream}
}

// InsertWithTx queues event inside tx. Defaults are filled in place.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	prepareEvent(event, r.stream, time.Now())

	query := `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			created_at, next_retry_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := tx.Exec(ctx, query,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		event.Payload, event.TargetStream, event.Status, event.RetryCount,
		event.CreatedAt, event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

func prepareEvent(event *OutboxEvent, stream string, now time.Time) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.TargetStream == "" {
		event.TargetStream = stream
	}
	event.CreatedAt = now
	if event.NextRetryAt == nil {
		event.NextRetryAt = &now
	}
}

// Due returns up to limit events whose next attempt is at or before now,
// in the order they were queued.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, target_stream,
			status, retry_count, error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status = ANY($1) AND next_retry_at <= $2
		ORDER BY created_at
		LIMIT $3`,
		[]string{OutboxStatusPending, OutboxStatusFailed}, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*OutboxEvent, error) {
		e := &OutboxEvent{}
		err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.TargetStream,
			&e.Status, &e.RetryCount, &e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read due events: %w", err)
	}
	return events, nil
}

// MarkPublished closes an event once its stream entry exists.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event SET status = $1, processed_at = $2, error_message = NULL
		WHERE id = $3`, OutboxStatusProcessed, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found", id)
	}
	return nil
}

// MarkFailed counts a failed publish and schedules the next attempt. The
// row is locked so concurrent relays cannot lose a retry.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var retries int
		err := tx.QueryRow(ctx, `SELECT retry_count FROM outbox_event WHERE id = $1 FOR UPDATE`, id).Scan(&retries)
		if err != nil {
			return fmt.Errorf("failed to lock outbox event %s: %w", id, err)
		}

		retries++
		_, err = tx.Exec(ctx, `
			UPDATE outbox_event
			SET status = $1, retry_count = $2, error_message = $3, next_retry_at = $4
			WHERE id = $5`,
			failureStatus(retries), retries, cause.Error(), nextRetryTime(time.Now(), retries), id)
		if err != nil {
			return fmt.Errorf("failed to mark event as failed: %w", err)
		}
		return nil
	})
}

// Backlog returns the number of events still to be published and the number
// parked after too many failures.
func (r *OutboxRepository) Backlog(ctx context.Context) (pending, dead int64, err error) {
	counts, err := r.CountByStatus(ctx)
	if err != nil {
		return 0, 0, err
	}
	pending, dead = backlog(counts)
	return pending, dead, nil
}

func backlog(counts map[string]int64) (pending, dead int64) {
	return counts[OutboxStatusPending] + counts[OutboxStatusFailed], counts[OutboxStatusDeadLetter]
}

// CountByStatus counts outbox events per status.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT status, COUNT(*) FROM outbox_event GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func failureStatus(retryCount int) string {
	if retryCount >= MaxRetryCount {
		return OutboxStatusDeadLetter
	}
	return OutboxStatusFailed
}

// nextRetryTime backs off exponentially (2s, 4s, 8s, ...) capped at five minutes.
func nextRetryTime(now time.Time, retryCount int) time.Time {
	backoff := time.Duration(1<<retryCount) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return now.Add(backoff)
}
