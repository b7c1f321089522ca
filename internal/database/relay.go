package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relaySource = "rewe-discounts"

// StreamPublisher appends entries to a redis stream.
type StreamPublisher interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventQueue is the part of the outbox the relay drains.
type EventQueue interface {
	Due(ctx context.Context, now time.Time, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

// Relay moves stored snapshot events from the outbox to their redis stream.
// Delivery is at least once; consumers dedupe on event_id.
type Relay struct {
	queue     EventQueue
	stream    StreamPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func NewRelay(queue EventQueue, stream StreamPublisher, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &Relay{
		queue:     queue,
		stream:    stream,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		now:       time.Now,
	}
}

// Start drains the outbox once and then on every tick until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("relaying snapshot events", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logger.Error("failed to drain outbox", "error", err)
		case n > 0:
			r.logger.Info("snapshot events published", "count", n)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain publishes one batch of due events and returns how many reached the
// stream. A failed publish is recorded on the event and the batch goes on.
func (r *Relay) drain(ctx context.Context) (int, error) {
	events, err := r.queue.Due(ctx, r.now(), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due events: %w", err)
	}

	published := 0
	for _, event := range events {
		if err := r.publish(ctx, event); err != nil {
			r.logger.Warn("snapshot event not published",
				"event_id", event.ID,
				"attempt", event.RetryCount+1,
				"error", err)
			if err := r.queue.MarkFailed(ctx, event.ID, err); err != nil {
				return published, fmt.Errorf("failed to record publish failure of %s: %w", event.ID, err)
			}
			continue
		}

		if err := r.queue.MarkPublished(ctx, event.ID, r.now()); err != nil {
			return published, fmt.Errorf("failed to mark %s as published: %w", event.ID, err)
		}
		published++
	}

	return published, nil
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	entry, err := newStreamEntry(event)
	if err != nil {
		return err
	}

	values, err := entry.values()
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{Stream: event.TargetStream, Values: values}
	if _, err := r.stream.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to append to %s: %w", event.TargetStream, err)
	}
	return nil
}

// streamEntry is the message consumers of the snapshot stream receive. The
// flat stream fields repeat what is needed for routing; data holds all of it.
type streamEntry struct {
	EventID  string    `json:"event_id"`
	Type     string    `json:"type"`
	Source   string    `json:"source"`
	Attempt  int       `json:"attempt"`
	QueuedAt time.Time `json:"queued_at"`
	Snapshot Snapshot  `json:"snapshot"`
}

func newStreamEntry(event *OutboxEvent) (*streamEntry, error) {
	if event.EventType != EventSnapshotStored {
		return nil, fmt.Errorf("unsupported event type %q", event.EventType)
	}

	entry := &streamEntry{
		EventID:  event.ID.String(),
		Type:     event.EventType,
		Source:   relaySource,
		Attempt:  event.RetryCount + 1,
		QueuedAt: event.CreatedAt,
	}
	if err := json.Unmarshal(event.Payload, &entry.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	if entry.Snapshot.ID == uuid.Nil {
		return nil, fmt.Errorf("snapshot payload of %s has no id", event.ID)
	}
	return entry, nil
}

func (e *streamEntry) values() (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream entry: %w", err)
	}

	return map[string]any{
		"event_id":      e.EventID,
		"event_type":    e.Type,
		"snapshot_id":   e.Snapshot.ID.String(),
		"source":        e.Snapshot.Source,
		"market_id":     e.Snapshot.MarketID,
		"valid_until":   e.Snapshot.ValidUntil,
		"product_count": strconv.Itoa(e.Snapshot.ProductCount),
		"data":          string(data),
	}, nil
}
