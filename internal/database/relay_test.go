package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryQueue is an outbox held in memory.
type memoryQueue struct {
	mu        sync.Mutex
	events    []*OutboxEvent
	published map[uuid.UUID]time.Time
	failed    map[uuid.UUID]error
	dueErr    error
	markErr   error
}

func newMemoryQueue(events ...*OutboxEvent) *memoryQueue {
	return &memoryQueue{
		events:    events,
		published: make(map[uuid.UUID]time.Time),
		failed:    make(map[uuid.UUID]error),
	}
}

func (q *memoryQueue) Due(_ context.Context, now time.Time, limit int) ([]*OutboxEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.dueErr != nil {
		return nil, q.dueErr
	}
	var due []*OutboxEvent
	for _, e := range q.events {
		if _, done := q.published[e.ID]; done || e.NextRetryAt.After(now) {
			continue
		}
		if len(due) == limit {
			break
		}
		due = append(due, e)
	}
	return due, nil
}

func (q *memoryQueue) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.markErr != nil {
		return q.markErr
	}
	q.published[id] = at
	return nil
}

func (q *memoryQueue) MarkFailed(_ context.Context, id uuid.UUID, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = cause
	return nil
}

// recordingStream keeps every XAdd call and fails with err when set.
type recordingStream struct {
	mu      sync.Mutex
	entries []*redis.XAddArgs
	err     error
}

func (s *recordingStream) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := redis.NewStringCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.entries = append(s.entries, args)
	cmd.SetVal("1729000000000-0")
	return cmd
}

var relayNow = time.Date(2024, 10, 14, 8, 0, 0, 0, time.UTC)

// queuedSnapshotEvent builds the event SnapshotRepository.Save would queue.
func queuedSnapshotEvent(t *testing.T) (*Snapshot, *OutboxEvent) {
	t.Helper()

	snap := newSnapshot(testReport())
	event, err := snapshotEvent(snap)
	require.NoError(t, err)
	prepareEvent(event, DefaultStream, relayNow.Add(-time.Minute))
	return snap, event
}

func newTestRelay(queue EventQueue, stream StreamPublisher) *Relay {
	r := NewRelay(queue, stream, slog.Default(), RelayConfig{BatchSize: 10})
	r.now = func() time.Time { return relayNow }
	return r
}

func TestRelayPublishesSnapshotEvents(t *testing.T) {
	snap, event := queuedSnapshotEvent(t)
	queue := newMemoryQueue(event)
	stream := &recordingStream{}

	n, err := newTestRelay(queue, stream).drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, relayNow, queue.published[event.ID])
	assert.Empty(t, queue.failed)

	require.Len(t, stream.entries, 1)
	args := stream.entries[0]
	assert.Equal(t, DefaultStream, args.Stream)

	values := args.Values.(map[string]any)
	assert.Equal(t, "562286", values["market_id"])
	assert.Equal(t, "3", values["product_count"])
	assert.Equal(t, "all-offers", values["source"])
	assert.Equal(t, "2024-10-19", values["valid_until"])
	assert.Equal(t, snap.ID.String(), values["snapshot_id"])
	assert.Equal(t, event.ID.String(), values["event_id"])

	var entry streamEntry
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &entry))
	assert.Equal(t, relaySource, entry.Source)
	assert.Equal(t, 1, entry.Attempt)
	assert.Equal(t, snap.ID, entry.Snapshot.ID)
	assert.Equal(t, 3, entry.Snapshot.ProductCount)
}

func TestRelaySkipsEventsNotYetDue(t *testing.T) {
	_, event := queuedSnapshotEvent(t)
	later := relayNow.Add(time.Minute)
	event.NextRetryAt = &later

	stream := &recordingStream{}
	n, err := newTestRelay(newMemoryQueue(event), stream).drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, stream.entries)
}

func TestRelayRecordsFailedPublish(t *testing.T) {
	_, event := queuedSnapshotEvent(t)
	_, second := queuedSnapshotEvent(t)
	second.RetryCount = 2

	queue := newMemoryQueue(event, second)
	stream := &recordingStream{err: errors.New("READONLY replica")}

	n, err := newTestRelay(queue, stream).drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, queue.published)

	require.Len(t, queue.failed, 2, "one failure does not stop the batch")
	assert.ErrorContains(t, queue.failed[event.ID], "READONLY replica")
	assert.ErrorContains(t, queue.failed[second.ID], DefaultStream)
}

func TestRelayRejectsUnusableEvents(t *testing.T) {
	_, foreign := queuedSnapshotEvent(t)
	foreign.EventType = "PRICE_ALERT"

	_, broken := queuedSnapshotEvent(t)
	broken.Payload = json.RawMessage(`{"market_id": 562286}`)

	_, anonymous := queuedSnapshotEvent(t)
	anonymous.Payload = json.RawMessage(`{"market_id": "562286"}`)

	queue := newMemoryQueue(foreign, broken, anonymous)
	stream := &recordingStream{}

	n, err := newTestRelay(queue, stream).drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, stream.entries)

	assert.ErrorContains(t, queue.failed[foreign.ID], "unsupported event type")
	assert.ErrorContains(t, queue.failed[broken.ID], "failed to decode snapshot payload")
	assert.ErrorContains(t, queue.failed[anonymous.ID], "has no id")
}

func TestRelayDrainErrors(t *testing.T) {
	t.Run("outbox unavailable", func(t *testing.T) {
		queue := newMemoryQueue()
		queue.dueErr = errors.New("connection refused")

		_, err := newTestRelay(queue, &recordingStream{}).drain(context.Background())
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("published but not marked", func(t *testing.T) {
		_, event := queuedSnapshotEvent(t)
		queue := newMemoryQueue(event)
		queue.markErr = errors.New("tx aborted")
		stream := &recordingStream{}

		n, err := newTestRelay(queue, stream).drain(context.Background())
		assert.ErrorContains(t, err, "tx aborted")
		assert.Zero(t, n)
		assert.Len(t, stream.entries, 1)
	})
}

func TestRelayStartDrainsBeforeWaiting(t *testing.T) {
	_, event := queuedSnapshotEvent(t)
	queue := newMemoryQueue(event)
	stream := &recordingStream{}

	relay := newTestRelay(queue, stream)
	relay.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := relay.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, stream.entries, 1)
}

func TestNewRelayDefaults(t *testing.T) {
	r := NewRelay(newMemoryQueue(), &recordingStream{}, slog.Default(), RelayConfig{})
	assert.Equal(t, 5*time.Second, r.interval)
	assert.Equal(t, 100, r.batchSize)
}
