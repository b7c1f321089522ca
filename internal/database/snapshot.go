package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/rewe-discounts/internal/models"
)

var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot summarizes one stored report.
type Snapshot struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	MarketID     string    `json:"market_id"`
	ValidUntil   string    `json:"valid_until"`
	ProductCount int       `json:"product_count"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// SnapshotRepository archives fetched reports for price history.
type SnapshotRepository struct {
	db     *DB
	outbox *OutboxRepository
	logger *slog.Logger
}

func NewSnapshotRepository(db *DB, outbox *OutboxRepository, logger *slog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		outbox: outbox,
		logger: logger.With("component", "snapshot_repository"),
	}
}

// Save stores the report with all its products and queues an
// OFFERS_SNAPSHOT_STORED event in the same transaction.
func (r *SnapshotRepository) Save(ctx context.Context, report *models.Report) error {
	snap := newSnapshot(report)

	event, err := snapshotEvent(snap)
	if err != nil {
		return err
	}

	err = r.db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO offer_snapshot (id, source, market_id, valid_until, product_count, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			snap.ID, snap.Source, snap.MarketID, snap.ValidUntil, snap.ProductCount, snap.FetchedAt)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		rows := snapshotRows(snap.ID, report)
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"offer_snapshot_product"},
			[]string{"snapshot_id", "position", "bucket_key", "bucket_title", "offer_id", "name",
				"price", "currency", "discount", "discount_valid", "base_price", "description"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to insert snapshot products: %w", err)
		}

		return r.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	r.logger.Info("snapshot stored",
		"snapshot_id", snap.ID,
		"market_id", snap.MarketID,
		"products", snap.ProductCount)
	return nil
}

// Latest returns the most recent snapshot of a market. An empty market id
// selects the nationwide offer-search snapshots.
func (r *SnapshotRepository) Latest(ctx context.Context, marketID string) (*Snapshot, error) {
	snap := &Snapshot{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, source, market_id, valid_until, product_count, fetched_at
		FROM offer_snapshot
		WHERE market_id = $1
		ORDER BY fetched_at DESC
		LIMIT 1`, marketID).Scan(
		&snap.ID, &snap.Source, &snap.MarketID, &snap.ValidUntil, &snap.ProductCount, &snap.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return snap, nil
}

func newSnapshot(report *models.Report) *Snapshot {
	fetchedAt := report.GeneratedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	return &Snapshot{
		ID:           uuid.New(),
		Source:       report.Source,
		MarketID:     report.MarketID,
		ValidUntil:   report.ValidUntil,
		ProductCount: report.ProductCount(),
		FetchedAt:    fetchedAt,
	}
}

// snapshotRows flattens the report; highlight copies are not stored twice.
func snapshotRows(id uuid.UUID, report *models.Report) [][]any {
	var rows [][]any
	for _, b := range report.Buckets {
		if b.Key == models.HighlightKey {
			continue
		}
		for _, p := range b.Products {
			rows = append(rows, []any{
				id, len(rows), b.Key, b.Title, p.ID, p.Name,
				p.Price, p.Currency, p.Discount, p.DiscountValid, p.BasePrice, p.Description,
			})
		}
	}
	return rows
}

func snapshotEvent(snap *Snapshot) (*OutboxEvent, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot event: %w", err)
	}
	return &OutboxEvent{
		AggregateType: AggregateOfferSnapshot,
		AggregateID:   snap.ID.String(),
		EventType:     EventSnapshotStored,
		Payload:       payload,
	}, nil
}
