package offers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/rewe-discounts/internal/catalog"
	"github.com/maltedev/rewe-discounts/internal/models"
)

// SnapshotStore persists fetched reports. Optional.
type SnapshotStore interface {
	Save(ctx context.Context, report *models.Report) error
}

type Service struct {
	store  SnapshotStore
	logger *slog.Logger
}

func NewService(store SnapshotStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "offers_service"),
	}
}

// Run fetches src, copies highlighted products into the highlight bucket
// and archives the report when a store is configured.
func (s *Service) Run(ctx context.Context, src Source, highlights []string) (*models.Report, error) {
	start := time.Now()

	report, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discounts via %s: %w", src.Name(), err)
	}

	highlighted := catalog.FromReport(report).Highlight(highlights)

	s.logger.Info("discounts fetched",
		"source", src.Name(),
		"market_id", report.MarketID,
		"products", report.ProductCount(),
		"highlighted", highlighted,
		"duration", time.Since(start))

	if s.store != nil {
		if err := s.store.Save(ctx, report); err != nil {
			s.logger.Error("failed to archive report", "error", err)
		}
	}

	return report, nil
}
