package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/rewe-discounts/internal/models"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Source produces a categorized report from one upstream shape.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*models.Report, error)
}

// OffersAPI is the subset of the REWE client used by the API backed sources.
type OffersAPI interface {
	AllOffers(ctx context.Context, marketID string) (*models.Report, error)
	StationaryOffers(ctx context.Context, marketID string) (*models.Report, error)
	OfferSearch(ctx context.Context) (*models.Report, error)
}

type AllOffersSource struct {
	API      OffersAPI
	MarketID string
}

func (s *AllOffersSource) Name() string { return "elegant" }

func (s *AllOffersSource) Fetch(ctx context.Context) (*models.Report, error) {
	return s.API.AllOffers(ctx, s.MarketID)
}

type StationarySource struct {
	API      OffersAPI
	MarketID string
}

func (s *StationarySource) Name() string { return "less-elegant" }

func (s *StationarySource) Fetch(ctx context.Context) (*models.Report, error) {
	return s.API.StationaryOffers(ctx, s.MarketID)
}

type OfferSearchSource struct {
	API OffersAPI
}

func (s *OfferSearchSource) Name() string { return "offer-search" }

func (s *OfferSearchSource) Fetch(ctx context.Context) (*models.Report, error) {
	return s.API.OfferSearch(ctx)
}

// FallbackSource tries Primary and switches to Secondary when it fails.
// A cancelled context is returned as is.
type FallbackSource struct {
	Primary   Source
	Secondary Source
	Logger    *slog.Logger
}

func (s *FallbackSource) Name() string {
	return s.Primary.Name() + "+" + s.Secondary.Name()
}

func (s *FallbackSource) Fetch(ctx context.Context) (*models.Report, error) {
	report, err := s.Primary.Fetch(ctx)
	if err == nil {
		return report, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("error while fetching discounts, falling back",
		"from", s.Primary.Name(),
		"to", s.Secondary.Name(),
		"error", err)

	report, err2 := s.Secondary.Fetch(ctx)
	if err2 != nil {
		return nil, fmt.Errorf("%s failed: %w; %s failed: %w", s.Primary.Name(), err, s.Secondary.Name(), err2)
	}
	return report, nil
}

const (
	StrategyAuto        = "auto"
	StrategyElegant     = "elegant"
	StrategyLessElegant = "less-elegant"
)

// MarketSource builds the source for a market query. The auto strategy
// prefers the single bulk query and falls back to per-offer detail queries.
func MarketSource(api OffersAPI, marketID, strategy string, logger *slog.Logger) (Source, error) {
	elegant := &AllOffersSource{API: api, MarketID: marketID}
	lessElegant := &StationarySource{API: api, MarketID: marketID}

	switch strategy {
	case StrategyAuto, "":
		return &FallbackSource{Primary: elegant, Secondary: lessElegant, Logger: logger}, nil
	case StrategyElegant:
		return elegant, nil
	case StrategyLessElegant:
		return lessElegant, nil
	default:
		return nil, fmt.Errorf("%w %q, expected %s, %s or %s",
			ErrUnknownStrategy, strategy, StrategyAuto, StrategyElegant, StrategyLessElegant)
	}
}
