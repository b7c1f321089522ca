package rewe

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/rewe-discounts/internal/catalog"
	"github.com/maltedev/rewe-discounts/internal/models"
)

const (
	SourceAllOffers = "all-offers"

	paybackMarker = "PAYBACK"
)

type allOffersResponse struct {
	Error      any                 `json:"error"`
	UntilDate  *int64              `json:"untilDate"`
	Categories []allOffersCategory `json:"categories"`
}

type allOffersCategory struct {
	Title  string          `json:"title"`
	Offers []allOffersItem `json:"offers"`
}

type allOffersItem struct {
	Title     *string    `json:"title"`
	Subtitle  flexString `json:"subtitle"`
	PriceData *struct {
		Price any `json:"price"`
	} `json:"priceData"`
}

func (r *allOffersResponse) check() error {
	if msg := upstreamError(r.Error); msg != "" {
		return fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	if r.Categories == nil {
		return fmt.Errorf("%w: all offers without categories", ErrUnexpectedShape)
	}
	return nil
}

// AllOffers fetches every offer of a market with a single v3 query.
func (c *Client) AllOffers(ctx context.Context, marketID string) (*models.Report, error) {
	var resp allOffersResponse
	query := url.Values{"marketCode": {marketID}}
	if err := c.getJSON(ctx, c.mobile, "/api/v3/all-offers", query, &resp); err != nil {
		return nil, fmt.Errorf("all offers of market %s: %w", marketID, err)
	}

	cat := catalog.New()
	skipped := 0

	for i, category := range resp.Categories {
		if strings.Contains(category.Title, paybackMarker) {
			continue
		}

		key := strconv.Itoa(i)
		cat.Declare(key, category.Title)

		for _, item := range category.Offers {
			if item.Title == nil || item.PriceData == nil || item.PriceData.Price == nil {
				skipped++
				continue
			}

			p := &models.Product{}
			p.SetName(*item.Title)
			p.SetPrice(item.PriceData.Price)
			p.SetBasePrice(item.Subtitle.String())
			cat.Add(p, key)
		}
	}

	if skipped > 0 {
		c.logger.Debug("skipped offers without title or price", "market_id", marketID, "count", skipped)
	}

	validUntil := ""
	if resp.UntilDate != nil {
		validUntil = time.UnixMilli(*resp.UntilDate).Local().Format("2006-01-02")
		cat.SetHighlightNote(ValidityNote(validUntil))
	}

	return cat.Report(SourceAllOffers, marketID, validUntil), nil
}

// ValidityNote is printed below the highlight heading for market queries.
func ValidityNote(validUntil string) string {
	return fmt.Sprintf("Alle Angebote gültig bis %s.", validUntil)
}
