package rewe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/maltedev/rewe-discounts/internal/catalog"
	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/ratelimit"
	"github.com/maltedev/rewe-discounts/internal/textutil"
)

const (
	SourceStationary = "stationary"

	stationaryFilter = "no-price-filter"
	paybackCategory  = "payback"
)

type stationaryResponse struct {
	Filters []struct {
		ID         string `json:"id"`
		Categories []struct {
			ID     string `json:"id"`
			Offers []struct {
				ID flexString `json:"id"`
			} `json:"offers"`
		} `json:"categories"`
	} `json:"filters"`
}

// filter returns the index of the offer filter with the given id, or -1.
func (r *stationaryResponse) filter(id string) int {
	for i, f := range r.Filters {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (r *stationaryResponse) check() error {
	if r.filter(stationaryFilter) < 0 {
		return fmt.Errorf("%w: filter %q missing in stationary offers", ErrUnexpectedShape, stationaryFilter)
	}
	return nil
}

type offerDetailsResponse struct {
	Product *struct {
		Description flexString `json:"description"`
	} `json:"product"`
	Pricing *struct {
		PriceInCent flexString `json:"priceInCent"`
		BasePrice   flexString `json:"basePrice"`
	} `json:"pricing"`
	ValidUntil       flexString `json:"validUntil"`
	DrippedOffWeight flexString `json:"drippedOffWeight"`
	Amount           flexString `json:"amount"`
}

func (r *offerDetailsResponse) check() error {
	if r.Product == nil || r.Pricing == nil {
		return fmt.Errorf("%w: offer lacks product or pricing", ErrUnexpectedShape)
	}
	_, err := parseCents(r.Pricing.PriceInCent)
	return err
}

// basePrice walks the fields that carry a unit price or amount, in order.
func (r *offerDetailsResponse) basePrice() string {
	for _, v := range []flexString{r.Pricing.BasePrice, r.DrippedOffWeight, r.Amount} {
		if s := textutil.StripParens(v.String()); s != "" {
			return s
		}
	}
	return models.UnknownBasePrice
}

// StationaryOffers lists the offer ids of a market and queries the details
// of every offer one by one.
func (c *Client) StationaryOffers(ctx context.Context, marketID string) (*models.Report, error) {
	var resp stationaryResponse
	if err := c.getJSON(ctx, c.shop, "/api/all-stationary-offers/"+url.PathEscape(marketID), nil, &resp); err != nil {
		return nil, err
	}

	filterIdx := resp.filter(stationaryFilter)
	cat := catalog.New()
	validUntil := ""

	for _, category := range resp.Filters[filterIdx].Categories {
		if strings.Contains(category.ID, paybackCategory) {
			continue
		}
		cat.Declare(category.ID, category.ID)

		for _, offer := range category.Offers {
			p, err := c.OfferDetails(ctx, offer.ID.String(), marketID)
			if errors.Is(err, ErrUnexpectedShape) {
				c.logger.Warn("skipping offer with incomplete details", "offer_id", offer.ID, "error", err)
				continue
			}
			if err != nil {
				return nil, err
			}

			p.SetCategory(category.ID)
			if validUntil == "" {
				validUntil = p.DiscountValid
			}
			cat.Add(p, category.ID)
		}
	}

	if validUntil != "" {
		cat.SetHighlightNote(ValidityNote(validUntil))
	}
	return cat.Report(SourceStationary, marketID, validUntil), nil
}

// OfferDetails fetches one offer. An undecodable body usually means the API
// throttled us, so it is retried once after the configured delay.
func (c *Client) OfferDetails(ctx context.Context, offerID, marketID string) (*models.Product, error) {
	path := "/api/offer-details/" + url.PathEscape(offerID)
	query := url.Values{"wwIdent": {marketID}}

	var resp offerDetailsResponse
	err := c.getJSON(ctx, c.shop, path, query, &resp)
	if errors.Is(err, ErrDecode) {
		c.logger.Info("possible timeout while retrieving offer details, retrying", "offer_id", offerID, "delay", c.detailRetryDelay)
		if err := ratelimit.Sleep(ctx, c.detailRetryDelay); err != nil {
			return nil, err
		}
		resp = offerDetailsResponse{}
		err = c.getJSON(ctx, c.shop, path, query, &resp)
	}
	if err != nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, err)
	}

	cents, _ := parseCents(resp.Pricing.PriceInCent)

	p := &models.Product{ID: offerID, Currency: models.DefaultCurrency}
	p.SetName(resp.Product.Description.String())
	p.Price = textutil.FormatCents(cents)
	p.SetDiscountValid(resp.ValidUntil.String())
	p.BasePrice = resp.basePrice()

	return p, nil
}
