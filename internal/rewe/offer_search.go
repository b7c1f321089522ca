package rewe

import (
	"context"
	"fmt"

	"github.com/maltedev/rewe-discounts/internal/catalog"
	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/textutil"
)

const SourceOfferSearch = "offer-search"

type offerSearchResponse struct {
	Meta *struct {
		Categories []struct {
			ID   flexString `json:"id"`
			Name string     `json:"name"`
		} `json:"categories"`
		OfferDuration struct {
			Label string `json:"label"`
		} `json:"offerDuration"`
	} `json:"_meta"`
	Items []struct {
		Name                  string       `json:"name"`
		BasePrice             *string      `json:"basePrice"`
		Price                 any          `json:"price"`
		Currency              string       `json:"currency"`
		CategoryIDs           []flexString `json:"categoryIDs"`
		QuantityAndUnit       string       `json:"quantityAndUnit"`
		AdditionalInformation string       `json:"additionalInformation"`
	} `json:"items"`
}

func (r *offerSearchResponse) check() error {
	if r.Meta == nil {
		return fmt.Errorf("%w: offer search without _meta", ErrUnexpectedShape)
	}
	return nil
}

// OfferSearch queries the nationwide offer-search endpoint of the mobile API.
func (c *Client) OfferSearch(ctx context.Context) (*models.Report, error) {
	var resp offerSearchResponse
	if err := c.getJSON(ctx, c.mobile, "/products/offer-search", nil, &resp); err != nil {
		return nil, err
	}

	note := textutil.Clean(resp.Meta.OfferDuration.Label)

	cat := catalog.New()
	for _, category := range resp.Meta.Categories {
		cat.Declare(category.ID.String(), textutil.Clean(category.Name)).Note = note
	}

	for _, item := range resp.Items {
		p := &models.Product{}
		p.SetName(item.Name)
		p.SetPrice(item.Price)
		p.SetCurrency(item.Currency)

		if item.BasePrice != nil && *item.BasePrice != "" {
			p.SetBasePrice(*item.BasePrice)
		} else {
			p.SetBasePrice(item.QuantityAndUnit)
		}
		p.SetDescription(item.QuantityAndUnit + " " + item.AdditionalInformation)

		key := models.UnknownKey
		if len(item.CategoryIDs) > 0 {
			key = item.CategoryIDs[0].String()
		}
		cat.Add(p, key)
	}

	return cat.Report(SourceOfferSearch, "", note), nil
}
