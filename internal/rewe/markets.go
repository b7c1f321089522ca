package rewe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/textutil"
)

type marketDTO struct {
	WWIdent        flexString `json:"wwIdent"`
	CompanyName    string     `json:"companyName"`
	ContactStreet  string     `json:"contactStreet"`
	ContactZipCode flexString `json:"contactZipCode"`
	ContactCity    string     `json:"contactCity"`
}

// marketSearchResponse holds either the market list or, when the search
// failed, the object carrying the "error" member.
type marketSearchResponse struct {
	Markets []marketDTO
	Failed  bool
	Error   any
}

func (r *marketSearchResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var failure struct {
			Error any `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &failure); err != nil {
			return err
		}
		r.Failed, r.Error = true, failure.Error
		return nil
	}
	return json.Unmarshal(trimmed, &r.Markets)
}

func (r *marketSearchResponse) check() error {
	if msg := upstreamError(r.Error); r.Failed && msg != "" {
		return fmt.Errorf("%w: market search: %s", ErrUpstream, msg)
	}
	if len(r.Markets) == 0 {
		return ErrNoMarkets
	}
	return nil
}

// SearchMarkets lists the markets in or near the given postal code.
func (c *Client) SearchMarkets(ctx context.Context, zip string) ([]models.Market, error) {
	var resp marketSearchResponse
	query := url.Values{"searchTerm": {zip}}
	if err := c.getJSON(ctx, c.shop, "/api/marketsearch", query, &resp); err != nil {
		if errors.Is(err, ErrNoMarkets) {
			return nil, fmt.Errorf("%w near zip code %s", ErrNoMarkets, zip)
		}
		return nil, err
	}

	markets := make([]models.Market, 0, len(resp.Markets))
	for _, d := range resp.Markets {
		markets = append(markets, models.Market{
			ID:      d.WWIdent.String(),
			Name:    textutil.Clean(d.CompanyName),
			Street:  textutil.Clean(d.ContactStreet),
			ZipCode: d.ContactZipCode.String(),
			City:    textutil.Clean(d.ContactCity),
		})
	}

	c.logger.Debug("markets found", "zip", zip, "count", len(markets))
	return markets, nil
}
