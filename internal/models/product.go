package models

import (
	"time"

	"github.com/maltedev/rewe-discounts/internal/textutil"
)

const (
	// HighlightKey is the bucket of products matching a user highlight.
	HighlightKey = "!"
	// UnknownKey collects products whose category could not be resolved.
	UnknownKey = "?"

	HighlightTitle = "Vorgemerkte Produkte"
	UnknownTitle   = "Unbekannte Kategorie"

	DefaultCurrency  = "€"
	UnknownBasePrice = "Unbekannt."
)

// Product is the normalized offer record shared by all upstream sources.
// Values are stored cleaned; use the setters when assigning raw upstream text.
type Product struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	Currency      string `json:"currency,omitempty"`
	Discount      string `json:"discount,omitempty"`
	DiscountValid string `json:"discount_valid,omitempty"`
	BasePrice     string `json:"base_price,omitempty"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
}

func (p *Product) SetName(s string)          { p.Name = textutil.Clean(s) }
func (p *Product) SetDiscount(s string)      { p.Discount = textutil.Clean(s) }
func (p *Product) SetDiscountValid(s string) { p.DiscountValid = textutil.Clean(s) }
func (p *Product) SetDescription(s string)   { p.Description = textutil.Clean(s) }
func (p *Product) SetCategory(s string)      { p.Category = textutil.Clean(s) }
func (p *Product) SetCurrency(s string)      { p.Currency = textutil.Clean(s) }

// SetPrice accepts the price as delivered upstream (string or number) and
// stores it with a decimal comma.
func (p *Product) SetPrice(v any) { p.Price = textutil.FormatPrice(v) }

// SetBasePrice stores the unit price without surrounding parentheses.
func (p *Product) SetBasePrice(s string) { p.BasePrice = textutil.StripParens(s) }

// Validate returns the violated invariants of a product; empty means valid.
func (p *Product) Validate() []string {
	var errors []string

	if p.Name == "" {
		errors = append(errors, "Name is required")
	}

	if p.Price == "" {
		errors = append(errors, "Price is required")
	}

	return errors
}

// Market is a physical store as returned by the market search.
type Market struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Street  string `json:"street"`
	ZipCode string `json:"zip_code"`
	City    string `json:"city"`
}

// Bucket is one section of the report.
type Bucket struct {
	Key      string     `json:"key"`
	Title    string     `json:"title"`
	Note     string     `json:"note,omitempty"`
	Products []*Product `json:"products"`
}

// Report is the categorized result of one fetch.
type Report struct {
	Source      string    `json:"source"`
	MarketID    string    `json:"market_id,omitempty"`
	ValidUntil  string    `json:"valid_until,omitempty"`
	Buckets     []*Bucket `json:"buckets"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ProductCount counts products across buckets without the highlight copies.
func (r *Report) ProductCount() int {
	n := 0
	for _, b := range r.Buckets {
		if b.Key == HighlightKey {
			continue
		}
		n += len(b.Products)
	}
	return n
}

// HighlightCount is the number of products in the highlight bucket.
func (r *Report) HighlightCount() int {
	for _, b := range r.Buckets {
		if b.Key == HighlightKey {
			return len(b.Products)
		}
	}
	return 0
}
