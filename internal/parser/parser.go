package parser

import (
	"errors"

	"github.com/maltedev/rewe-discounts/internal/models"
)

var (
	ErrNoCategory = errors.New("no category headline found")
	ErrNoCards    = errors.New("no offer cards found")
)

// Page is the result of parsing one storefront category page.
type Page struct {
	Category string
	Validity string
	Products []*models.Product
}

type Parser interface {
	ParsePage(html string) (*Page, error)
}
