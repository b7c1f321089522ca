package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/textutil"
)

const (
	categorySelector    = "h1"
	validitySelector    = "span.copy"
	cardSelector        = "div.card-body"
	cardValidSelector   = "p.ma-offer-validfrom-to"
	cardNameSelector    = "p.headline"
	cardPriceSelector   = "div.price"
	cardDiscountSelect  = "div.discount"
	cardDetailsSelector = "div.text-description"
)

// StorefrontParser extracts offer cards from browser-rendered category pages.
type StorefrontParser struct {
	logger *slog.Logger
}

func NewStorefrontParser(logger *slog.Logger) *StorefrontParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorefrontParser{logger: logger.With("component", "storefront_parser")}
}

func (p *StorefrontParser) ParsePage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	category := textutil.Clean(doc.Find(categorySelector).First().Text())
	if category == "" {
		return nil, ErrNoCategory
	}

	page := &Page{
		Category: category,
		Validity: textutil.Clean(doc.Find(validitySelector).First().Text()),
	}

	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		product := p.parseCard(card)
		if product == nil {
			return
		}
		product.SetCategory(category)
		page.Products = append(page.Products, product)
	})

	if len(page.Products) == 0 {
		return page, ErrNoCards
	}

	return page, nil
}

func (p *StorefrontParser) parseCard(card *goquery.Selection) *models.Product {
	product := &models.Product{}

	product.SetName(card.Find(cardNameSelector).First().Text())
	if product.Name == "" {
		p.logger.Warn("skipping offer card without headline")
		return nil
	}

	product.SetPrice(card.Find(cardPriceSelector).First().Text())
	product.SetDiscount(card.Find(cardDiscountSelect).First().Text())
	product.SetDiscountValid(card.Find(cardValidSelector).First().Text())

	basePrice, description := splitDetails(card.Find(cardDetailsSelector).First())
	product.SetBasePrice(basePrice)
	product.SetDescription(description)

	return product
}

// splitDetails separates the unit price entry from the remaining description lines.
func splitDetails(details *goquery.Selection) (basePrice, description string) {
	var parts []string

	details.Children().Each(func(i int, entry *goquery.Selection) {
		text := textutil.Clean(entry.Text())
		if text == "" {
			return
		}
		if basePrice == "" && textutil.IsBasePrice(text) {
			basePrice = text
			return
		}
		parts = append(parts, text)
	})

	return basePrice, strings.Join(parts, " ")
}
