package rewe

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/rewe-discounts/internal/models"
)

func bucketByKey(r *models.Report, key string) *models.Bucket {
	for _, b := range r.Buckets {
		if b.Key == key {
			return b
		}
	}
	return nil
}

func bucketTitles(r *models.Report) []string {
	var titles []string
	for _, b := range r.Buckets {
		titles = append(titles, b.Title)
	}
	return titles
}

func TestAllOffers(t *testing.T) {
	until := time.Date(2024, 10, 19, 12, 0, 0, 0, time.Local)

	upstream := newFakeUpstream()
	upstream.on("/api/v3/all-offers?marketCode=562286", `{
		"untilDate": `+itoa(until.UnixMilli())+`,
		"categories": [
			{"title": "Obst & Gemüse", "offers": [
				{"title": "Bio Bananen", "subtitle": "(1 kg = 1,99 €)", "priceData": {"price": "1,99 €"}},
				{"title": "Kaputt"},
				{"subtitle": "ohne Titel", "priceData": {"price": 1}}
			]},
			{"title": "PAYBACK Extra", "offers": [
				{"title": "Punkte", "subtitle": "", "priceData": {"price": 0}}
			]},
			{"title": "Getränke", "offers": [
				{"title": "Mineralwasser", "subtitle": "1 l = 0,33 €", "priceData": {"price": 0.5}}
			]}
		]
	}`)

	client := newTestClient(t, upstream)
	report, err := client.AllOffers(context.Background(), "562286")
	require.NoError(t, err)

	assert.Equal(t, SourceAllOffers, report.Source)
	assert.Equal(t, "2024-10-19", report.ValidUntil)
	assert.Equal(t, []string{models.HighlightTitle, "Obst & Gemüse", "Getränke", models.UnknownTitle}, bucketTitles(report))
	assert.Equal(t, "Alle Angebote gültig bis 2024-10-19.", report.Buckets[0].Note)
	assert.Equal(t, 2, report.ProductCount())

	want := []*models.Product{
		{Name: "Bio Bananen", Price: "1,99 €", BasePrice: "1 kg = 1,99 €", Category: "Obst & Gemüse"},
	}
	if diff := cmp.Diff(want, report.Buckets[1].Products); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "0,50", report.Buckets[2].Products[0].Price)
}

func TestAllOffersUpstreamError(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/api/v3/all-offers?marketCode=562286", `{"error": "market unknown"}`)
	upstream.on("/api/v3/all-offers?marketCode=1234567", `{"something": "else"}`)

	client := newTestClient(t, upstream)

	_, err := client.AllOffers(context.Background(), "562286")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = client.AllOffers(context.Background(), "1234567")
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestStationaryOffers(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/api/all-stationary-offers/562286", `{"filters": [
		{"id": "price-filter", "categories": []},
		{"id": "no-price-filter", "categories": [
			{"id": "obst-und-gemuese", "offers": [{"id": "a1"}, {"id": 42}]},
			{"id": "payback-coupons", "offers": [{"id": "p1"}]},
			{"id": "kaffee-tee", "offers": [{"id": "c1"}, {"id": "broken"}]}
		]}
	]}`)
	upstream.on("/api/offer-details/a1?wwIdent=562286", `{
		"product": {"description": "Bio Äpfel"},
		"pricing": {"priceInCent": 199, "basePrice": "(1 kg = 1,99 €)"},
		"validUntil": "19.10.2024"
	}`)
	// first response is a throttling page, the retry succeeds
	upstream.on("/api/offer-details/42?wwIdent=562286",
		`<html>Too many requests</html>`,
		`{"product": {"description": "Trauben"}, "pricing": {"priceInCent": "250"},
		  "validUntil": "19.10.2024", "drippedOffWeight": "500 g"}`)
	upstream.on("/api/offer-details/c1?wwIdent=562286", `{
		"product": {"description": "Kaffee"}, "pricing": {"priceInCent": 599},
		"validUntil": "26.10.2024"
	}`)
	upstream.on("/api/offer-details/broken?wwIdent=562286", `{"validUntil": "19.10.2024"}`)

	client := newTestClient(t, upstream)
	report, err := client.StationaryOffers(context.Background(), "562286")
	require.NoError(t, err)

	assert.Equal(t, SourceStationary, report.Source)
	assert.Equal(t, "19.10.2024", report.ValidUntil)
	assert.Equal(t, "Alle Angebote gültig bis 19.10.2024.", report.Buckets[0].Note)
	assert.Nil(t, bucketByKey(report, "payback-coupons"))
	assert.Zero(t, upstream.count("/api/offer-details/p1?wwIdent=562286"))
	assert.Equal(t, 2, upstream.count("/api/offer-details/42?wwIdent=562286"))

	fruit := bucketByKey(report, "obst-und-gemuese")
	require.NotNil(t, fruit)
	want := []*models.Product{
		{ID: "a1", Name: "Bio Äpfel", Price: "1,99", Currency: "€", DiscountValid: "19.10.2024",
			BasePrice: "1 kg = 1,99 €", Category: "obst-und-gemuese"},
		{ID: "42", Name: "Trauben", Price: "2,50", Currency: "€", DiscountValid: "19.10.2024",
			BasePrice: "500 g", Category: "obst-und-gemuese"},
	}
	if diff := cmp.Diff(want, fruit.Products); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}

	coffee := bucketByKey(report, "kaffee-tee")
	require.NotNil(t, coffee)
	require.Len(t, coffee.Products, 1, "offer without product details is skipped")
	assert.Equal(t, models.UnknownBasePrice, coffee.Products[0].BasePrice)
}

func TestStationaryOffersMissingFilter(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/api/all-stationary-offers/562286", `{"filters": [{"id": "price-filter"}]}`)

	client := newTestClient(t, upstream)
	_, err := client.StationaryOffers(context.Background(), "562286")
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestOfferDetailsNumericFields(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/api/offer-details/m1?wwIdent=562286", `{
		"product": {"description": "Eier"}, "pricing": {"priceInCent": 229},
		"validUntil": "19.10.2024", "amount": 10
	}`)
	upstream.on("/api/offer-details/m2?wwIdent=562286", `{
		"product": {"description": "Mehl"}, "pricing": {"priceInCent": 89, "basePrice": ""},
		"drippedOffWeight": 1000, "amount": "1 kg"
	}`)

	client := newTestClient(t, upstream)
	ctx := context.Background()

	eggs, err := client.OfferDetails(ctx, "m1", "562286")
	require.NoError(t, err)
	assert.Equal(t, "10", eggs.BasePrice)
	assert.Equal(t, "2,29", eggs.Price)
	assert.Equal(t, 1, upstream.count("/api/offer-details/m1?wwIdent=562286"))

	flour, err := client.OfferDetails(ctx, "m2", "562286")
	require.NoError(t, err)
	assert.Equal(t, "1000", flour.BasePrice)
}

func TestStationaryOffersWithoutOffers(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/api/all-stationary-offers/562286", `{"filters": [
		{"id": "no-price-filter", "categories": [{"id": "kaffee-tee", "offers": [{"id": "broken"}]}]}
	]}`)
	upstream.on("/api/offer-details/broken?wwIdent=562286", `{"validUntil": "19.10.2024"}`)

	client := newTestClient(t, upstream)
	report, err := client.StationaryOffers(context.Background(), "562286")
	require.NoError(t, err)

	assert.Empty(t, report.ValidUntil)
	assert.Empty(t, report.Buckets[0].Note)
	assert.Zero(t, report.ProductCount())
}

func TestOfferDetailsRetryGivesUp(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/api/offer-details/x?wwIdent=562286", `not json`)

	client := newTestClient(t, upstream)
	_, err := client.OfferDetails(context.Background(), "x", "562286")

	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, 2, upstream.count("/api/offer-details/x?wwIdent=562286"))
}

func TestOfferSearch(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/products/offer-search", `{
		"_meta": {
			"categories": [{"id": "c1", "name": "Molkerei"}, {"id": "c2", "name": "Tiefkühl"}],
			"offerDuration": {"label": "Gültig bis Samstag, 19.10."}
		},
		"items": [
			{"name": "Joghurt", "basePrice": "(1 kg = 3,98 €)", "price": "1.99", "currency": "€",
			 "categoryIDs": ["c1"], "quantityAndUnit": "500 g", "additionalInformation": "versch. Sorten"},
			{"name": "Pizza", "price": 2.49, "currency": "€", "categoryIDs": ["c2", "c1"],
			 "quantityAndUnit": "350 g"},
			{"name": "Grillkohle", "price": "4.99", "currency": "€", "categoryIDs": ["c9"],
			 "quantityAndUnit": "2,5 kg"}
		]
	}`)

	client := newTestClient(t, upstream)
	report, err := client.OfferSearch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceOfferSearch, report.Source)
	assert.Equal(t, []string{models.HighlightTitle, "Molkerei", "Tiefkühl", models.UnknownTitle}, bucketTitles(report))
	assert.Equal(t, "Gültig bis Samstag, 19.10.", bucketByKey(report, "c1").Note)

	want := []*models.Product{{
		Name: "Joghurt", Price: "1,99", Currency: "€", BasePrice: "1 kg = 3,98 €",
		Description: "500 g versch. Sorten", Category: "Molkerei",
	}}
	if diff := cmp.Diff(want, bucketByKey(report, "c1").Products); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}

	pizza := bucketByKey(report, "c2").Products[0]
	assert.Equal(t, "2,49", pizza.Price)
	assert.Equal(t, "350 g", pizza.BasePrice)
	assert.Equal(t, "350 g", pizza.Description)

	unknown := bucketByKey(report, models.UnknownKey)
	require.Len(t, unknown.Products, 1)
	assert.Equal(t, "Grillkohle", unknown.Products[0].Name)
}

func TestOfferSearchWithoutMeta(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.on("/products/offer-search", `{"items": []}`)

	client := newTestClient(t, upstream)
	_, err := client.OfferSearch(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}
