package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/rewe-discounts/internal/models"
)

func product(name string) *models.Product {
	return &models.Product{Name: name, Price: "1,00"}
}

func keys(buckets []*models.Bucket) []string {
	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Key)
	}
	return out
}

func TestCatalogOrderAndUnknown(t *testing.T) {
	c := New()
	c.Declare("dairy", "Molkereiprodukte")
	c.Declare("fruit", "Obst & Gemüse")
	c.Declare("dairy", "ignored")

	c.Add(product("Joghurt"), "dairy")
	c.Add(product("Äpfel"), "fruit")
	c.Add(product("Rätselheft"), "magazines")
	c.Add(product("Sneaky"), models.HighlightKey)

	buckets := c.Buckets()
	assert.Equal(t, []string{"!", "dairy", "fruit", "?"}, keys(buckets))
	assert.Equal(t, "Molkereiprodukte", buckets[1].Title)
	assert.Equal(t, "Molkereiprodukte", buckets[1].Products[0].Category)
	assert.Len(t, buckets[3].Products, 2)
	assert.Empty(t, buckets[0].Products)
	assert.Equal(t, 4, c.Count())
}

func TestCatalogHighlight(t *testing.T) {
	c := New()
	c.Declare("dairy", "Molkereiprodukte")
	c.Add(product("Bio Joghurt Natur"), "dairy")
	c.Add(product("Milch"), "dairy")
	c.Add(product("Joghurtdrink"), "unknown-id")

	n := c.Highlight([]string{"joghurt", "  ", "Käse"})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, c.HighlightCount())
	assert.Equal(t, 3, c.Count(), "highlight copies are not counted twice")

	// highlighting again does not duplicate
	assert.Equal(t, 0, c.Highlight([]string{"JOGHURT"}))

	assert.Equal(t, 0, New().Highlight(nil))
}

func TestFromReport(t *testing.T) {
	c := New()
	c.Declare("drinks", "Getränke")
	c.Add(product("Apfelschorle"), "drinks")
	c.SetHighlightNote("Alle Angebote gültig bis 2024-10-19.")

	report := c.Report("all-offers", "1234567", "2024-10-19")
	assert.Equal(t, 1, report.ProductCount())

	FromReport(report).Highlight([]string{"schorle"})
	assert.Equal(t, 1, report.HighlightCount())
	assert.Equal(t, "Alle Angebote gültig bis 2024-10-19.", report.Buckets[0].Note)
}

func TestLoadHighlights(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "highlights.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Wunschliste\nJoghurt\n\n  Kaffee  \r\n#Tee\n"), 0o644))

	patterns, err := LoadHighlights(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Joghurt", "Kaffee"}, patterns)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o644))
	patterns, err = LoadHighlights(empty, nil)
	require.NoError(t, err)
	assert.Empty(t, patterns)

	_, err = LoadHighlights(filepath.Join(dir, "missing.txt"), nil)
	assert.Error(t, err)
}
