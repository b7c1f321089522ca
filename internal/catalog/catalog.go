package catalog

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/maltedev/rewe-discounts/internal/models"
)

// Catalog groups products into buckets. The highlight bucket always comes
// first and the unknown bucket always last; declared categories keep their
// declaration order in between.
type Catalog struct {
	highlight *models.Bucket
	unknown   *models.Bucket
	declared  []*models.Bucket
	byKey     map[string]*models.Bucket
}

func New() *Catalog {
	c := &Catalog{
		highlight: &models.Bucket{Key: models.HighlightKey, Title: models.HighlightTitle},
		unknown:   &models.Bucket{Key: models.UnknownKey, Title: models.UnknownTitle},
		byKey:     make(map[string]*models.Bucket),
	}
	c.byKey[models.HighlightKey] = c.highlight
	c.byKey[models.UnknownKey] = c.unknown
	return c
}

// FromReport rebuilds a catalog around the buckets of an existing report so
// that highlights can be applied after fetching.
func FromReport(r *models.Report) *Catalog {
	c := New()
	for _, b := range r.Buckets {
		switch b.Key {
		case models.HighlightKey:
			c.highlight = b
		case models.UnknownKey:
			c.unknown = b
		default:
			c.declared = append(c.declared, b)
		}
		c.byKey[b.Key] = b
	}
	return c
}

// Declare registers a category. Declaring a key twice returns the existing bucket.
func (c *Catalog) Declare(key, title string) *models.Bucket {
	if b, ok := c.byKey[key]; ok {
		return b
	}
	b := &models.Bucket{Key: key, Title: title}
	c.declared = append(c.declared, b)
	c.byKey[key] = b
	return b
}

// Add files p under key, or under the unknown bucket if key was never declared.
func (c *Catalog) Add(p *models.Product, key string) {
	b, ok := c.byKey[key]
	if !ok || key == models.HighlightKey {
		b = c.unknown
	}
	if p.Category == "" && b != c.unknown {
		p.Category = b.Title
	}
	b.Products = append(b.Products, p)
}

// Highlight copies every product whose name contains one of patterns
// (case-insensitive) into the highlight bucket and returns the number copied.
func (c *Catalog) Highlight(patterns []string) int {
	if len(patterns) == 0 {
		return 0
	}

	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lowered = append(lowered, strings.ToLower(p))
		}
	}

	seen := make(map[*models.Product]bool, len(c.highlight.Products))
	for _, p := range c.highlight.Products {
		seen[p] = true
	}

	n := 0
	for _, b := range c.ordered() {
		if b == c.highlight {
			continue
		}
		for _, p := range b.Products {
			if seen[p] || !matches(p.Name, lowered) {
				continue
			}
			c.highlight.Products = append(c.highlight.Products, p)
			seen[p] = true
			n++
		}
	}
	return n
}

func matches(name string, lowered []string) bool {
	name = strings.ToLower(name)
	for _, p := range lowered {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// SetHighlightNote sets the line printed below the highlight heading.
func (c *Catalog) SetHighlightNote(note string) {
	c.highlight.Note = note
}

// Buckets returns all buckets in print order, empty ones included.
func (c *Catalog) Buckets() []*models.Bucket {
	return c.ordered()
}

func (c *Catalog) ordered() []*models.Bucket {
	out := make([]*models.Bucket, 0, len(c.declared)+2)
	out = append(out, c.highlight)
	out = append(out, c.declared...)
	return append(out, c.unknown)
}

// Count is the number of distinct products, not counting highlight copies.
func (c *Catalog) Count() int {
	n := len(c.unknown.Products)
	for _, b := range c.declared {
		n += len(b.Products)
	}
	return n
}

func (c *Catalog) HighlightCount() int {
	return len(c.highlight.Products)
}

// Report wraps the buckets into a report.
func (c *Catalog) Report(source, marketID, validUntil string) *models.Report {
	return &models.Report{
		Source:      source,
		MarketID:    marketID,
		ValidUntil:  validUntil,
		Buckets:     c.ordered(),
		GeneratedAt: time.Now(),
	}
}

// LoadHighlights reads one name pattern per line. Lines starting with '#'
// and blank lines are ignored. A file without patterns is not an error.
func LoadHighlights(path string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open highlights file %q: %w", path, err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		patterns = append(patterns, strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read highlights file %q: %w", path, err)
	}

	logger.Debug("highlights loaded", "file", path, "count", len(patterns))
	return patterns, nil
}
