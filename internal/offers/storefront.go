package offers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/maltedev/rewe-discounts/internal/catalog"
	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/parser"
	"github.com/maltedev/rewe-discounts/internal/ratelimit"
)

const SourceStorefront = "storefront"

var ErrNoURLs = errors.New("no urls to scrape")

// PageFetcher returns the rendered HTML of a page.
type PageFetcher interface {
	Content(ctx context.Context, url string) (string, error)
}

// StorefrontSource renders each category page in a browser and parses its offer cards.
type StorefrontSource struct {
	fetcher PageFetcher
	limiter ratelimit.RateLimiter
	parser  parser.Parser
	urls    []string
	logger  *slog.Logger
}

func NewStorefrontSource(fetcher PageFetcher, limiter ratelimit.RateLimiter, p parser.Parser, urls []string, logger *slog.Logger) *StorefrontSource {
	if limiter == nil {
		limiter = ratelimit.NopRateLimiter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StorefrontSource{
		fetcher: fetcher,
		limiter: limiter,
		parser:  p,
		urls:    urls,
		logger:  logger.With("component", "storefront_source"),
	}
}

func (s *StorefrontSource) Name() string { return SourceStorefront }

func (s *StorefrontSource) Fetch(ctx context.Context) (*models.Report, error) {
	if len(s.urls) == 0 {
		return nil, ErrNoURLs
	}

	cat := catalog.New()

	for _, pageURL := range s.urls {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		s.logger.Info("fetching category page", "url", pageURL)

		html, err := s.fetcher.Content(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve web page %q: %w", pageURL, err)
		}

		page, err := s.parser.ParsePage(html)
		if errors.Is(err, parser.ErrNoCards) {
			s.logger.Warn("no offers on category page", "url", pageURL, "category", page.Category)
		} else if err != nil {
			return nil, fmt.Errorf("feature extraction failed for %q, maybe the page has changed its source code: %w", pageURL, err)
		}

		bucket := cat.Declare(page.Category, page.Category)
		bucket.Note = page.Validity
		for _, p := range page.Products {
			cat.Add(p, page.Category)
		}
	}

	return cat.Report(SourceStorefront, "", ""), nil
}

func isPageURL(line string) bool {
	u, err := url.Parse(line)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// LoadURLs reads one http(s) url per line. Any other line, such as a comment
// or heading, is skipped.
func LoadURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url file %q: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if isPageURL(line) {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url file %q: %w", path, err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoURLs, path)
	}
	return urls, nil
}
