package rewe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/maltedev/rewe-discounts/internal/cache"
)

var (
	ErrNoMarkets       = errors.New("no markets found")
	ErrUpstream        = errors.New("upstream request failed")
	ErrDecode          = errors.New("upstream returned undecodable body")
	ErrUnexpectedShape = errors.New("upstream response has an unexpected shape")
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	// 50 requests per second keep the detail queries below the 429 threshold.
	defaultRequestsPerSecond = 50
)

type Options struct {
	MobileBaseURL     string
	ShopBaseURL       string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	DetailRetryDelay  time.Duration
	Cache             cache.ResponseCache
	Logger            *slog.Logger
}

// Client talks to the mobile API (offer-search, v3 all-offers) and the shop
// API (market search, stationary offers, offer details).
type Client struct {
	mobile *resty.Client
	shop   *resty.Client

	cache            cache.ResponseCache
	detailRetryDelay time.Duration
	logger           *slog.Logger
}

func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.Cache == nil {
		opts.Cache = cache.NopCache{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// both hosts share one budget
	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)

	return &Client{
		mobile:           newHTTPClient(opts.MobileBaseURL, opts, limiter),
		shop:             newHTTPClient(opts.ShopBaseURL, opts, limiter),
		cache:            opts.Cache,
		detailRetryDelay: opts.DetailRetryDelay,
		logger:           opts.Logger.With("component", "rewe_client"),
	}
}

func newHTTPClient(baseURL string, opts Options, limiter *rate.Limiter) *resty.Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(baseURL, "/"))
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetHeader("accept", "application/json")
	httpClient.SetTimeout(opts.Timeout)

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return httpClient
}

// checkedResponse is implemented by response types that can tell an upstream
// failure apart from a usable payload.
type checkedResponse interface {
	check() error
}

// getJSON fetches path and decodes the body into out. A body is cached only
// when it decodes and, for a checkedResponse, passes its check. Cached bodies
// that no longer pass are refetched.
func (c *Client) getJSON(ctx context.Context, httpClient *resty.Client, path string, query url.Values, out any) error {
	key := httpClient.BaseURL + path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}

	if body, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("response cache unavailable", "error", err)
	} else if ok {
		if err := decodeChecked(body, out); err == nil {
			return nil
		}
		c.logger.Warn("discarding unusable cached response", "key", key)
		reflect.ValueOf(out).Elem().SetZero()
	}

	res, err := httpClient.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrUpstream, key, err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: GET %s: status %d", ErrUpstream, key, res.StatusCode())
	}

	if err := decodeChecked(res.Body(), out); err != nil {
		return fmt.Errorf("GET %s: %w", key, err)
	}

	if err := c.cache.Set(ctx, key, res.Body()); err != nil {
		c.logger.Warn("failed to cache response", "key", key, "error", err)
	}

	return nil
}

func decodeChecked(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if v, ok := out.(checkedResponse); ok {
		return v.check()
	}
	return nil
}

// flexString accepts JSON strings and numbers, since the upstream APIs are
// not consistent about identifier and amount types.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// upstreamError extracts a non-empty "error" member from an API response.
func upstreamError(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case bool:
		if e {
			return "true"
		}
		return ""
	default:
		b, _ := json.Marshal(e)
		return string(b)
	}
}

func parseCents(s flexString) (int64, error) {
	v := strings.TrimSpace(s.String())
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price in cent %q", ErrUnexpectedShape, v)
	}
	return int64(f), nil
}
