package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/rewe-discounts/internal/ratelimit"
)

// cardSelector marks a rendered offer card on the storefront pages.
const cardSelector = "div.card-body"

// consentSelectors match the accept button of the cookie banner.
var consentSelectors = []string{
	`[data-testid="uc-accept-all-button"]`,
	`#uc-btn-accept-banner`,
	`button:has-text("Alle akzeptieren")`,
	`button:has-text("Alle erlauben")`,
}

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	MaxRetries     int
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "de-DE,de;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Berlin",
		Locale:         "de-DE",
		MaxRetries:     3,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: browserCtx,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// Content loads url, accepts the cookie banner, scrolls until lazily loaded
// offer cards are rendered and returns the final HTML.
func (b *Browser) Content(ctx context.Context, url string) (string, error) {
	page, err := b.NewPage()
	if err != nil {
		return "", err
	}
	defer page.Close()

	if err := b.NavigateWithRetry(ctx, page, url, b.opts.MaxRetries); err != nil {
		return "", err
	}

	if _, err := b.DismissConsent(page); err != nil {
		b.logger.Warn("failed to dismiss cookie banner", "error", err, "url", url)
	}

	if _, err := page.WaitForSelector(cardSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		b.logger.Warn("no offer cards rendered", "url", url, "error", err)
	}

	if err := b.ScrollToBottom(ctx, page); err != nil {
		return "", err
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}

	return html, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

func (b *Browser) NavigateWithRetry(ctx context.Context, page playwright.Page, url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			if err := ratelimit.Sleep(ctx, time.Duration(i+1)*time.Second); err != nil {
				return err
			}
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// DismissConsent clicks the first visible accept button of the cookie banner.
func (b *Browser) DismissConsent(page playwright.Page) (bool, error) {
	for _, selector := range consentSelectors {
		button := page.Locator(selector).First()

		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}

		b.logger.Debug("found consent button", "selector", selector)

		if err := button.Click(); err != nil {
			b.logger.Error("failed to click consent button", "error", err)
			continue
		}
		return true, nil
	}

	return false, nil
}

// ScrollToBottom scrolls in steps so that lazy offer cards get rendered.
func (b *Browser) ScrollToBottom(ctx context.Context, page playwright.Page) error {
	for i := 0; i < 5; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, document.body.scrollHeight / 4)`); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if err := ratelimit.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}
