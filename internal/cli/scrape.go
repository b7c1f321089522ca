package cli

import (
	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/browser"
	"github.com/maltedev/rewe-discounts/internal/offers"
	"github.com/maltedev/rewe-discounts/internal/parser"
	"github.com/maltedev/rewe-discounts/internal/ratelimit"
)

func newScrapeCommand(a *app) *cobra.Command {
	var (
		rf      reportFlags
		urlFile string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Renders storefront category pages in a browser and exports their offer cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := offers.LoadURLs(urlFile)
			if err != nil {
				return err
			}

			highlights, err := a.loadHighlights(rf)
			if err != nil {
				return err
			}

			opts := browser.DefaultOptions()
			opts.Headless = a.cfg.Browser.Headless
			opts.Timeout = a.cfg.Browser.Timeout
			opts.ViewportWidth = a.cfg.Browser.ViewportWidth
			opts.ViewportHeight = a.cfg.Browser.ViewportHeight
			opts.AcceptLanguage = a.cfg.Browser.AcceptLanguage
			opts.TimezoneID = a.cfg.Browser.TimezoneID
			opts.Locale = a.cfg.Browser.Locale
			opts.UserAgent = a.cfg.Scraper.UserAgent
			opts.MaxRetries = a.cfg.Scraper.MaxRetries

			b, err := browser.New(opts)
			if err != nil {
				return err
			}
			defer b.Close()

			src := offers.NewStorefrontSource(
				b,
				ratelimit.NewSimpleRateLimiter(a.cfg.Scraper.RateLimitMin, a.cfg.Scraper.RateLimitMax),
				parser.NewStorefrontParser(a.logger),
				urls,
				a.logger,
			)

			report, err := offers.NewService(nil, a.logger).Run(cmd.Context(), src, highlights)
			if err != nil {
				return err
			}

			return a.writeReport(report, rf, len(highlights) > 0)
		},
	}

	cmd.Flags().StringVar(&urlFile, "urls", "urls.txt", "file with one category page url per line")
	cmd.Flags().StringVar(&rf.outputFile, "output-file", "Angebote Rewe.md", "output file path")
	cmd.Flags().StringVar(&rf.highlights, "highlights", "", "file with products to highlight")
	cmd.Flags().StringVar(&rf.jsonFile, "json-file", "", "additionally write the report as JSON")
	cmd.Flags().BoolVar(&rf.print, "print", false, "print the result to the terminal")

	return cmd
}
