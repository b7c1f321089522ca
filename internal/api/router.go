package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	Timeout        time.Duration
}

func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:*", "https://localhost:*"}
	}
	if opts.Timeout == 0 {
		// stationary queries fetch every offer one by one
		opts.Timeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/markets", h.ListMarkets)
		r.Get("/markets/{marketID}/offers", h.MarketOffers)
		r.Get("/markets/{marketID}/offers.md", h.MarketOffersMarkdown)
		r.Get("/offers", h.OfferSearch)
	})

	return r
}
