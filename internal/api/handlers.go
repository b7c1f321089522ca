package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/rewe-discounts/internal/models"
	"github.com/maltedev/rewe-discounts/internal/offers"
	"github.com/maltedev/rewe-discounts/internal/render"
	"github.com/maltedev/rewe-discounts/internal/rewe"
)

// Upstream is the REWE client as used by the handlers.
type Upstream interface {
	offers.OffersAPI
	SearchMarkets(ctx context.Context, zip string) ([]models.Market, error)
}

// Runner executes a source and applies highlights.
type Runner interface {
	Run(ctx context.Context, src offers.Source, highlights []string) (*models.Report, error)
}

// BacklogReporter exposes the outbox state for the health check. Optional.
type BacklogReporter interface {
	Backlog(ctx context.Context) (pending, dead int64, err error)
}

type Handlers struct {
	upstream Upstream
	runner   Runner
	backlog  BacklogReporter
	strategy string
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandlers(upstream Upstream, runner Runner, backlog BacklogReporter, strategy string, logger *slog.Logger) *Handlers {
	return &Handlers{
		upstream: upstream,
		runner:   runner,
		backlog:  backlog,
		strategy: strategy,
		logger:   logger.With("component", "api"),
		now:      time.Now,
	}
}

type marketsResponse struct {
	Zip     string          `json:"zip"`
	Markets []models.Market `json:"markets"`
}

// Health reports ok unless the outbox is backing up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.backlog != nil {
		pending, dead, err := h.backlog.Backlog(r.Context())
		if err != nil {
			h.logger.Error("failed to read outbox backlog", "error", err)
			health["status"] = "degraded"
		} else {
			health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
			if pending > 1000 {
				health["status"] = "warning"
				health["message"] = "High number of pending outbox events"
			}
			if dead > 100 {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

// ListMarkets handles GET /markets?zip=
func (h *Handlers) ListMarkets(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	if err := rewe.ValidateZip(zip); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	markets, err := h.upstream.SearchMarkets(r.Context(), zip)
	if err != nil {
		h.respondUpstreamError(w, "failed to search markets", err)
		return
	}

	h.respondJSON(w, http.StatusOK, marketsResponse{Zip: zip, Markets: markets})
}

// MarketOffers handles GET /markets/{marketID}/offers
func (h *Handlers) MarketOffers(w http.ResponseWriter, r *http.Request) {
	report, ok := h.marketReport(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

// MarketOffersMarkdown handles GET /markets/{marketID}/offers.md
func (h *Handlers) MarketOffersMarkdown(w http.ResponseWriter, r *http.Request) {
	report, ok := h.marketReport(w, r)
	if !ok {
		return
	}
	h.respondMarkdown(w, report)
}

// OfferSearch handles GET /offers, the nationwide offer-search listing.
func (h *Handlers) OfferSearch(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context(), &offers.OfferSearchSource{API: h.upstream}, highlights(r))
	if err != nil {
		h.respondUpstreamError(w, "failed to fetch offers", err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		h.respondMarkdown(w, report)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

func (h *Handlers) marketReport(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	marketID := chi.URLParam(r, "marketID")
	if err := rewe.ValidateMarketID(marketID); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		strategy = h.strategy
	}

	src, err := offers.MarketSource(h.upstream, marketID, strategy, h.logger)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	report, err := h.runner.Run(r.Context(), src, highlights(r))
	if err != nil {
		h.respondUpstreamError(w, "failed to fetch offers", err)
		return nil, false
	}
	return report, true
}

// highlights collects ?highlight= values; each may hold a comma separated list.
func highlights(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["highlight"] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (h *Handlers) respondMarkdown(w http.ResponseWriter, report *models.Report) {
	body, err := render.Markdown(report, h.now())
	if err != nil {
		h.logger.Error("failed to render markdown", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to render markdown")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handlers) respondUpstreamError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, rewe.ErrNoMarkets):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	h.logger.Error(msg, "error", err, "status", status)
	h.respondError(w, status, err.Error())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
