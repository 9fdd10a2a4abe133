package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nikolasl00/marketplai/internal/pricestore"
)

// StockPricesHandler serves the /api/stock-prices resource (spec §6).
type StockPricesHandler struct {
	deps Dependencies
	log  zerolog.Logger
}

func NewStockPricesHandler(deps Dependencies, log zerolog.Logger) *StockPricesHandler {
	return &StockPricesHandler{deps: deps, log: log.With().Str("handler", "stock_prices").Logger()}
}

func (h *StockPricesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/stock-prices", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/symbols", h.HandleSymbols)
	})
}

// HandleList serves GET /api/stock-prices?symbol=&date_from=&date_to=&skip=&limit=.
func (h *StockPricesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))

	limit := parseInt64(q.Get("limit"), 100)
	if limit < 1 || limit > 1000 {
		writeClassified(w, fmt.Errorf("limit must be between 1 and 1000: %w", ErrValidation))
		return
	}
	skip := parseInt64(q.Get("skip"), 0)

	from, to, err := parseDateRange(q.Get("date_from"), q.Get("date_to"))
	if err != nil {
		writeClassified(w, fmt.Errorf("%s: %w", err.Error(), ErrValidation))
		return
	}

	filter := pricestore.CountFilter{Symbol: symbol, DateFrom: from, DateTo: to}
	total, err := h.deps.Prices.CountByFilter(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count stock prices")
		return
	}

	rangeFrom := time.Time{}
	rangeTo := time.Now().UTC()
	if from != nil {
		rangeFrom = *from
	}
	if to != nil {
		rangeTo = *to
	}
	records, err := h.deps.Prices.FindRange(r.Context(), symbol, rangeFrom, rangeTo, pricestore.RangeProjection{Skip: skip, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list stock prices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": records, "total": total})
}

// HandleSymbols serves GET /api/stock-prices/symbols from the Symbol
// Index Cache.
func (h *StockPricesHandler) HandleSymbols(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Cache.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load symbols")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func parseDateRange(from, to string) (*time.Time, *time.Time, error) {
	var fromPtr, toPtr *time.Time
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, nil, &dateParseError{field: "date_from"}
		}
		fromPtr = &t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, nil, &dateParseError{field: "date_to"}
		}
		toPtr = &t
	}
	return fromPtr, toPtr, nil
}

type dateParseError struct{ field string }

func (e *dateParseError) Error() string {
	return "invalid " + e.field + ", expected YYYY-MM-DD"
}
