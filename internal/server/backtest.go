package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nikolasl00/marketplai/internal/backtest"
	"github.com/nikolasl00/marketplai/internal/domain"
	"github.com/nikolasl00/marketplai/internal/portfolio"
)

// BacktestHandler serves the /api/backtest resource (spec §6).
type BacktestHandler struct {
	deps Dependencies
	log  zerolog.Logger
}

func NewBacktestHandler(deps Dependencies, log zerolog.Logger) *BacktestHandler {
	return &BacktestHandler{deps: deps, log: log.With().Str("handler", "backtest").Logger()}
}

func (h *BacktestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/backtest", func(r chi.Router) {
		r.Post("/", h.HandleRun)
		r.Post("/compare", h.HandleCompare)
		r.Post("/portfolio", h.HandlePortfolio)
		r.Get("/symbols/{symbol}/date-range", h.HandleDateRange)
	})
}

func (h *BacktestHandler) source() backtest.StoreAdapter {
	return backtest.StoreAdapter{Store: h.deps.Prices}
}

// HandleRun serves POST /api/backtest.
func (h *BacktestHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body strategyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeClassified(w, fmt.Errorf("invalid JSON body: %w", ErrBadRequest))
		return
	}

	req, err := toBacktestRequest(body)
	if err != nil {
		writeClassified(w, err)
		return
	}

	result, err := backtest.Run(r.Context(), h.source(), req)
	if err != nil {
		writeBacktestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBacktestResponseDTO(result))
}

// HandleCompare serves POST /api/backtest/compare: runs 2-5 strategies
// against the same symbol/range and returns them side by side (spec §6
// "POST /api/backtest/compare").
func (h *BacktestHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var body compareRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeClassified(w, fmt.Errorf("invalid JSON body: %w", ErrBadRequest))
		return
	}
	if len(body.Strategies) < 2 || len(body.Strategies) > 5 {
		writeClassified(w, fmt.Errorf("strategies must contain between 2 and 5 entries: %w", ErrValidation))
		return
	}

	dateFrom, err := parseWireDate(body.DateFrom)
	if err != nil {
		writeClassified(w, fmt.Errorf("invalid date_from, expected YYYY-MM-DD: %w", ErrValidation))
		return
	}
	dateTo, err := parseWireDate(body.DateTo)
	if err != nil {
		writeClassified(w, fmt.Errorf("invalid date_to, expected YYYY-MM-DD: %w", ErrValidation))
		return
	}

	results := make([]backtestResponseDTO, 0, len(body.Strategies))
	var securityName *string
	for _, sc := range body.Strategies {
		params, err := parseStrategyParams(sc.Strategy, sc.StrategyParams)
		if err != nil {
			writeClassified(w, fmt.Errorf("%s: %w", err.Error(), ErrValidation))
			return
		}
		req := backtest.Request{
			Symbol:         body.Symbol,
			DateFrom:       dateFrom,
			DateTo:         dateTo,
			InitialCapital: body.InitialCapital,
			Strategy:       domain.StrategyType(sc.Strategy),
			Params:         params,
		}
		result, err := backtest.Run(r.Context(), h.source(), req)
		if err != nil {
			writeBacktestError(w, err)
			return
		}
		if securityName == nil {
			securityName = result.SecurityName
		}
		results = append(results, toBacktestResponseDTO(result))
	}

	writeJSON(w, http.StatusOK, compareResponseDTO{
		Symbol:         strings.ToUpper(body.Symbol),
		SecurityName:   securityName,
		DateFrom:       body.DateFrom,
		DateTo:         body.DateTo,
		InitialCapital: body.InitialCapital,
		Results:        results,
	})
}

// HandlePortfolio serves POST /api/backtest/portfolio (spec §4.6, §6).
func (h *BacktestHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	var body portfolioRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeClassified(w, fmt.Errorf("invalid JSON body: %w", ErrBadRequest))
		return
	}

	req, err := toPortfolioRequest(body)
	if err != nil {
		writeClassified(w, err)
		return
	}

	result, err := portfolio.Run(r.Context(), h.source(), req)
	if err != nil {
		writeBacktestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPortfolioResponseDTO(body, result))
}

// HandleDateRange serves GET /api/backtest/symbols/{symbol}/date-range.
func (h *BacktestHandler) HandleDateRange(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	min, max, count, ok, err := h.deps.Prices.DateRange(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load date range")
		return
	}
	if !ok {
		writeClassified(w, fmt.Errorf("symbol not found: %w", ErrNotFound))
		return
	}

	writeJSON(w, http.StatusOK, dateRangeResponseDTO{
		Symbol:     symbol,
		MinDate:    min.Format(wireDateFormat),
		MaxDate:    max.Format(wireDateFormat),
		DataPoints: count,
	})
}

func toBacktestRequest(body strategyRequestDTO) (backtest.Request, error) {
	dateFrom, err := parseWireDate(body.DateFrom)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("invalid date_from, expected YYYY-MM-DD: %w", ErrValidation)
	}
	dateTo, err := parseWireDate(body.DateTo)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("invalid date_to, expected YYYY-MM-DD: %w", ErrValidation)
	}
	if body.InitialCapital <= 0 {
		return backtest.Request{}, fmt.Errorf("initial_capital must be greater than 0: %w", ErrValidation)
	}
	params, err := parseStrategyParams(body.Strategy, body.StrategyParams)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}
	return backtest.Request{
		Symbol:         body.Symbol,
		DateFrom:       dateFrom,
		DateTo:         dateTo,
		InitialCapital: body.InitialCapital,
		Strategy:       domain.StrategyType(body.Strategy),
		Params:         params,
	}, nil
}

func toPortfolioRequest(body portfolioRequestDTO) (portfolio.Request, error) {
	if len(body.Holdings) < 2 || len(body.Holdings) > 5 {
		return portfolio.Request{}, fmt.Errorf("holdings must contain between 2 and 5 entries: %w", ErrValidation)
	}
	var weightSum float64
	holdings := make([]portfolio.Holding, len(body.Holdings))
	for i, hd := range body.Holdings {
		holdings[i] = portfolio.Holding{Symbol: hd.Symbol, Weight: hd.Weight}
		weightSum += hd.Weight
	}
	if weightSum < 0.99 || weightSum > 1.01 {
		return portfolio.Request{}, fmt.Errorf("holding weights must sum to 1.0 within ±0.01: %w", ErrValidation)
	}

	dateFrom, err := parseWireDate(body.DateFrom)
	if err != nil {
		return portfolio.Request{}, fmt.Errorf("invalid date_from, expected YYYY-MM-DD: %w", ErrValidation)
	}
	dateTo, err := parseWireDate(body.DateTo)
	if err != nil {
		return portfolio.Request{}, fmt.Errorf("invalid date_to, expected YYYY-MM-DD: %w", ErrValidation)
	}
	if body.InitialCapital <= 0 {
		return portfolio.Request{}, fmt.Errorf("initial_capital must be greater than 0: %w", ErrValidation)
	}

	params, err := parseStrategyParams(body.Strategy, body.StrategyParams)
	if err != nil {
		return portfolio.Request{}, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}

	var interval portfolio.RebalanceInterval
	if body.Rebalance {
		if body.RebalanceInterval == "" {
			return portfolio.Request{}, fmt.Errorf("rebalance_interval is required when rebalance is true: %w", ErrValidation)
		}
		interval = portfolio.RebalanceInterval(body.RebalanceInterval)
		if interval != portfolio.RebalanceMonthly && interval != portfolio.RebalanceQuarterly {
			return portfolio.Request{}, fmt.Errorf("rebalance_interval must be monthly or quarterly: %w", ErrValidation)
		}
	}

	return portfolio.Request{
		Holdings:          holdings,
		DateFrom:          dateFrom,
		DateTo:            dateTo,
		InitialCapital:    body.InitialCapital,
		Strategy:          domain.StrategyType(body.Strategy),
		Params:            params,
		Rebalance:         body.Rebalance,
		RebalanceInterval: interval,
	}, nil
}

func toPortfolioResponseDTO(body portfolioRequestDTO, result *portfolio.Result) portfolioResponseDTO {
	holdings := make([]portfolioHoldingResultDTO, len(result.Holdings))
	for i, hr := range result.Holdings {
		holdings[i] = portfolioHoldingResultDTO{
			Symbol:           hr.Symbol,
			SecurityName:     hr.SecurityName,
			Weight:           hr.Weight,
			AllocatedCapital: round2(hr.AllocatedCapital),
			FinalValue:       round2(hr.FinalValue),
			TotalInvested:    round2(hr.TotalInvested),
			EquityCurve:      toEquityDTO(hr.Equity),
			Metrics:          toMetricsDTO(hr.Metrics),
		}
	}

	var intervalPtr *string
	if body.Rebalance {
		v := body.RebalanceInterval
		intervalPtr = &v
	}

	return portfolioResponseDTO{
		DateFrom:               result.DateFrom.Format(wireDateFormat),
		DateTo:                 result.DateTo.Format(wireDateFormat),
		InitialCapital:         result.InitialCapital,
		Strategy:               body.Strategy,
		Rebalance:              body.Rebalance,
		RebalanceInterval:      intervalPtr,
		PortfolioEquityCurve:   toEquityDTO(result.Equity),
		PortfolioMetrics:       toMetricsDTO(result.Metrics),
		PortfolioFinalValue:    round2(result.FinalValue),
		PortfolioTotalInvested: round2(result.TotalInvested),
		Holdings:               holdings,
	}
}

// writeBacktestError classifies an error from backtest.Run/portfolio.Run
// into the HTTP dispositions of spec §7: semantic/insufficient-data
// failures are 422, everything else is a 500.
func writeBacktestError(w http.ResponseWriter, err error) {
	if errors.Is(err, backtest.ErrSemantic) || errors.Is(err, portfolio.ErrSemantic) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "backtest failed")
}
