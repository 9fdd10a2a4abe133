// Package portfolio is the Portfolio Orchestrator (PO) — runs the
// Backtest Engine per holding, aligns on the strict date intersection,
// optionally rebalances, and aggregates (spec §4.6).
//
// No teacher or pack example implements multi-holding rebalancing, so
// this is derived directly from spec §4.6, structured the way the
// Backtest Engine's own price-prep step is structured (fetch →
// intersect → restrict) for consistency with its sibling component
// (see DESIGN.md).
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nikolasl00/marketplai/internal/backtest"
	"github.com/nikolasl00/marketplai/internal/domain"
)

// Holding is one symbol/weight pair in a portfolio request.
type Holding struct {
	Symbol string
	Weight float64
}

// RebalanceInterval is the sub-period boundary cadence.
type RebalanceInterval string

const (
	RebalanceMonthly   RebalanceInterval = "monthly"
	RebalanceQuarterly RebalanceInterval = "quarterly"
)

// Request is one portfolio-backtest request (spec §6 "POST
// /api/backtest/portfolio").
type Request struct {
	Holdings          []Holding
	DateFrom          time.Time
	DateTo            time.Time
	InitialCapital    float64
	Strategy          domain.StrategyType
	Params            domain.StrategyParams
	Rebalance         bool
	RebalanceInterval RebalanceInterval
}

// HoldingResult is one holding's backtest result within a portfolio run.
type HoldingResult struct {
	Symbol         string
	SecurityName   *string
	Weight         float64
	AllocatedCapital float64
	TotalInvested  float64
	FinalValue     float64
	Equity         []domain.EquityPoint
	Trades         []domain.Trade
	Metrics        domain.Metrics
}

// Result is the aggregated portfolio backtest result.
type Result struct {
	DateFrom       time.Time
	DateTo         time.Time
	InitialCapital float64
	TotalInvested  float64
	FinalValue     float64
	Equity         []domain.EquityPoint
	Metrics        domain.Metrics
	Holdings       []HoldingResult
}

// ErrSemantic tags a 422-disposition failure, matching backtest.ErrSemantic.
var ErrSemantic = fmt.Errorf("portfolio: semantic error")

// Run executes the full contract of spec §4.6.
func Run(ctx context.Context, source backtest.PriceSource, req Request) (*Result, error) {
	if req.Rebalance && req.RebalanceInterval == "" {
		return nil, fmt.Errorf("%w: rebalance_interval is required when rebalance=true", ErrSemantic)
	}

	prepared := make([][]backtest.PricePoint, len(req.Holdings))
	for i, h := range req.Holdings {
		symbol := strings.ToUpper(h.Symbol)
		raw, err := source.FindRangeAdjClose(ctx, symbol, req.DateFrom, req.DateTo)
		if err != nil {
			return nil, fmt.Errorf("portfolio: fetch prices for %s: %w", symbol, err)
		}
		series, err := backtest.Prepare(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSemantic, symbol, err)
		}
		prepared[i] = series
	}

	intersection := intersectDates(prepared)
	if len(intersection) < 2 {
		return nil, fmt.Errorf("%w: intersection of holdings' date ranges has fewer than 2 bars", ErrSemantic)
	}

	restricted := make([][]backtest.PricePoint, len(prepared))
	for i, series := range prepared {
		restricted[i] = restrictTo(series, intersection)
	}

	var holdingResults []HoldingResult
	var err error
	if req.Rebalance {
		holdingResults, err = runWithRebalance(req, restricted, intersection)
	} else {
		holdingResults, err = runWithoutRebalance(req, restricted)
	}
	if err != nil {
		return nil, err
	}

	for i, h := range req.Holdings {
		symbol := strings.ToUpper(h.Symbol)
		if name, ok := source.FindFirstNonEmptySecurityName(ctx, symbol, &req.DateFrom, &req.DateTo); ok {
			holdingResults[i].SecurityName = &name
		}
	}

	portfolioEquity := sumEquity(holdingResults, intersection)
	var totalInvested float64
	for _, hr := range holdingResults {
		totalInvested += hr.TotalInvested
	}
	portfolioMetrics := backtest.ComputeMetrics(portfolioEquity, nil, totalInvested)

	return &Result{
		DateFrom:       intersection[0],
		DateTo:         intersection[len(intersection)-1],
		InitialCapital: req.InitialCapital,
		TotalInvested:  totalInvested,
		FinalValue:     portfolioEquity[len(portfolioEquity)-1].Value,
		Equity:         portfolioEquity,
		Metrics:        portfolioMetrics,
		Holdings:       holdingResults,
	}, nil
}

func runWithoutRebalance(req Request, restricted [][]backtest.PricePoint) ([]HoldingResult, error) {
	out := make([]HoldingResult, len(req.Holdings))
	for i, h := range req.Holdings {
		capital := req.InitialCapital * h.Weight
		result, err := backtest.RunStrategy(req.Strategy, restricted[i], capital, req.Params)
		if err != nil {
			return nil, wrapStrategyErr(err)
		}
		metrics := backtest.ComputeMetrics(result.Equity, result.Trades, result.TotalInvested)
		out[i] = HoldingResult{
			Symbol:           strings.ToUpper(h.Symbol),
			Weight:           h.Weight,
			AllocatedCapital: capital,
			TotalInvested:    result.TotalInvested,
			FinalValue:       result.Equity[len(result.Equity)-1].Value,
			Equity:           result.Equity,
			Trades:           result.Trades,
			Metrics:          metrics,
		}
	}
	return out, nil
}

func runWithRebalance(req Request, restricted [][]backtest.PricePoint, intersection []time.Time) ([]HoldingResult, error) {
	boundaries := subPeriodBoundaries(intersection, req.RebalanceInterval)

	capitals := make([]float64, len(req.Holdings))
	for i, h := range req.Holdings {
		capitals[i] = req.InitialCapital * h.Weight
	}

	equities := make([][]domain.EquityPoint, len(req.Holdings))
	trades := make([][]domain.Trade, len(req.Holdings))
	totalInvested := make([]float64, len(req.Holdings))

	for periodIdx, bound := range boundaries {
		for i := range req.Holdings {
			slice := sliceSeries(restricted[i], bound.start, bound.end)
			if len(slice) < 1 {
				continue
			}
			if len(slice) == 1 {
				// A single-bar sub-period still needs an equity point;
				// treat it as a no-trade holding period.
				equities[i] = append(equities[i], domain.EquityPoint{Date: slice[0].Date, Value: capitals[i]})
				continue
			}
			result, err := backtest.RunStrategy(req.Strategy, slice, capitals[i], req.Params)
			if err != nil {
				return nil, wrapStrategyErr(err)
			}
			equities[i] = append(equities[i], result.Equity...)
			trades[i] = append(trades[i], result.Trades...)
			totalInvested[i] += result.TotalInvested
			capitals[i] = result.Equity[len(result.Equity)-1].Value
		}

		if periodIdx < len(boundaries)-1 {
			var pooled float64
			for _, c := range capitals {
				pooled += c
			}
			for i, h := range req.Holdings {
				capitals[i] = pooled * h.Weight
			}
		}
	}

	out := make([]HoldingResult, len(req.Holdings))
	for i, h := range req.Holdings {
		eq := equities[i]
		if len(eq) == 0 {
			eq = []domain.EquityPoint{{Date: intersection[0], Value: req.InitialCapital * h.Weight}}
		}
		metrics := backtest.ComputeMetrics(eq, trades[i], totalInvested[i])
		out[i] = HoldingResult{
			Symbol:           strings.ToUpper(h.Symbol),
			Weight:           h.Weight,
			AllocatedCapital: req.InitialCapital * h.Weight,
			TotalInvested:    totalInvested[i],
			FinalValue:       eq[len(eq)-1].Value,
			Equity:           eq,
			Trades:           trades[i],
			Metrics:          metrics,
		}
	}
	return out, nil
}

func wrapStrategyErr(err error) error {
	var minData *backtest.MinDataError
	if m, ok := err.(*backtest.MinDataError); ok {
		minData = m
		return fmt.Errorf("%w: %v", ErrSemantic, minData)
	}
	return err
}

type subPeriod struct {
	start, end time.Time
}

// subPeriodBoundaries splits the intersection into sub-periods at
// month-start or quarter-start boundaries, always anchored at the
// first intersection date (spec §4.6 "With rebalance").
func subPeriodBoundaries(dates []time.Time, interval RebalanceInterval) []subPeriod {
	if len(dates) == 0 {
		return nil
	}
	boundary := func(d time.Time) int {
		if interval == RebalanceQuarterly {
			return d.Year()*4 + (int(d.Month())-1)/3
		}
		return d.Year()*12 + int(d.Month()) - 1
	}

	var periods []subPeriod
	startIdx := 0
	currentBoundary := boundary(dates[0])
	for i := 1; i < len(dates); i++ {
		b := boundary(dates[i])
		if b != currentBoundary {
			periods = append(periods, subPeriod{start: dates[startIdx], end: dates[i-1]})
			startIdx = i
			currentBoundary = b
		}
	}
	periods = append(periods, subPeriod{start: dates[startIdx], end: dates[len(dates)-1]})
	return periods
}

func sliceSeries(series []backtest.PricePoint, from, to time.Time) []backtest.PricePoint {
	var out []backtest.PricePoint
	for _, p := range series {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	return out
}

// intersectDates returns the sorted strict intersection of dates across
// every holding's prepared series (spec §4.6 step 2).
func intersectDates(series [][]backtest.PricePoint) []time.Time {
	if len(series) == 0 {
		return nil
	}
	counts := make(map[time.Time]int)
	for _, s := range series {
		seen := make(map[time.Time]bool)
		for _, p := range s {
			if !seen[p.Date] {
				seen[p.Date] = true
				counts[p.Date]++
			}
		}
	}
	var out []time.Time
	for d, c := range counts {
		if c == len(series) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func restrictTo(series []backtest.PricePoint, dates []time.Time) []backtest.PricePoint {
	allowed := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		allowed[d] = true
	}
	out := make([]backtest.PricePoint, 0, len(dates))
	for _, p := range series {
		if allowed[p.Date] {
			out = append(out, p)
		}
	}
	return out
}

// sumEquity computes the pointwise sum of holding equity curves over
// the shared intersection dates (spec §4.6 "No rebalance" / testable
// property "portfolio_equity_curve = Σ holding_equity_curve").
func sumEquity(holdings []HoldingResult, dates []time.Time) []domain.EquityPoint {
	sums := make(map[time.Time]float64, len(dates))
	for _, hr := range holdings {
		for _, p := range hr.Equity {
			sums[p.Date] += p.Value
		}
	}
	out := make([]domain.EquityPoint, len(dates))
	for i, d := range dates {
		out[i] = domain.EquityPoint{Date: d, Value: sums[d]}
	}
	return out
}
