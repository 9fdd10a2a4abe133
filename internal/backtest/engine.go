// Package backtest is the Backtest Engine (BE) — price preparation,
// the five strategies, and the metrics suite (spec §4.5).
//
// Strategy/metric semantics are grounded on
// original_source/app/backend/services/backtest_engine.py, authoritative
// per spec §9's instruction to treat its pandas operations as
// algorithmic contracts. The Mean/StdDev plumbing follows
// trader-go/pkg/formulas/stats.go's wrapping of gonum/stat; Calmar and
// the FIFO profit-factor pairing have no teacher equivalent and are
// derived directly from spec §4.5.
package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikolasl00/marketplai/internal/domain"
)

// PriceSource is the price-store surface the engine needs.
type PriceSource interface {
	FindRangeAdjClose(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
	FindFirstNonEmptySecurityName(ctx context.Context, symbol string, from, to *time.Time) (string, bool)
}

// Request is one backtest request (spec §6 "POST /api/backtest").
type Request struct {
	Symbol         string
	DateFrom       time.Time
	DateTo         time.Time
	InitialCapital float64
	Strategy       domain.StrategyType
	Params         domain.StrategyParams
}

// Run executes the full contract of spec §4.5 for one request.
func Run(ctx context.Context, source PriceSource, req Request) (*domain.BacktestResult, error) {
	if !req.DateFrom.Before(req.DateTo) {
		return nil, fmt.Errorf("%w: date_from must be before date_to", ErrSemantic)
	}

	symbol := strings.ToUpper(req.Symbol)
	raw, err := source.FindRangeAdjClose(ctx, symbol, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("backtest: fetch prices: %w", err)
	}

	series, err := Prepare(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSemantic, err)
	}

	result, err := RunStrategy(req.Strategy, series, req.InitialCapital, req.Params)
	if err != nil {
		var minData *MinDataError
		if asMinData(err, &minData) {
			return nil, fmt.Errorf("%w: %v", ErrSemantic, err)
		}
		return nil, err
	}

	metrics := ComputeMetrics(result.Equity, result.Trades, result.TotalInvested)

	var securityName *string
	if name, ok := source.FindFirstNonEmptySecurityName(ctx, symbol, &req.DateFrom, &req.DateTo); ok {
		securityName = &name
	}

	return &domain.BacktestResult{
		Symbol:         symbol,
		SecurityName:   securityName,
		Strategy:       req.Strategy,
		DateFrom:       series[0].Date,
		DateTo:         series[len(series)-1].Date,
		InitialCapital: req.InitialCapital,
		TotalInvested:  result.TotalInvested,
		FinalValue:     result.Equity[len(result.Equity)-1].Value,
		Equity:         result.Equity,
		Metrics:        metrics,
		Trades:         result.Trades,
	}, nil
}

// ErrSemantic tags a 422-disposition failure (spec §7): insufficient
// data, bad date range, or a strategy's minimum-data guard.
var ErrSemantic = fmt.Errorf("backtest: semantic error")

func asMinData(err error, target **MinDataError) bool {
	m, ok := err.(*MinDataError)
	if ok {
		*target = m
	}
	return ok
}
