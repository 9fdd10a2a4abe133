package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikolasl00/marketplai/internal/backtest"
	"github.com/nikolasl00/marketplai/internal/domain"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeSource struct {
	series map[string][]backtest.PricePoint
}

func (f fakeSource) FindRangeAdjClose(ctx context.Context, symbol string, from, to time.Time) ([]backtest.PricePoint, error) {
	return f.series[symbol], nil
}

func (f fakeSource) FindFirstNonEmptySecurityName(ctx context.Context, symbol string, from, to *time.Time) (string, bool) {
	return "", false
}

func flat(start time.Time, n int, price float64) []backtest.PricePoint {
	out := make([]backtest.PricePoint, n)
	for i := 0; i < n; i++ {
		out[i] = backtest.PricePoint{Date: start.AddDate(0, 0, i), AdjClose: price}
	}
	return out
}

func TestRunRequiresRebalanceIntervalWhenRebalancing(t *testing.T) {
	source := fakeSource{series: map[string][]backtest.PricePoint{}}
	req := Request{
		Holdings:       []Holding{{Symbol: "AAPL", Weight: 0.5}, {Symbol: "MSFT", Weight: 0.5}},
		DateFrom:       d("2020-01-01"),
		DateTo:         d("2020-02-01"),
		InitialCapital: 1000,
		Strategy:       domain.StrategyBuyAndHold,
		Rebalance:      true,
	}
	_, err := Run(context.Background(), source, req)
	assert.ErrorIs(t, err, ErrSemantic)
}

func TestRunNoRebalancePointwiseSumsEquity(t *testing.T) {
	start := d("2020-01-01")
	source := fakeSource{series: map[string][]backtest.PricePoint{
		"AAPL": flat(start, 10, 100),
		"MSFT": flat(start, 10, 200),
	}}
	req := Request{
		Holdings:       []Holding{{Symbol: "AAPL", Weight: 0.5}, {Symbol: "MSFT", Weight: 0.5}},
		DateFrom:       start,
		DateTo:         start.AddDate(0, 0, 9),
		InitialCapital: 10000,
		Strategy:       domain.StrategyBuyAndHold,
	}
	result, err := Run(context.Background(), source, req)
	require.NoError(t, err)
	require.Len(t, result.Holdings, 2)

	for i, date := range result.Equity {
		wantSum := result.Holdings[0].Equity[i].Value + result.Holdings[1].Equity[i].Value
		assert.Equal(t, wantSum, date.Value, "portfolio equity[%d] should be pointwise sum", i)
	}
	assert.Equal(t, 10000.0, result.TotalInvested)
	assert.Nil(t, result.Metrics.WinRate, "expected nil win_rate for portfolio metrics (empty trade log)")
}

func TestRunRequiresAtLeastTwoIntersectionDates(t *testing.T) {
	source := fakeSource{series: map[string][]backtest.PricePoint{
		"AAPL": flat(d("2020-01-01"), 2, 100),
		"MSFT": flat(d("2020-01-02"), 2, 200),
	}}
	req := Request{
		Holdings:       []Holding{{Symbol: "AAPL", Weight: 0.5}, {Symbol: "MSFT", Weight: 0.5}},
		DateFrom:       d("2020-01-01"),
		DateTo:         d("2020-01-03"),
		InitialCapital: 1000,
		Strategy:       domain.StrategyBuyAndHold,
	}
	_, err := Run(context.Background(), source, req)
	assert.ErrorIs(t, err, ErrSemantic)
}

func TestSubPeriodBoundariesMonthly(t *testing.T) {
	dates := []time.Time{
		d("2020-01-15"), d("2020-01-31"), d("2020-02-01"), d("2020-02-15"), d("2020-03-01"),
	}
	periods := subPeriodBoundaries(dates, RebalanceMonthly)
	require.Len(t, periods, 3)

	assert.True(t, periods[0].end.Equal(d("2020-01-31")), "first period end = %v, want 2020-01-31", periods[0].end)
	assert.True(t, periods[1].start.Equal(d("2020-02-01")) && periods[1].end.Equal(d("2020-02-15")), "second period = %+v", periods[1])
}

func TestIntersectDatesStrictAcrossHoldings(t *testing.T) {
	series := [][]backtest.PricePoint{
		flat(d("2020-01-01"), 5, 100),
		flat(d("2020-01-03"), 5, 200),
	}
	dates := intersectDates(series)
	require.Len(t, dates, 3, "intersection")
	assert.True(t, dates[0].Equal(d("2020-01-03")) && dates[2].Equal(d("2020-01-05")), "intersection bounds = %v..%v, want 2020-01-03..2020-01-05", dates[0], dates[2])
}
