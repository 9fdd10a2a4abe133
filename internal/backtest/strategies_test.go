package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikolasl00/marketplai/internal/domain"
)

func flatSeries(start time.Time, n int, price float64) []PricePoint {
	out := make([]PricePoint, n)
	for i := 0; i < n; i++ {
		out[i] = PricePoint{Date: start.AddDate(0, 0, i), AdjClose: price}
	}
	return out
}

func TestBuyAndHoldDoublingPrice(t *testing.T) {
	series := []PricePoint{
		{Date: d("2020-01-01"), AdjClose: 100},
		{Date: d("2020-01-02"), AdjClose: 150},
		{Date: d("2020-01-03"), AdjClose: 200},
	}
	result, err := RunStrategy(domain.StrategyBuyAndHold, series, 10000, domain.StrategyParams{})
	require.NoError(t, err)
	require.Len(t, result.Trades, 1, "expected a single BUY trade")
	assert.Equal(t, domain.ActionBuy, result.Trades[0].Action)

	finalValue := result.Equity[len(result.Equity)-1].Value
	assert.InDelta(t, 20000.0, finalValue, 1e-6, "price doubled")
	assert.Equal(t, 10000.0, result.TotalInvested)
}

func TestDCAMonthlyFlatPriceInjectsEveryInterval(t *testing.T) {
	series := flatSeries(d("2020-01-01"), 95, 100) // > 3 monthly (30-day) boundaries
	params := &domain.DCAParams{Interval: domain.DCAMonthly, Amount: 500}
	result := mustDCA(t, series, params)

	require.Len(t, result.Trades, 4, "day 0, 30, 60, 90")
	wantInvested := 500.0 * 4
	assert.Equal(t, wantInvested, result.TotalInvested)
	finalValue := result.Equity[len(result.Equity)-1].Value
	assert.InDelta(t, wantInvested, finalValue, 1e-6, "flat price means final equity should equal total invested")
}

func mustDCA(t *testing.T, series []PricePoint, params *domain.DCAParams) domain.StrategyResult {
	t.Helper()
	result, err := RunStrategy(domain.StrategyDCA, series, 0, domain.StrategyParams{DCA: params})
	require.NoError(t, err)
	return result
}

func TestMACrossoverGoldenCrossBuys(t *testing.T) {
	// A price path that starts flat (keeping both MAs tied), then ramps
	// hard upward so the short MA crosses above the long MA.
	n := 260
	series := make([]PricePoint, n)
	for i := 0; i < n; i++ {
		price := 100.0
		if i >= 200 {
			price = 100 + float64(i-200)*5
		}
		series[i] = PricePoint{Date: d("2020-01-01").AddDate(0, 0, i), AdjClose: price}
	}
	params := &domain.MAParams{ShortWindow: 10, LongWindow: 50}
	result, err := RunStrategy(domain.StrategyMACrossover, series, 10000, domain.StrategyParams{MA: params})
	require.NoError(t, err)

	foundBuy := false
	for _, tr := range result.Trades {
		if tr.Action == domain.ActionBuy {
			foundBuy = true
		}
	}
	assert.True(t, foundBuy, "expected at least one BUY trade on a golden cross")
}

func TestMACrossoverInsufficientDataError(t *testing.T) {
	series := flatSeries(d("2020-01-01"), 10, 100)
	params := &domain.MAParams{ShortWindow: 50, LongWindow: 200}
	_, err := RunStrategy(domain.StrategyMACrossover, series, 10000, domain.StrategyParams{MA: params})
	require.Error(t, err)

	var minData *MinDataError
	m, ok := err.(*MinDataError)
	if ok {
		minData = m
	}
	require.NotNil(t, minData, "error = %v, want *MinDataError", err)
}

func TestRSIBuysOnOversoldAndSellsOnOverbought(t *testing.T) {
	// A sharp decline (drives RSI low, triggers BUY) followed by a sharp
	// rally (drives RSI high, triggers SELL).
	n := 80
	series := make([]PricePoint, n)
	price := 200.0
	for i := 0; i < n; i++ {
		if i < 40 {
			price -= 2
		} else {
			price += 3
		}
		series[i] = PricePoint{Date: d("2020-01-01").AddDate(0, 0, i), AdjClose: price}
	}
	params := &domain.RSIParams{Period: 14, Oversold: 30, Overbought: 70}
	result, err := RunStrategy(domain.StrategyRSI, series, 10000, domain.StrategyParams{RSI: params})
	require.NoError(t, err)

	var sawBuy, sawSell bool
	for _, tr := range result.Trades {
		if tr.Action == domain.ActionBuy {
			sawBuy = true
		}
		if tr.Action == domain.ActionSell {
			sawSell = true
		}
	}
	assert.True(t, sawBuy, "expected a BUY after the oversold decline")
	assert.True(t, sawSell, "expected a SELL after the overbought rally")
}

func TestBollingerBandsInsufficientDataError(t *testing.T) {
	series := flatSeries(d("2020-01-01"), 10, 100)
	params := &domain.BollingerParams{Window: 20, StdDev: 2}
	_, err := RunStrategy(domain.StrategyBollingerBand, series, 10000, domain.StrategyParams{Bollinger: params})
	assert.Error(t, err, "expected MinDataError for a series shorter than 2x window")
}
