package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikolasl00/marketplai/internal/domain"
)

func equitySeries(dates []string, values []float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(dates))
	for i := range dates {
		out[i] = domain.EquityPoint{Date: d(dates[i]), Value: values[i]}
	}
	return out
}

func TestMaxDrawdownSignedAndTroughIndex(t *testing.T) {
	values := []float64{100, 120, 90, 95, 130}
	dd, idx := maxDrawdown(values)
	want := (90.0 - 120.0) / 120.0
	assert.InDelta(t, want, dd, 1e-9)
	assert.Equal(t, 2, idx, "trough index")
}

func TestMaxDrawdownNeverNegativeStaysZero(t *testing.T) {
	dd, _ := maxDrawdown([]float64{100, 110, 120, 130})
	assert.Equal(t, 0.0, dd, "maxDrawdown(monotonic increase)")
}

func TestRecoveryDaysFromFindsFirstRecovery(t *testing.T) {
	equity := equitySeries(
		[]string{"2020-01-01", "2020-01-02", "2020-01-03", "2020-01-04", "2020-01-05"},
		[]float64{100, 80, 90, 100, 105},
	)
	_, troughIdx := maxDrawdown([]float64{100, 80, 90, 100, 105})
	got := recoveryDaysFrom(equity, troughIdx)
	require.NotNil(t, got, "expected a recovery day count")
	assert.Equal(t, 2, *got)
}

func TestRecoveryDaysFromNilWhenNeverRecovers(t *testing.T) {
	equity := equitySeries(
		[]string{"2020-01-01", "2020-01-02", "2020-01-03"},
		[]float64{100, 80, 85},
	)
	_, troughIdx := maxDrawdown([]float64{100, 80, 85})
	assert.Nil(t, recoveryDaysFrom(equity, troughIdx))
}

func TestYearlyReturnsNilWithFewerThanTwoYearsOfData(t *testing.T) {
	equity := equitySeries([]string{"2020-01-01", "2020-06-01", "2020-12-31"}, []float64{100, 110, 120})
	best, worst := yearlyReturns(equity)
	assert.Nil(t, best, "expected nil best year with a single calendar year of data")
	assert.Nil(t, worst, "expected nil worst year with a single calendar year of data")
}

func TestYearlyReturnsAcrossYearBoundaries(t *testing.T) {
	equity := equitySeries(
		[]string{"2019-12-31", "2020-12-31", "2021-12-31"},
		[]float64{100, 150, 120},
	)
	best, worst := yearlyReturns(equity)
	require.NotNil(t, best)
	require.NotNil(t, worst)
	assert.InDelta(t, 0.5, *best, 1e-9)
	assert.InDelta(t, -0.2, *worst, 1e-9)
}

func TestTimeInMarketFractionZeroWithNoTrades(t *testing.T) {
	equity := equitySeries([]string{"2020-01-01", "2020-01-02"}, []float64{100, 100})
	assert.Equal(t, 0.0, timeInMarketFraction(equity, nil), "time in market with no trades")
}

func TestTimeInMarketFractionBuyToSell(t *testing.T) {
	equity := equitySeries(
		[]string{"2020-01-01", "2020-01-02", "2020-01-03", "2020-01-04"},
		[]float64{100, 100, 100, 100},
	)
	trades := []domain.Trade{
		{Date: d("2020-01-02"), Action: domain.ActionBuy},
		{Date: d("2020-01-03"), Action: domain.ActionSell},
	}
	got := timeInMarketFraction(equity, trades)
	assert.InDelta(t, 1.0/4.0, got, 1e-9)
}

func TestTradePairMetricsFIFOWinAndLoss(t *testing.T) {
	trades := []domain.Trade{
		{Action: domain.ActionBuy, Price: 100, Shares: 10},
		{Action: domain.ActionSell, Price: 120, Shares: 10}, // win, pnl=200
		{Action: domain.ActionBuy, Price: 100, Shares: 10},
		{Action: domain.ActionSell, Price: 90, Shares: 10}, // loss, pnl=-100
	}
	winRate, profitFactor := tradePairMetrics(trades)
	require.NotNil(t, winRate)
	require.NotNil(t, profitFactor)
	assert.InDelta(t, 0.5, *winRate, 1e-9)
	assert.InDelta(t, 2.0, *profitFactor, 1e-9, "profit factor 200/100")
}

func TestTradePairMetricsNilWithoutClosedPairs(t *testing.T) {
	trades := []domain.Trade{{Action: domain.ActionBuy, Price: 100, Shares: 10}}
	winRate, profitFactor := tradePairMetrics(trades)
	assert.Nil(t, winRate)
	assert.Nil(t, profitFactor)
}

func TestTradePairMetricsNilProfitFactorWithoutLosses(t *testing.T) {
	trades := []domain.Trade{
		{Action: domain.ActionBuy, Price: 100, Shares: 10},
		{Action: domain.ActionSell, Price: 120, Shares: 10},
	}
	_, profitFactor := tradePairMetrics(trades)
	assert.Nil(t, profitFactor, "expected nil profit factor with zero gross loss")
}

func TestComputeMetricsBuyAndHoldFlatPriceHasZeroReturn(t *testing.T) {
	equity := equitySeries(
		[]string{"2020-01-01", "2020-06-01", "2020-12-31"},
		[]float64{10000, 10000, 10000},
	)
	metrics := ComputeMetrics(equity, nil, 10000)
	assert.Equal(t, 0.0, metrics.TotalReturn)
	assert.Equal(t, 0.0, metrics.MaxDrawdown)
	assert.Nil(t, metrics.WinRate, "expected nil win_rate with no trades")
}
