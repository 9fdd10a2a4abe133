package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMAUndefinedBeforeWindowFills(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := sma(values, 3)
	for i := 0; i < 2; i++ {
		assert.True(t, math.IsNaN(out[i]), "sma[%d] = %v, want NaN", i, out[i])
	}
	assert.Equal(t, 2.0, out[2], "mean of 1,2,3")
	assert.Equal(t, 4.0, out[4], "mean of 3,4,5")
}

func TestRollingMeanStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	means, stdevs := rollingMeanStdDev(values, 8)
	require.True(t, math.IsNaN(means[6]), "means[6] should be NaN before window fills")

	assert.InDelta(t, 5.0, means[7], 1e-9)
	assert.InDelta(t, 2.138089935299395, stdevs[7], 1e-6, "sample stddev with Bessel's correction")
}

func TestWilderRSIAllGainsApproaches100(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	rsi := wilderRSI(values, 14)
	assert.True(t, math.IsNaN(rsi[13]), "undefined before period+1 bars")
	assert.Greater(t, rsi[14], 99.0, "close to 100 for an all-gains series")
	assert.Greater(t, rsi[29], 99.0, "close to 100 for an all-gains series")
}

func TestWilderRSIAllLossesApproaches0(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 200 - float64(i)
	}
	rsi := wilderRSI(values, 14)
	assert.Less(t, rsi[29], 1.0, "close to 0 for an all-losses series")
}

func TestRSIFromAveragesFlatSeriesIsFifty(t *testing.T) {
	assert.Equal(t, 50.0, rsiFromAverages(0, 0))
}
