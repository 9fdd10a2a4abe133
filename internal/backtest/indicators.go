package backtest

import "math"

// Per spec §9 "Pandas time-series operations are algorithmic
// contracts": simple moving average, Wilder's EMA, and rolling
// mean/stddev are hand-written against plain []float64 here rather than
// delegated to a library — the teacher's own pkg/formulas/rsi.go calls
// github.com/markcheno/go-talib for this, which this spec explicitly
// forbids (see DESIGN.md).

// sma returns the simple moving average of values over window,
// undefined (math.NaN) for indices before the window fills.
func sma(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingMeanStdDev returns the rolling sample mean and sample standard
// deviation of values over window (Bollinger Bands' μ and σ, spec §4.5
// item 5), undefined before the window fills.
func rollingMeanStdDev(values []float64, window int) (means, stdevs []float64) {
	means = make([]float64, len(values))
	stdevs = make([]float64, len(values))
	for i := range values {
		if i < window-1 {
			means[i] = math.NaN()
			stdevs[i] = math.NaN()
			continue
		}
		windowSlice := values[i-window+1 : i+1]
		means[i] = mean(windowSlice)
		stdevs[i] = stddev(windowSlice)
	}
	return means, stdevs
}

// wilderRSI computes RSI using Wilder's smoothing: average gain/loss
// updated as avg[t] = avg[t-1]*(1-α) + value[t]*α with α = 1/period,
// over per-day gains and losses of the diff series (spec §4.5 item 4,
// §9 "Wilder's EMA"). Index 0 and the first `period` entries are
// undefined (math.NaN); RSI first becomes defined at index `period`
// (the diff series has one fewer element than values, and Wilder's
// average itself needs `period` samples to seed).
func wilderRSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) < period+1 {
		return out
	}

	alpha := 1.0 / float64(period)

	gains := make([]float64, len(values)-1)
	losses := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		if diff > 0 {
			gains[i-1] = diff
		} else {
			losses[i-1] = -diff
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period; i < len(gains); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
		out[i+1] = rsiFromAverages(avgGain, avgLoss)
	}

	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
