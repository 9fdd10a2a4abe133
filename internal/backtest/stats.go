package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// mean and stddev wrap gonum/stat the way
// trader-go/pkg/formulas/stats.go does, reused here for the two places
// the engine needs sample statistics: daily log-return volatility/Sharpe
// and the Bollinger Bands rolling mean/sample-stddev. gonum's unweighted
// stat.StdDev applies Bessel's correction (N-1), which is the "sample
// standard deviation" spec §4.5 item 5 calls for.
func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

func stddev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// logReturns computes ln(E[t]/E[t-1]) for consecutive equity values,
// dropping the leading point with no predecessor (spec §4.5 "Daily
// log-returns").
func logReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			continue
		}
		out = append(out, math.Log(values[i]/values[i-1]))
	}
	return out
}
