package backtest

import (
	"math"
	"time"

	"github.com/nikolasl00/marketplai/internal/domain"
)

// ComputeMetrics derives the standard risk/return summary from an
// equity series and trade log (spec §4.5 "Metrics"). v0 is the capital
// base for total_return (= total_invested: initial_capital for every
// strategy but DCA, where it is the sum injected).
func ComputeMetrics(equity []domain.EquityPoint, trades []domain.Trade, v0 float64) domain.Metrics {
	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Value
	}

	vf := values[len(values)-1]
	totalReturn := 0.0
	if v0 != 0 {
		totalReturn = (vf - v0) / v0
	}

	years := equity[len(equity)-1].Date.Sub(equity[0].Date).Hours() / 24 / 365.25
	cagr := 0.0
	if years > 0 && v0 > 0 {
		cagr = math.Pow(vf/v0, 1/years) - 1
	}

	returns := logReturns(values)
	volatility := stddev(returns) * math.Sqrt(252)
	sharpe := 0.0
	if sd := stddev(returns); sd > 1e-12 {
		sharpe = (mean(returns) / sd) * math.Sqrt(252)
	}

	maxDD, troughIdx := maxDrawdown(values)
	calmar := 0.0
	if math.Abs(maxDD) > 1e-9 {
		calmar = cagr / math.Abs(maxDD)
	}

	bestYear, worstYear := yearlyReturns(equity)
	recoveryDays := recoveryDaysFrom(equity, troughIdx)
	timeInMarket := timeInMarketFraction(equity, trades)
	winRate, profitFactor := tradePairMetrics(trades)

	return domain.Metrics{
		TotalReturn:  totalReturn,
		CAGR:         cagr,
		SharpeRatio:  sharpe,
		MaxDrawdown:  maxDD,
		Volatility:   volatility,
		CalmarRatio:  calmar,
		BestYear:     bestYear,
		WorstYear:    worstYear,
		RecoveryDays: recoveryDays,
		WinRate:      winRate,
		ProfitFactor: profitFactor,
		TimeInMarket: timeInMarket,
	}
}

// maxDrawdown returns min((E - cummax(E)) / cummax(E)) and the index of
// the trough at which that minimum occurs (spec §4.5, GLOSSARY
// "Drawdown").
func maxDrawdown(values []float64) (float64, int) {
	if len(values) == 0 {
		return 0, -1
	}
	peak := values[0]
	worst := 0.0
	worstIdx := 0
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < worst {
			worst = dd
			worstIdx = i
		}
	}
	return worst, worstIdx
}

// recoveryDaysFrom counts the days from the drawdown trough to the
// first later date where equity recovers to the peak value at the
// trough, or nil if it never does (spec §4.5 "recovery_days").
func recoveryDaysFrom(equity []domain.EquityPoint, troughIdx int) *int {
	if troughIdx < 0 || troughIdx >= len(equity) {
		return nil
	}
	peakAtTrough := peakUpTo(equity, troughIdx)
	for i := troughIdx + 1; i < len(equity); i++ {
		if equity[i].Value >= peakAtTrough {
			days := int(equity[i].Date.Sub(equity[troughIdx].Date).Hours() / 24)
			return &days
		}
	}
	return nil
}

func peakUpTo(equity []domain.EquityPoint, idx int) float64 {
	peak := equity[0].Value
	for i := 0; i <= idx; i++ {
		if equity[i].Value > peak {
			peak = equity[i].Value
		}
	}
	return peak
}

// yearlyReturns resamples equity to its last observation on or before
// each calendar year-end, then returns the max/min percent change
// between consecutive year-end points (spec §4.5 "best_year,
// worst_year"; spec §9 "calendar-year resampling"). Both are nil when
// fewer than two year-end points exist.
func yearlyReturns(equity []domain.EquityPoint) (*float64, *float64) {
	if len(equity) == 0 {
		return nil, nil
	}

	var yearEnds []float64
	currentYear := equity[0].Date.Year()
	var lastInYear float64
	haveValue := false

	flush := func() {
		if haveValue {
			yearEnds = append(yearEnds, lastInYear)
		}
	}

	for _, p := range equity {
		if p.Date.Year() != currentYear {
			flush()
			currentYear = p.Date.Year()
			haveValue = false
		}
		lastInYear = p.Value
		haveValue = true
	}
	flush()

	if len(yearEnds) < 2 {
		return nil, nil
	}

	best := math.Inf(-1)
	worst := math.Inf(1)
	for i := 1; i < len(yearEnds); i++ {
		if yearEnds[i-1] == 0 {
			continue
		}
		change := (yearEnds[i] - yearEnds[i-1]) / yearEnds[i-1]
		if change > best {
			best = change
		}
		if change < worst {
			worst = change
		}
	}
	if math.IsInf(best, 0) || math.IsInf(worst, 0) {
		return nil, nil
	}
	return &best, &worst
}

// timeInMarketFraction iterates equity dates, flipping an in-market
// flag true on each BUY date and false on each SELL date, within the
// same pass (spec §4.5 "time_in_market"; spec §9's documented,
// deliberately-ambiguous same-day BUY+SELL semantics: flip on BUY, then
// flip on SELL, within one iteration).
func timeInMarketFraction(equity []domain.EquityPoint, trades []domain.Trade) float64 {
	if len(equity) == 0 {
		return 0
	}
	buyDates := make(map[time.Time]bool)
	sellDates := make(map[time.Time]bool)
	anyBuy := false
	for _, t := range trades {
		day := dateOnly(t.Date)
		if t.Action == domain.ActionBuy {
			buyDates[day] = true
			anyBuy = true
		} else {
			sellDates[day] = true
		}
	}
	if !anyBuy {
		return 0
	}

	inMarket := false
	count := 0
	for _, p := range equity {
		day := dateOnly(p.Date)
		if buyDates[day] {
			inMarket = true
		}
		if sellDates[day] {
			inMarket = false
		}
		if inMarket {
			count++
		}
	}
	return float64(count) / float64(len(equity))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// tradePairMetrics pairs BUYs and SELLs by FIFO consumption and derives
// win_rate/profit_factor over closed pairs (spec §4.5 "win_rate,
// profit_factor").
func tradePairMetrics(trades []domain.Trade) (*float64, *float64) {
	type lot struct {
		price, shares float64
	}
	var queue []lot

	var wins, closedPairs int
	var grossProfit, grossLoss float64

	for _, t := range trades {
		if t.Action == domain.ActionBuy {
			queue = append(queue, lot{price: t.Price, shares: t.Shares})
			continue
		}
		if len(queue) == 0 {
			continue
		}
		head := queue[0]
		queue = queue[1:]

		shares := math.Min(t.Shares, head.shares)
		pnl := (t.Price - head.price) * shares
		closedPairs++
		if pnl > 0 {
			wins++
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
	}

	if closedPairs == 0 {
		return nil, nil
	}

	winRate := float64(wins) / float64(closedPairs)
	var profitFactor *float64
	if grossLoss > 1e-9 {
		pf := grossProfit / grossLoss
		profitFactor = &pf
	}
	return &winRate, profitFactor
}
