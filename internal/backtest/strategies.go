package backtest

import (
	"fmt"

	"github.com/nikolasl00/marketplai/internal/domain"
)

// MinDataError reports that a strategy's window parameters need more
// bars than the prepared series has (spec §4.5 "Minimum data guards").
type MinDataError struct {
	Required, Available int
}

func (e *MinDataError) Error() string {
	return fmt.Sprintf("backtest: insufficient data: need %d bars, have %d", e.Required, e.Available)
}

// RunStrategy dispatches to the tagged strategy variant, exhaustively
// over domain.StrategyType (spec §9 "Dynamic strategy dispatch").
func RunStrategy(strategy domain.StrategyType, series []PricePoint, initialCapital float64, params domain.StrategyParams) (domain.StrategyResult, error) {
	switch strategy {
	case domain.StrategyBuyAndHold:
		return runBuyAndHold(series, initialCapital), nil
	case domain.StrategyDCA:
		return runDCA(series, params.DCA), nil
	case domain.StrategyMACrossover:
		return runMACrossover(series, initialCapital, params.MA)
	case domain.StrategyRSI:
		return runRSI(series, initialCapital, params.RSI)
	case domain.StrategyBollingerBand:
		return runBollinger(series, initialCapital, params.Bollinger)
	default:
		return domain.StrategyResult{}, fmt.Errorf("backtest: unknown strategy %q", strategy)
	}
}

// runBuyAndHold deploys all capital into shares at the first bar and
// holds (spec §4.5 item 1).
func runBuyAndHold(series []PricePoint, initialCapital float64) domain.StrategyResult {
	shares := initialCapital / series[0].AdjClose
	equity := make([]domain.EquityPoint, len(series))
	for i, p := range series {
		equity[i] = domain.EquityPoint{Date: p.Date, Value: shares * p.AdjClose}
	}
	trades := []domain.Trade{{
		Date:           series[0].Date,
		Action:         domain.ActionBuy,
		Price:          series[0].AdjClose,
		Shares:         shares,
		CashAfter:      0,
		PortfolioValue: equity[0].Value,
	}}
	return domain.StrategyResult{Equity: equity, Trades: trades, TotalInvested: initialCapital}
}

// runDCA injects a fixed amount on a fixed day-count cadence and buys
// immediately, with no cash float and no sell (spec §4.5 item 2).
func runDCA(series []PricePoint, params *domain.DCAParams) domain.StrategyResult {
	spacingDays := params.Interval.Days()

	var shares, totalInjected float64
	var lastInvest *PricePoint
	equity := make([]domain.EquityPoint, len(series))
	var trades []domain.Trade

	for i, p := range series {
		invest := lastInvest == nil
		if !invest {
			days := int(p.Date.Sub(lastInvest.Date).Hours() / 24)
			invest = days >= spacingDays
		}
		if invest {
			newShares := params.Amount / p.AdjClose
			shares += newShares
			totalInjected += params.Amount
			point := p
			lastInvest = &point
			trades = append(trades, domain.Trade{
				Date:           p.Date,
				Action:         domain.ActionBuy,
				Price:          p.AdjClose,
				Shares:         newShares,
				CashAfter:      0,
				PortfolioValue: shares * p.AdjClose,
			})
		}
		equity[i] = domain.EquityPoint{Date: p.Date, Value: shares * p.AdjClose}
	}

	return domain.StrategyResult{Equity: equity, Trades: trades, TotalInvested: totalInjected}
}

// runMACrossover trades golden/death crosses of a short vs. long simple
// moving average (spec §4.5 item 3).
func runMACrossover(series []PricePoint, initialCapital float64, params *domain.MAParams) (domain.StrategyResult, error) {
	if len(series) < params.LongWindow {
		return domain.StrategyResult{}, &MinDataError{Required: params.LongWindow, Available: len(series)}
	}

	prices := pricesOf(series)
	shortMA := sma(prices, params.ShortWindow)
	longMA := sma(prices, params.LongWindow)

	cash := initialCapital
	var shares float64
	var trades []domain.Trade
	equity := make([]domain.EquityPoint, len(series))

	var prevAbove *bool
	for i, p := range series {
		if !isDefined(shortMA[i]) || !isDefined(longMA[i]) {
			equity[i] = domain.EquityPoint{Date: p.Date, Value: cash + shares*p.AdjClose}
			continue
		}
		above := shortMA[i] > longMA[i]

		if prevAbove != nil {
			switch {
			case above && !*prevAbove && cash > 0:
				shares = cash / p.AdjClose
				cash = 0
				trades = append(trades, domain.Trade{
					Date: p.Date, Action: domain.ActionBuy, Price: p.AdjClose,
					Shares: shares, CashAfter: cash, PortfolioValue: shares * p.AdjClose,
				})
			case !above && *prevAbove && shares > 0:
				cash = shares * p.AdjClose
				trades = append(trades, domain.Trade{
					Date: p.Date, Action: domain.ActionSell, Price: p.AdjClose,
					Shares: shares, CashAfter: cash, PortfolioValue: cash,
				})
				shares = 0
			}
		}
		prevAbove = &above

		equity[i] = domain.EquityPoint{Date: p.Date, Value: cash + shares*p.AdjClose}
	}

	return domain.StrategyResult{Equity: equity, Trades: trades, TotalInvested: initialCapital}, nil
}

// runRSI trades Wilder-RSI mean reversion: buy when oversold and flat,
// sell when overbought and in-market (spec §4.5 item 4).
func runRSI(series []PricePoint, initialCapital float64, params *domain.RSIParams) (domain.StrategyResult, error) {
	minRequired := 3 * params.Period
	if len(series) < minRequired {
		return domain.StrategyResult{}, &MinDataError{Required: minRequired, Available: len(series)}
	}

	prices := pricesOf(series)
	rsi := wilderRSI(prices, params.Period)

	cash := initialCapital
	var shares float64
	inMarket := false
	var trades []domain.Trade
	equity := make([]domain.EquityPoint, len(series))

	for i, p := range series {
		if isDefined(rsi[i]) {
			switch {
			case !inMarket && rsi[i] < params.Oversold && cash > 0:
				shares = cash / p.AdjClose
				cash = 0
				inMarket = true
				trades = append(trades, domain.Trade{
					Date: p.Date, Action: domain.ActionBuy, Price: p.AdjClose,
					Shares: shares, CashAfter: cash, PortfolioValue: shares * p.AdjClose,
				})
			case inMarket && rsi[i] > params.Overbought && shares > 0:
				cash = shares * p.AdjClose
				trades = append(trades, domain.Trade{
					Date: p.Date, Action: domain.ActionSell, Price: p.AdjClose,
					Shares: shares, CashAfter: cash, PortfolioValue: cash,
				})
				shares = 0
				inMarket = false
			}
		}
		equity[i] = domain.EquityPoint{Date: p.Date, Value: cash + shares*p.AdjClose}
	}

	return domain.StrategyResult{Equity: equity, Trades: trades, TotalInvested: initialCapital}, nil
}

// runBollinger trades Bollinger Band mean reversion: buy below the
// lower band while flat, sell above the upper band while in-market
// (spec §4.5 item 5).
func runBollinger(series []PricePoint, initialCapital float64, params *domain.BollingerParams) (domain.StrategyResult, error) {
	minRequired := 2 * params.Window
	if len(series) < minRequired {
		return domain.StrategyResult{}, &MinDataError{Required: minRequired, Available: len(series)}
	}

	prices := pricesOf(series)
	means, stdevs := rollingMeanStdDev(prices, params.Window)

	cash := initialCapital
	var shares float64
	inMarket := false
	var trades []domain.Trade
	equity := make([]domain.EquityPoint, len(series))

	for i, p := range series {
		if isDefined(means[i]) && isDefined(stdevs[i]) {
			lower := means[i] - params.StdDev*stdevs[i]
			upper := means[i] + params.StdDev*stdevs[i]
			switch {
			case !inMarket && p.AdjClose < lower && cash > 0:
				shares = cash / p.AdjClose
				cash = 0
				inMarket = true
				trades = append(trades, domain.Trade{
					Date: p.Date, Action: domain.ActionBuy, Price: p.AdjClose,
					Shares: shares, CashAfter: cash, PortfolioValue: shares * p.AdjClose,
				})
			case inMarket && p.AdjClose > upper && shares > 0:
				cash = shares * p.AdjClose
				trades = append(trades, domain.Trade{
					Date: p.Date, Action: domain.ActionSell, Price: p.AdjClose,
					Shares: shares, CashAfter: cash, PortfolioValue: cash,
				})
				shares = 0
				inMarket = false
			}
		}
		equity[i] = domain.EquityPoint{Date: p.Date, Value: cash + shares*p.AdjClose}
	}

	return domain.StrategyResult{Equity: equity, Trades: trades, TotalInvested: initialCapital}, nil
}

func pricesOf(series []PricePoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.AdjClose
	}
	return out
}

func isDefined(v float64) bool {
	return v == v // false for NaN
}
