package server

import (
	"fmt"
	"time"

	"github.com/nikolasl00/marketplai/internal/domain"
)

const wireDateFormat = "2006-01-02"

// The wire-format structs below translate domain types into the exact
// JSON shapes of spec §6 / original_source's schemas/backtest.py: dates
// are YYYY-MM-DD strings, not Go time.Time RFC3339.

type equityPointDTO struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type tradeDTO struct {
	Date           string  `json:"date"`
	Action         string  `json:"action"`
	Price          float64 `json:"price"`
	Shares         float64 `json:"shares"`
	CashAfter      float64 `json:"cash_after"`
	PortfolioValue float64 `json:"portfolio_value"`
}

type metricsDTO struct {
	TotalReturn  float64  `json:"total_return"`
	CAGR         float64  `json:"cagr"`
	SharpeRatio  float64  `json:"sharpe_ratio"`
	MaxDrawdown  float64  `json:"max_drawdown"`
	Volatility   float64  `json:"volatility"`
	CalmarRatio  float64  `json:"calmar_ratio"`
	BestYear     *float64 `json:"best_year"`
	WorstYear    *float64 `json:"worst_year"`
	RecoveryDays *int     `json:"recovery_days"`
	WinRate      *float64 `json:"win_rate"`
	ProfitFactor *float64 `json:"profit_factor"`
	TimeInMarket float64  `json:"time_in_market"`
}

type backtestResponseDTO struct {
	Symbol         string           `json:"symbol"`
	SecurityName   *string          `json:"security_name"`
	Strategy       string           `json:"strategy"`
	DateFrom       string           `json:"date_from"`
	DateTo         string           `json:"date_to"`
	InitialCapital float64          `json:"initial_capital"`
	TotalInvested  float64          `json:"total_invested"`
	FinalValue     float64          `json:"final_value"`
	EquityCurve    []equityPointDTO `json:"equity_curve"`
	Metrics        metricsDTO       `json:"metrics"`
	Trades         []tradeDTO       `json:"trades"`
}

func toEquityDTO(points []domain.EquityPoint) []equityPointDTO {
	out := make([]equityPointDTO, len(points))
	for i, p := range points {
		out[i] = equityPointDTO{Date: p.Date.Format(wireDateFormat), Value: round2(p.Value)}
	}
	return out
}

func toTradeDTO(trades []domain.Trade) []tradeDTO {
	out := make([]tradeDTO, len(trades))
	for i, t := range trades {
		out[i] = tradeDTO{
			Date:           t.Date.Format(wireDateFormat),
			Action:         string(t.Action),
			Price:          t.Price,
			Shares:         t.Shares,
			CashAfter:      t.CashAfter,
			PortfolioValue: t.PortfolioValue,
		}
	}
	return out
}

func toMetricsDTO(m domain.Metrics) metricsDTO {
	return metricsDTO{
		TotalReturn:  m.TotalReturn,
		CAGR:         m.CAGR,
		SharpeRatio:  m.SharpeRatio,
		MaxDrawdown:  m.MaxDrawdown,
		Volatility:   m.Volatility,
		CalmarRatio:  m.CalmarRatio,
		BestYear:     m.BestYear,
		WorstYear:    m.WorstYear,
		RecoveryDays: m.RecoveryDays,
		WinRate:      m.WinRate,
		ProfitFactor: m.ProfitFactor,
		TimeInMarket: m.TimeInMarket,
	}
}

func toBacktestResponseDTO(r *domain.BacktestResult) backtestResponseDTO {
	return backtestResponseDTO{
		Symbol:         r.Symbol,
		SecurityName:   r.SecurityName,
		Strategy:       string(r.Strategy),
		DateFrom:       r.DateFrom.Format(wireDateFormat),
		DateTo:         r.DateTo.Format(wireDateFormat),
		InitialCapital: r.InitialCapital,
		TotalInvested:  round2(r.TotalInvested),
		FinalValue:     round2(r.FinalValue),
		EquityCurve:    toEquityDTO(r.Equity),
		Metrics:        toMetricsDTO(r.Metrics),
		Trades:         toTradeDTO(r.Trades),
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// strategyRequestDTO is the request payload shape for a single strategy
// run (spec §6 "POST /api/backtest"; original_source's BacktestRequest).
type strategyRequestDTO struct {
	Symbol         string         `json:"symbol"`
	DateFrom       string         `json:"date_from"`
	DateTo         string         `json:"date_to"`
	InitialCapital float64        `json:"initial_capital"`
	Strategy       string         `json:"strategy"`
	StrategyParams map[string]any `json:"strategy_params"`
}

func parseStrategyParams(strategy string, raw map[string]any) (domain.StrategyParams, error) {
	var params domain.StrategyParams
	switch domain.StrategyType(strategy) {
	case domain.StrategyBuyAndHold:
		// No parameters.
	case domain.StrategyDCA:
		p := &domain.DCAParams{Interval: domain.DCAMonthly, Amount: 0}
		if v, ok := raw["interval"].(string); ok {
			p.Interval = domain.DCAInterval(v)
		}
		if v, ok := raw["amount"].(float64); ok {
			p.Amount = v
		}
		if p.Amount <= 0 {
			return params, fmt.Errorf("dca requires amount > 0")
		}
		params.DCA = p
	case domain.StrategyMACrossover:
		p := &domain.MAParams{ShortWindow: 50, LongWindow: 200}
		if v, ok := raw["short_window"].(float64); ok {
			p.ShortWindow = int(v)
		}
		if v, ok := raw["long_window"].(float64); ok {
			p.LongWindow = int(v)
		}
		if p.ShortWindow >= p.LongWindow {
			return params, fmt.Errorf("short_window must be less than long_window")
		}
		params.MA = p
	case domain.StrategyRSI:
		p := &domain.RSIParams{Period: 14, Oversold: 30, Overbought: 70}
		if v, ok := raw["rsi_period"].(float64); ok {
			p.Period = int(v)
		}
		if v, ok := raw["oversold"].(float64); ok {
			p.Oversold = v
		}
		if v, ok := raw["overbought"].(float64); ok {
			p.Overbought = v
		}
		if p.Oversold >= p.Overbought {
			return params, fmt.Errorf("oversold must be less than overbought")
		}
		params.RSI = p
	case domain.StrategyBollingerBand:
		p := &domain.BollingerParams{Window: 20, StdDev: 2.0}
		if v, ok := raw["bb_window"].(float64); ok {
			p.Window = int(v)
		}
		if v, ok := raw["bb_std"].(float64); ok {
			p.StdDev = v
		}
		params.Bollinger = p
	default:
		return params, fmt.Errorf("unknown strategy %q", strategy)
	}
	return params, nil
}

func parseWireDate(s string) (time.Time, error) {
	return time.Parse(wireDateFormat, s)
}

// strategyConfigDTO is one entry in a compare request (original_source's
// StrategyConfig).
type strategyConfigDTO struct {
	Strategy       string         `json:"strategy"`
	StrategyParams map[string]any `json:"strategy_params"`
}

type compareRequestDTO struct {
	Symbol         string              `json:"symbol"`
	DateFrom       string              `json:"date_from"`
	DateTo         string              `json:"date_to"`
	InitialCapital float64             `json:"initial_capital"`
	Strategies     []strategyConfigDTO `json:"strategies"`
}

type compareResponseDTO struct {
	Symbol         string                `json:"symbol"`
	SecurityName   *string               `json:"security_name"`
	DateFrom       string                `json:"date_from"`
	DateTo         string                `json:"date_to"`
	InitialCapital float64               `json:"initial_capital"`
	Results        []backtestResponseDTO `json:"results"`
}

type portfolioHoldingDTO struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

type portfolioRequestDTO struct {
	Holdings          []portfolioHoldingDTO `json:"holdings"`
	DateFrom          string                `json:"date_from"`
	DateTo            string                `json:"date_to"`
	InitialCapital    float64               `json:"initial_capital"`
	Strategy          string                `json:"strategy"`
	StrategyParams    map[string]any        `json:"strategy_params"`
	Rebalance         bool                  `json:"rebalance"`
	RebalanceInterval string                `json:"rebalance_interval"`
}

type portfolioHoldingResultDTO struct {
	Symbol           string           `json:"symbol"`
	SecurityName     *string          `json:"security_name"`
	Weight           float64          `json:"weight"`
	AllocatedCapital float64          `json:"allocated_capital"`
	FinalValue       float64          `json:"final_value"`
	TotalInvested    float64          `json:"total_invested"`
	EquityCurve      []equityPointDTO `json:"equity_curve"`
	Metrics          metricsDTO       `json:"metrics"`
}

type portfolioResponseDTO struct {
	DateFrom              string                      `json:"date_from"`
	DateTo                string                      `json:"date_to"`
	InitialCapital        float64                     `json:"initial_capital"`
	Strategy              string                      `json:"strategy"`
	Rebalance             bool                        `json:"rebalance"`
	RebalanceInterval     *string                     `json:"rebalance_interval"`
	PortfolioEquityCurve  []equityPointDTO            `json:"portfolio_equity_curve"`
	PortfolioMetrics      metricsDTO                  `json:"portfolio_metrics"`
	PortfolioFinalValue   float64                     `json:"portfolio_final_value"`
	PortfolioTotalInvested float64                    `json:"portfolio_total_invested"`
	Holdings              []portfolioHoldingResultDTO `json:"holdings"`
}

type dateRangeResponseDTO struct {
	Symbol     string `json:"symbol"`
	MinDate    string `json:"min_date"`
	MaxDate    string `json:"max_date"`
	DataPoints int64  `json:"data_points"`
}
