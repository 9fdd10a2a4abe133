package backtest

import (
	"context"
	"time"

	"github.com/nikolasl00/marketplai/internal/pricestore"
)

// StoreAdapter wraps a *pricestore.Store to satisfy PriceSource,
// translating domain.PriceRecord into the engine's PricePoint shape.
type StoreAdapter struct {
	Store *pricestore.Store
}

func (a StoreAdapter) FindRangeAdjClose(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	records, err := a.Store.FindRange(ctx, symbol, from, to, pricestore.RangeProjection{DateAndAdjCloseOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]PricePoint, len(records))
	for i, r := range records {
		out[i] = PricePoint{Date: r.Date, AdjClose: r.AdjClose}
	}
	return out, nil
}

func (a StoreAdapter) FindFirstNonEmptySecurityName(ctx context.Context, symbol string, from, to *time.Time) (string, bool) {
	return a.Store.FindFirstNonEmpty(ctx, symbol, from, to)
}
