package backtest

import (
	"fmt"
	"time"
)

// PricePoint is one (date, adj_close) sample, the engine's only input
// shape once price preparation is done (spec §4.5 "Price preparation").
type PricePoint struct {
	Date     time.Time
	AdjClose float64
}

// ErrInsufficientData is returned by Prepare when fewer than two daily
// bars survive preparation.
var ErrInsufficientData = fmt.Errorf("backtest: fewer than 2 daily bars available")

// Prepare turns raw PriceRecords' (date, adj_close) pairs into the
// dense, forward-filled daily series every strategy operates on (spec
// §4.5 steps 1-3): dedupe same-day records (keep first), reindex onto
// the calendar-day range, forward-fill, then drop any leading gap.
func Prepare(raw []PricePoint) ([]PricePoint, error) {
	deduped := dedupeByDate(raw)
	if len(deduped) < 2 {
		return nil, ErrInsufficientData
	}

	first := deduped[0].Date
	last := deduped[len(deduped)-1].Date

	byDate := make(map[time.Time]float64, len(deduped))
	for _, p := range deduped {
		byDate[p.Date] = p.AdjClose
	}

	out := make([]PricePoint, 0, int(last.Sub(first).Hours()/24)+1)
	var lastVal float64
	haveValue := false
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if v, ok := byDate[d]; ok {
			lastVal = v
			haveValue = true
		}
		if !haveValue {
			continue // drop leading gap before the first known value
		}
		out = append(out, PricePoint{Date: d, AdjClose: lastVal})
	}

	if len(out) < 2 {
		return nil, ErrInsufficientData
	}
	return out, nil
}

// dedupeByDate keeps the first record seen for each date, in ascending
// date order, matching pandas' drop_duplicates(subset="date").
func dedupeByDate(raw []PricePoint) []PricePoint {
	seen := make(map[time.Time]bool, len(raw))
	out := make([]PricePoint, 0, len(raw))
	for _, p := range raw {
		day := time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, PricePoint{Date: day, AdjClose: p.AdjClose})
	}
	return out
}
