package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPrepareForwardFillsWeekendGaps(t *testing.T) {
	raw := []PricePoint{
		{Date: d("2020-01-01"), AdjClose: 100},
		{Date: d("2020-01-03"), AdjClose: 103},
	}
	out, err := Prepare(raw)
	require.NoError(t, err)
	require.Len(t, out, 3, "dense daily range")

	assert.Equal(t, d("2020-01-02"), out[1].Date)
	assert.Equal(t, 100.0, out[1].AdjClose, "forward-filled bar")
}

func TestPrepareDropsLeadingGapBeforeFirstValue(t *testing.T) {
	// Prepare's dense range always starts at the first known date, so
	// there is no "leading gap" to drop in practice; this asserts that
	// behavior explicitly.
	raw := []PricePoint{
		{Date: d("2020-01-05"), AdjClose: 50},
		{Date: d("2020-01-06"), AdjClose: 51},
	}
	out, err := Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, d("2020-01-05"), out[0].Date)
}

func TestPrepareDedupesSameDayKeepingFirst(t *testing.T) {
	raw := []PricePoint{
		{Date: d("2020-01-01"), AdjClose: 100},
		{Date: d("2020-01-01"), AdjClose: 999},
		{Date: d("2020-01-02"), AdjClose: 101},
	}
	out, err := Prepare(raw)
	require.NoError(t, err)
	assert.Equal(t, 100.0, out[0].AdjClose, "first occurrence kept")
}

func TestPrepareErrorsOnInsufficientData(t *testing.T) {
	_, err := Prepare(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Prepare([]PricePoint{{Date: d("2020-01-01"), AdjClose: 1}})
	assert.ErrorIs(t, err, ErrInsufficientData)
}
