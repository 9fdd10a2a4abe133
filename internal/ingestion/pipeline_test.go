package ingestion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHeader(t *testing.T) {
	ok := []string{"Symbol", "Security Name", "Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}
	assert.NoError(t, validateHeader(ok))

	padded := []string{" Symbol ", "Security Name", "Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}
	assert.NoError(t, validateHeader(padded))

	wrongCount := []string{"Symbol", "Date"}
	assert.Error(t, validateHeader(wrongCount))

	wrongName := []string{"Ticker", "Security Name", "Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}
	assert.Error(t, validateHeader(wrongName))
}

func TestTransformRowValid(t *testing.T) {
	row := []string{"AAPL", "Apple Inc.", "2020-01-02", "74.06", "75.15", "73.80", "75.09", "73.06", "135480400"}
	rec, ok := transformRow(row, "import-1")
	require.True(t, ok)

	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "Apple Inc.", rec.SecurityName)
	assert.Equal(t, 75.09, rec.Close)
	assert.Equal(t, 73.06, rec.AdjClose)
	assert.Equal(t, int64(135480400), rec.Volume)
	assert.Equal(t, "import-1", rec.ImportID)
}

func TestTransformRowDropsUnparseableDate(t *testing.T) {
	row := []string{"AAPL", "Apple Inc.", "not-a-date", "74.06", "75.15", "73.80", "75.09", "73.06", "100"}
	_, ok := transformRow(row, "import-1")
	assert.False(t, ok)
}

func TestTransformRowDropsMissingClose(t *testing.T) {
	row := []string{"AAPL", "Apple Inc.", "2020-01-02", "74.06", "75.15", "73.80", "", "73.06", "100"}
	_, ok := transformRow(row, "import-1")
	assert.False(t, ok)
}

func TestTransformRowSentinelsMissingOHLOnly(t *testing.T) {
	row := []string{"AAPL", "Apple Inc.", "2020-01-02", "", "", "", "75.09", "73.06", "100"}
	rec, ok := transformRow(row, "import-1")
	require.True(t, ok)

	assert.Equal(t, floatSentinel, rec.Open, "unparseable open is stored as the sentinel, not zeroed")
	assert.Equal(t, floatSentinel, rec.High, "unparseable high is stored as the sentinel, not zeroed")
	assert.Equal(t, floatSentinel, rec.Low, "unparseable low is stored as the sentinel, not zeroed")
}

func TestTransformRowDefaultsMissingVolumeToZero(t *testing.T) {
	row := []string{"AAPL", "Apple Inc.", "2020-01-02", "74.06", "75.15", "73.80", "75.09", "73.06", "not-a-number"}
	rec, ok := transformRow(row, "import-1")
	require.True(t, ok)
	assert.Equal(t, int64(0), rec.Volume)
}

func TestParseFloatSentinelOnNaNAndInf(t *testing.T) {
	assert.Equal(t, floatSentinel, parseFloat("NaN"))
	assert.Equal(t, floatSentinel, parseFloat("Inf"))
	assert.Equal(t, floatSentinel, parseFloat("garbage"))
	assert.Equal(t, 3.14, parseFloat("3.14"))
	assert.False(t, math.IsNaN(floatSentinel), "floatSentinel must not itself be NaN (used as a sentinel, not a NaN check)")
}
