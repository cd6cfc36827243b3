package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatSeries(n int) domain.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		bars[i] = domain.PriceBar{Date: start.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	}
	return domain.PriceSeries{Symbol: "FLAT.NS", Bars: bars}
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4}, 2)
	require.Len(t, out, 4)
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, out[1:])
}

func TestEMA_StartsAtFirstValue(t *testing.T) {
	// k = 0.5: 1, 1.5, 2.25, 3.125, 4.0625
	out := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, []float64{2.25, 3.125, 4.0625}, out[2:])

	short := EMA([]float64{1, 2}, 3)
	assert.True(t, math.IsNaN(short[0]) && math.IsNaN(short[1]))
}

func TestRSI(t *testing.T) {
	// alpha 0.5, first change counted as 0:
	// gains 0, .5, .25, .625 and losses 0, 0, .5, .25
	out := RSI([]float64{10, 11, 10, 11}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, 100.0, out[1])
	assert.InDelta(t, 100.0/3, out[2], 1e-9)
	assert.InDelta(t, 100-100/3.5, out[3], 1e-9)

	rising := RSI([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(rising[1]))
	assert.Equal(t, 100.0, rising[2])
	assert.Equal(t, 100.0, rising[4])

	flat := RSI([]float64{7, 7, 7, 7}, 2)
	assert.Equal(t, 100.0, flat[3])
}

func TestATR(t *testing.T) {
	bars := flatSeries(5).Bars
	bars[3].High, bars[3].Low = 110, 100 // gap above the previous close

	out := ATR(bars, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 2, out[1], 1e-12)
	assert.InDelta(t, 2, out[2], 1e-12)
	assert.InDelta(t, 6, out[3], 1e-12) // (2 + 10) / 2
	assert.InDelta(t, 4, out[4], 1e-12) // (6 + 2) / 2
}

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	bars := flatSeries(2).Bars
	bars[1].High, bars[1].Low = 96, 94 // gap below the previous close of 100
	assert.Equal(t, []float64{2, 6}, TrueRange(bars))
}

func TestAddFeatures_DropsWarmup(t *testing.T) {
	series := flatSeries(60)
	fs, err := NewEngine(Periods{}).AddFeatures(series)
	require.NoError(t, err)

	// the slow EMA is the last column to become defined, at index 49
	require.Len(t, fs.Bars, 11)
	assert.Equal(t, series.Bars[49].Date, fs.Bars[0].Date)
	assert.Equal(t, Columns, fs.Columns)
	for c := range fs.Columns {
		assert.Len(t, fs.Values[c], 11)
	}

	get := func(name string) []float64 {
		v, ok := fs.Column(name)
		require.True(t, ok, name)
		return v
	}
	assert.InDelta(t, 1, get(ColCloseEMA20Ratio)[0], 1e-12)
	assert.InDelta(t, 0, get(ColEMA20EMA50Diff)[0], 1e-12)
	assert.InDelta(t, 0.02, get(ColATRPct)[0], 1e-12)
	assert.InDelta(t, 100, get(ColRSI)[0], 1e-12)
	assert.InDelta(t, 1, get(ColVolRatio)[0], 1e-12)
}

func TestAddFeatures_DoesNotMutateInput(t *testing.T) {
	series := flatSeries(60)
	before := append([]domain.PriceBar(nil), series.Bars...)

	_, err := NewEngine(Periods{}).AddFeatures(series)
	require.NoError(t, err)
	assert.Equal(t, before, series.Bars)
}

func TestAddFeatures_ShortSeriesIsEmpty(t *testing.T) {
	fs, err := NewEngine(Periods{}).AddFeatures(flatSeries(30))
	require.NoError(t, err)
	assert.Empty(t, fs.Bars)
	assert.Equal(t, "FLAT.NS", fs.Symbol)
}

func TestAddFeatures_ZeroVolumeRowsAreDropped(t *testing.T) {
	series := flatSeries(60)
	for i := 50; i < 60; i++ {
		series.Bars[i].Volume = 0
	}
	// rolling mean stays positive until the whole window is zero
	fs, err := NewEngine(Periods{}).AddFeatures(series)
	require.NoError(t, err)
	assert.Len(t, fs.Bars, 10)
	assert.Equal(t, series.Bars[58].Date, fs.Bars[9].Date)

	rows, err := fs.Matrix([]string{ColVolRatio})
	require.NoError(t, err)
	assert.InDelta(t, 1, rows[0][0], 1e-12)
	assert.Equal(t, 0.0, rows[1][0])
}

