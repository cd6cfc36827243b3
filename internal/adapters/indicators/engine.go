package indicators

import (
	"log/slog"
	"math"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Column names produced by Engine.
const (
	ColEMA20           = "ema20"
	ColEMA50           = "ema50"
	ColATR             = "atr"
	ColRSI             = "rsi"
	ColCloseEMA20Ratio = "close_ema20_ratio"
	ColEMA20EMA50Diff  = "ema20_ema50_diff"
	ColATRPct          = "atr_pct"
	ColVolRatio        = "vol_ratio"
)

// Columns lists every column of a FeatureSeries built by Engine, in order.
var Columns = []string{
	ColEMA20, ColEMA50, ColATR, ColRSI,
	ColCloseEMA20Ratio, ColEMA20EMA50Diff, ColATRPct, ColVolRatio,
}

// Periods configures the indicator windows.
type Periods struct {
	FastEMA int
	SlowEMA int
	ATR     int
	RSI     int
	Volume  int
}

// DefaultPeriods are the windows the model is trained with.
var DefaultPeriods = Periods{FastEMA: 20, SlowEMA: 50, ATR: 14, RSI: 14, Volume: 10}

// Engine computes the trend, volatility, momentum and volume features of a series.
// It implements ports.FeatureEngine.
type Engine struct {
	periods Periods
}

// NewEngine creates an Engine. Zero periods fall back to DefaultPeriods.
func NewEngine(p Periods) *Engine {
	if p.FastEMA <= 0 {
		p.FastEMA = DefaultPeriods.FastEMA
	}
	if p.SlowEMA <= 0 {
		p.SlowEMA = DefaultPeriods.SlowEMA
	}
	if p.ATR <= 0 {
		p.ATR = DefaultPeriods.ATR
	}
	if p.RSI <= 0 {
		p.RSI = DefaultPeriods.RSI
	}
	if p.Volume <= 0 {
		p.Volume = DefaultPeriods.Volume
	}
	return &Engine{periods: p}
}

// AddFeatures returns the series with every feature column, dropping the bars
// on which any column is still undefined. The input is not modified.
func (e *Engine) AddFeatures(series domain.PriceSeries) (domain.FeatureSeries, error) {
	n := series.Len()
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range series.Bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	ema20 := EMA(closes, e.periods.FastEMA)
	ema50 := EMA(closes, e.periods.SlowEMA)
	atr := ATR(series.Bars, e.periods.ATR)
	rsi := RSI(closes, e.periods.RSI)
	volMean := SMA(volumes, e.periods.Volume)

	full := make([][]float64, len(Columns))
	for c := range full {
		full[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		full[0][i] = ema20[i]
		full[1][i] = ema50[i]
		full[2][i] = atr[i]
		full[3][i] = rsi[i]
		full[4][i] = closes[i] / ema20[i]
		full[5][i] = (ema20[i] - ema50[i]) / ema50[i]
		full[6][i] = atr[i] / closes[i]
		full[7][i] = ratio(volumes[i], volMean[i])
	}

	out := domain.FeatureSeries{
		Symbol:  series.Symbol,
		Columns: append([]string(nil), Columns...),
		Values:  make([][]float64, len(Columns)),
	}
	for i := 0; i < n; i++ {
		if !defined(full, i) {
			continue
		}
		out.Bars = append(out.Bars, series.Bars[i])
		for c := range full {
			out.Values[c] = append(out.Values[c], full[c][i])
		}
	}
	for c := range out.Values {
		if out.Values[c] == nil {
			out.Values[c] = []float64{}
		}
	}
	if out.Bars == nil {
		out.Bars = []domain.PriceBar{}
	}

	slog.Debug("features added",
		"symbol", series.Symbol,
		"bars", n,
		"dropped", n-len(out.Bars),
	)
	return out, nil
}

// ratio is NaN when the mean volume is zero or undefined.
func ratio(v, mean float64) float64 {
	if mean == 0 || math.IsNaN(mean) {
		return math.NaN()
	}
	return v / mean
}

func defined(cols [][]float64, i int) bool {
	for _, c := range cols {
		if math.IsNaN(c[i]) || math.IsInf(c[i], 0) {
			return false
		}
	}
	return true
}
