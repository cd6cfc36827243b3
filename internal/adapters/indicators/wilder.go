package indicators

import (
	"math"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// RSI computes the relative strength index of closes with Wilder smoothing
// (alpha 1/p) of gains and losses. Smoothing starts at the first bar, whose
// change counts as zero, and the first defined value is at index p-1.
// A window without losses reads 100, flat windows included.
func RSI(closes []float64, p int) []float64 {
	out := nanSlice(len(closes))
	if p <= 0 {
		return out
	}

	alpha := 1 / float64(p)
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		gain, loss := change(closes[i] - closes[i-1])
		avgGain += alpha * (gain - avgGain)
		avgLoss += alpha * (loss - avgLoss)
		if i >= p-1 {
			out[i] = rsiValue(avgGain, avgLoss)
		}
	}
	if p == 1 && len(closes) > 0 {
		out[0] = rsiValue(0, 0)
	}
	return out
}

func change(d float64) (gain, loss float64) {
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(bars []domain.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR is the Wilder-smoothed average true range, seeded with the mean of the
// first p true ranges at index p-1.
func ATR(bars []domain.PriceBar, p int) []float64 {
	out := nanSlice(len(bars))
	if p <= 0 || len(bars) < p {
		return out
	}
	tr := TrueRange(bars)

	var seed float64
	for i := 0; i < p; i++ {
		seed += tr[i]
	}
	out[p-1] = seed / float64(p)
	for i := p; i < len(bars); i++ {
		out[i] = (out[i-1]*float64(p-1) + tr[i]) / float64(p)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
