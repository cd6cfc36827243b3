package indicators

import "math"

// SMA over the last p points; the output is aligned to the input with NaNs for warm-up.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= p {
			sum -= x[i-p]
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(p)
	}
	return out
}

// EMA with smoothing 2/(p+1), started at x[0] and undefined (NaN) until p
// points have been seen. Same recursion as pandas ewm(span=p, adjust=False).
func EMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	k := 2.0 / float64(p+1)
	var ema float64
	for i := range x {
		if i == 0 {
			ema = x[0]
		} else {
			ema = (x[i]-ema)*k + ema
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = ema
	}
	return out
}
