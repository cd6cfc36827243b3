package domain

import (
	"fmt"
	"time"
)

// PriceBar is one daily trading session for an instrument.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is the ordered bar history of one instrument.
// Simulation indexes bars by position; Date is kept for partitioning.
type PriceSeries struct {
	Symbol string
	Bars   []PriceBar
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Validate checks the series invariants: strictly increasing dates,
// positive prices and high >= low on every bar.
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: %s bar %d (%s) has non-positive price",
				ErrInvalidSeries, s.Symbol, i, b.Date.Format(time.DateOnly))
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: %s bar %d (%s) has high %.4f < low %.4f",
				ErrInvalidSeries, s.Symbol, i, b.Date.Format(time.DateOnly), b.High, b.Low)
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%w: %s bar %d (%s) is not after %s",
				ErrInvalidSeries, s.Symbol, i, b.Date.Format(time.DateOnly),
				s.Bars[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}
