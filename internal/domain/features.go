package domain

import (
	"fmt"
	"time"
)

// FeatureSeries is a price series augmented with named numeric columns.
// Values[c][i] is column Columns[c] at Bars[i]; bars and rows stay aligned one-to-one.
type FeatureSeries struct {
	Symbol  string
	Bars    []PriceBar
	Columns []string
	Values  [][]float64
}

// Column returns the values of a named column.
func (f FeatureSeries) Column(name string) ([]float64, bool) {
	for c, col := range f.Columns {
		if col == name {
			return f.Values[c], true
		}
	}
	return nil, false
}

// Matrix returns one row per bar with the requested columns, in the requested order.
func (f FeatureSeries) Matrix(cols []string) ([][]float64, error) {
	picked := make([][]float64, len(cols))
	for k, name := range cols {
		v, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("feature column %q not found for %s", name, f.Symbol)
		}
		if len(v) != len(f.Bars) {
			return nil, fmt.Errorf("feature column %q has %d values for %d bars", name, len(v), len(f.Bars))
		}
		picked[k] = v
	}

	rows := make([][]float64, len(f.Bars))
	for i := range f.Bars {
		row := make([]float64, len(cols))
		for k := range cols {
			row[k] = picked[k][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// Series returns the plain price series under the features.
func (f FeatureSeries) Series() PriceSeries {
	return PriceSeries{Symbol: f.Symbol, Bars: f.Bars}
}

// Sample is one labeled training row: the features observed at the close of
// a signal bar and the outcome of the trade that bar would trigger.
type Sample struct {
	Symbol   string
	SignalAt time.Time
	Features []float64
	Label    int
}

// Date implements Dated.
func (s Sample) Date() time.Time {
	return s.SignalAt
}

// Samples labels the series and pairs each label with its signal-bar features.
func Samples(f FeatureSeries, cols []string, p TradeParams) ([]Sample, error) {
	matrix, err := f.Matrix(cols)
	if err != nil {
		return nil, err
	}
	labeled := Label(f.Bars, p)
	out := make([]Sample, len(labeled))
	for k, l := range labeled {
		out[k] = Sample{
			Symbol:   f.Symbol,
			SignalAt: l.Bar.Date,
			Features: matrix[l.Index],
			Label:    l.Outcome.Label,
		}
	}
	return out, nil
}
