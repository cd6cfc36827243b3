package domain

import "time"

// LabeledBar is a signal bar with the outcome of the trade it would trigger.
// Index is the bar's position in the source series.
type LabeledBar struct {
	Index   int
	Bar     PriceBar
	Outcome TradeOutcome
}

// Date returns the signal bar date.
func (l LabeledBar) Date() time.Time {
	return l.Bar.Date
}

// Label simulates a trade at every signal bar that has a full outcome window
// and attaches the result to the signal bar. The last HoldDays+1 bars are
// never labeled. A series too short to label yields an empty, non-nil slice.
//
// Label i only reads bars i+1..i+HoldDays.
func Label(bars []PriceBar, p TradeParams) []LabeledBar {
	n := p.SignalBars(len(bars))
	out := make([]LabeledBar, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, LabeledBar{
			Index:   i,
			Bar:     bars[i],
			Outcome: Simulate(bars, i, p),
		})
	}
	return out
}

// LabelCounts returns the number of labels and how many of them are positive.
func LabelCounts(labeled []LabeledBar) (total, positive int) {
	for _, l := range labeled {
		if l.Outcome.Win() {
			positive++
		}
	}
	return len(labeled), positive
}
