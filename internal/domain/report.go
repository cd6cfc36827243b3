package domain

import "time"

// BacktestTrade is a simulated trade taken because the predicted probability
// at its signal bar cleared the threshold.
type BacktestTrade struct {
	Symbol      string
	SignalIndex int
	SignalDate  time.Time
	Probability float64
	Outcome     TradeOutcome
}

// PerformanceSummary is the reduction of a set of backtest trades.
type PerformanceSummary struct {
	Trades      int
	Wins        int
	WinRate     float64
	TotalReturn float64
}

// Record folds one trade outcome into the summary.
func (s *PerformanceSummary) Record(o TradeOutcome) {
	s.Trades++
	if o.Win() {
		s.Wins++
	}
	s.TotalReturn += o.PnL
	s.WinRate = winRate(s.Wins, s.Trades)
}

// Merge adds another summary's counts and return. The win rate is recomputed
// from the summed counts, weighting each side by its trade count.
func (s *PerformanceSummary) Merge(o PerformanceSummary) {
	s.Trades += o.Trades
	s.Wins += o.Wins
	s.TotalReturn += o.TotalReturn
	s.WinRate = winRate(s.Wins, s.Trades)
}

// Losses returns the number of trades that did not reach the target.
func (s PerformanceSummary) Losses() int {
	return s.Trades - s.Wins
}

func winRate(wins, trades int) float64 {
	if trades == 0 {
		return 0.0
	}
	return float64(wins) / float64(trades)
}

// Summarize reduces trades into a PerformanceSummary.
func Summarize(trades []BacktestTrade) PerformanceSummary {
	var s PerformanceSummary
	for _, t := range trades {
		s.Record(t.Outcome)
	}
	return s
}

// InstrumentResult is the backtest outcome for one instrument.
type InstrumentResult struct {
	Symbol  string
	Summary PerformanceSummary
	Trades  []BacktestTrade
}

// Report is the backtest output: one result per instrument in universe order,
// the global aggregate, and the instruments that were skipped.
type Report struct {
	Instruments []InstrumentResult
	Global      PerformanceSummary
	Skipped     []Skip
}

// Trades returns every trade of the report, instrument by instrument.
func (r Report) Trades() []BacktestTrade {
	var out []BacktestTrade
	for _, ir := range r.Instruments {
		out = append(out, ir.Trades...)
	}
	return out
}

// BacktestRun is a report plus the parameters that produced it, as persisted.
type BacktestRun struct {
	ID        string
	CreatedAt time.Time
	Params    TradeParams
	Threshold float64
	Report    Report
}

// Action is the recommendation derived from a live signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
)

// Signal is the model's view of the most recent bar of an instrument.
type Signal struct {
	Symbol      string
	Date        time.Time
	Close       float64
	Probability float64
	Action      Action
	RSI         float64
	ATRPct      float64
	VolRatio    float64
}

// ActionFor applies the inclusive threshold gate.
func ActionFor(probability, threshold float64) Action {
	if probability >= threshold {
		return ActionBuy
	}
	return ActionHold
}
