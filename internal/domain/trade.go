package domain

import "fmt"

// TradeParams are the fixed rules of the single long trade the engine models:
// one entry at the next session's open, one exit at target, stop or expiry.
type TradeParams struct {
	TargetPct float64 // profit-take offset from entry, as a fraction (0.03 = 3%)
	StopPct   float64 // loss-cut offset from entry, as a fraction
	HoldDays  int     // bars checked after the signal bar before the trade expires flat
}

// Validate rejects parameter sets the simulator cannot honour.
func (p TradeParams) Validate() error {
	if p.TargetPct <= 0 {
		return fmt.Errorf("target pct must be positive, got %v", p.TargetPct)
	}
	if p.StopPct <= 0 || p.StopPct >= 1 {
		return fmt.Errorf("stop pct must be in (0,1), got %v", p.StopPct)
	}
	if p.HoldDays < 1 {
		return fmt.Errorf("hold days must be >= 1, got %d", p.HoldDays)
	}
	return nil
}

// SignalBars returns how many bars of a series of length n have a complete,
// observable outcome window: max(0, n - HoldDays - 1).
func (p TradeParams) SignalBars(n int) int {
	return max(0, n-p.HoldDays-1)
}

// TradeOutcome is the result of simulating one trade.
type TradeOutcome struct {
	Label int     // 1 = target reached before stop or expiry
	PnL   float64 // +TargetPct, -StopPct or 0.0
}

// Win reports whether the trade reached its target.
func (o TradeOutcome) Win() bool {
	return o.Label == 1
}

// Simulate resolves the trade signalled at the close of bars[i].
//
// Entry is the open of bars[i+1]. Bars i+1..i+HoldDays are scanned in order;
// within a bar the stop is checked before the target, so a bar touching both
// resolves as a loss. A trade that touches neither expires with zero PnL.
//
// The caller must guarantee i+HoldDays+1 <= len(bars). Violating it is a
// programming error and panics.
func Simulate(bars []PriceBar, i int, p TradeParams) TradeOutcome {
	if i < 0 || i+p.HoldDays+1 > len(bars) {
		panic(fmt.Sprintf("domain.Simulate: signal index %d needs %d bars of lookahead, series has %d bars",
			i, p.HoldDays+1, len(bars)))
	}

	entry := bars[i+1].Open
	target := entry * (1 + p.TargetPct)
	stop := entry * (1 - p.StopPct)

	for j := 1; j <= p.HoldDays; j++ {
		b := bars[i+j]
		if b.Low <= stop {
			return TradeOutcome{Label: 0, PnL: -p.StopPct}
		}
		if b.High >= target {
			return TradeOutcome{Label: 1, PnL: p.TargetPct}
		}
	}
	return TradeOutcome{Label: 0, PnL: 0.0}
}
