package backtest_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var params = domain.TradeParams{TargetPct: 0.03, StopPct: 0.02, HoldDays: 5}

// eventBars builds bars opening at 100 whose kind decides the trade entered on them:
// 'W' touches the target, 'L' touches the stop, anything else stays flat.
// With every bar an event bar, signal i resolves on bar i+1.
func eventBars(kinds string) []domain.PriceBar {
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(kinds))
	for k, c := range kinds {
		b := domain.PriceBar{Date: start.AddDate(0, 0, k), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
		switch c {
		case 'W':
			b.High = 104
		case 'L':
			b.Low = 97
		}
		bars[k] = b
	}
	return bars
}

func probs(n int, p float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func TestRun_GlobalWinRateIsWeighted(t *testing.T) {
	a := backtest.Instrument{Symbol: "A", Bars: eventBars("-WWWWWWLLLLFFFFF"), Probabilities: probs(10, 0.9)}
	b := backtest.Instrument{Symbol: "B", Bars: eventBars("-WLLLLFFFFF"), Probabilities: probs(5, 0.9)}

	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run([]backtest.Instrument{a, b}, 0.65)
	require.NoError(t, err)
	require.Len(t, report.Instruments, 2)

	ra, rb := report.Instruments[0].Summary, report.Instruments[1].Summary
	assert.Equal(t, 10, ra.Trades)
	assert.Equal(t, 6, ra.Wins)
	assert.InDelta(t, 0.6, ra.WinRate, 1e-12)
	assert.Equal(t, 5, rb.Trades)
	assert.Equal(t, 1, rb.Wins)
	assert.InDelta(t, 0.2, rb.WinRate, 1e-12)

	assert.Equal(t, 15, report.Global.Trades)
	assert.Equal(t, 7, report.Global.Wins)
	assert.Equal(t, 7.0/15.0, report.Global.WinRate)
	assert.InDelta(t, 7*0.03-8*0.02, report.Global.TotalReturn, 1e-12)
	assert.Empty(t, report.Skipped)
}

func TestRun_ThresholdIsInclusive(t *testing.T) {
	inst := backtest.Instrument{
		Symbol:        "A",
		Bars:          eventBars("-WWWLFFFFF"),
		Probabilities: []float64{0.65, 0.6499, 0.99, 0.65},
	}
	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run([]backtest.Instrument{inst}, 0.65)
	require.NoError(t, err)

	trades := report.Instruments[0].Trades
	require.Len(t, trades, 3)
	assert.Equal(t, 0, trades[0].SignalIndex)
	assert.Equal(t, 2, trades[1].SignalIndex)
	assert.Equal(t, 3, trades[2].SignalIndex)
	assert.Equal(t, 0.99, trades[1].Probability)
	assert.Equal(t, domain.TradeOutcome{Label: 0, PnL: -0.02}, trades[2].Outcome)
}

func TestRun_OverlappingTradesAreIndependent(t *testing.T) {
	// every signal bar fires; their holding windows overlap
	inst := backtest.Instrument{Symbol: "A", Bars: eventBars("-FFFFWFFFFFF"), Probabilities: probs(6, 1)}
	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run([]backtest.Instrument{inst}, 0.5)
	require.NoError(t, err)

	s := report.Instruments[0].Summary
	assert.Equal(t, 6, s.Trades)
	// bar 5 is inside the window of signals 0..4
	assert.Equal(t, 5, s.Wins)
}

func TestRun_NoSignalsIsZeroNotNaN(t *testing.T) {
	inst := backtest.Instrument{Symbol: "A", Bars: eventBars("-WWWWWWWWW"), Probabilities: probs(4, 0.1)}
	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run([]backtest.Instrument{inst}, 0.65)
	require.NoError(t, err)

	assert.Equal(t, domain.PerformanceSummary{}, report.Instruments[0].Summary)
	assert.Equal(t, 0.0, report.Global.WinRate)
	assert.Equal(t, 0.0, report.Global.TotalReturn)
}

func TestRun_ShortSeriesContributesNothing(t *testing.T) {
	short := backtest.Instrument{Symbol: "S", Bars: eventBars("WWW")}
	full := backtest.Instrument{Symbol: "F", Bars: eventBars("-WFFFFF"), Probabilities: probs(1, 1)}

	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run([]backtest.Instrument{short, full}, 0.5)
	require.NoError(t, err)
	require.Len(t, report.Instruments, 2)
	assert.Equal(t, 0, report.Instruments[0].Summary.Trades)
	assert.Equal(t, 1, report.Global.Trades)
	assert.Equal(t, 1.0, report.Global.WinRate)
}

func TestRun_MisalignedProbabilitiesAreSkipped(t *testing.T) {
	bad := backtest.Instrument{Symbol: "BAD", Bars: eventBars("-WWWWFFFFF"), Probabilities: probs(2, 1)}
	good := backtest.Instrument{Symbol: "OK", Bars: eventBars("-WFFFFF"), Probabilities: probs(1, 1)}

	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run([]backtest.Instrument{bad, good}, 0.5)
	require.NoError(t, err)
	require.Len(t, report.Instruments, 1)
	assert.Equal(t, "OK", report.Instruments[0].Symbol)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "BAD", report.Skipped[0].Symbol)
	assert.Equal(t, domain.StageBacktest, report.Skipped[0].Stage)
	assert.ErrorIs(t, report.Skipped[0].Err, domain.ErrMisalignedProbabilities)
}

func TestRun_DeterministicOrderAcrossWorkers(t *testing.T) {
	var universe []backtest.Instrument
	for k := 0; k < 40; k++ {
		kinds := "-"
		for j := 0; j < 30; j++ {
			switch (j * (k + 3)) % 5 {
			case 0:
				kinds += "W"
			case 1:
				kinds += "L"
			default:
				kinds += "F"
			}
		}
		universe = append(universe, backtest.Instrument{
			Symbol:        fmt.Sprintf("S%02d", k),
			Bars:          eventBars(kinds),
			Probabilities: probs(25, 0.8),
		})
	}

	sequential, err := backtest.NewEngine(backtest.Config{Params: params, Workers: 1}).Run(universe, 0.5)
	require.NoError(t, err)
	for _, workers := range []int{0, 3, 16, 64} {
		parallel, err := backtest.NewEngine(backtest.Config{Params: params, Workers: workers}).Run(universe, 0.5)
		require.NoError(t, err)
		assert.Equal(t, sequential, parallel, "workers=%d", workers)
	}
	for k, ir := range sequential.Instruments {
		assert.Equal(t, universe[k].Symbol, ir.Symbol)
	}
}

func TestRun_EmptyUniverse(t *testing.T) {
	report, err := backtest.NewEngine(backtest.Config{Params: params}).Run(nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, report.Instruments)
	assert.Equal(t, domain.PerformanceSummary{}, report.Global)
}

func TestRun_RejectsBadInputs(t *testing.T) {
	_, err := backtest.NewEngine(backtest.Config{Params: params}).Run(nil, 1.5)
	assert.Error(t, err)

	_, err = backtest.NewEngine(backtest.Config{Params: domain.TradeParams{TargetPct: 0.03, StopPct: 0.02}}).Run(nil, 0.5)
	assert.Error(t, err)
}
