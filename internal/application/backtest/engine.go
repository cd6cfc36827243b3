package backtest

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Instrument is one member of the backtest universe: its bars and the
// predicted probability for each signal bar (Probabilities[i] belongs to Bars[i]).
type Instrument struct {
	Symbol        string
	Bars          []domain.PriceBar
	Probabilities []float64
}

// Config holds the engine parameters.
type Config struct {
	Params  domain.TradeParams
	Workers int // goroutines for per-instrument simulation (0 = NumCPU)
}

// Engine runs threshold-gated trade simulations over a universe of instruments.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Params returns the trade parameters the engine simulates with.
func (e *Engine) Params() domain.TradeParams {
	return e.cfg.Params
}

// Run simulates a trade at every signal bar whose probability is >= threshold
// and reduces the trades per instrument and globally. Instruments are processed
// in parallel; the report keeps universe order. An instrument whose inputs are
// unusable is reported in Skipped and does not abort the run.
func (e *Engine) Run(universe []Instrument, threshold float64) (domain.Report, error) {
	if err := e.cfg.Params.Validate(); err != nil {
		return domain.Report{}, fmt.Errorf("backtest.Run: %w", err)
	}
	if threshold < 0 || threshold > 1 {
		return domain.Report{}, fmt.Errorf("backtest.Run: threshold must be in [0,1], got %v", threshold)
	}

	outcomes := runConcurrent(universe, e.cfg.Workers, func(inst Instrument) (domain.InstrumentResult, error) {
		return RunInstrument(inst, e.cfg.Params, threshold)
	})

	report := domain.Report{Instruments: make([]domain.InstrumentResult, 0, len(universe))}
	for k, o := range outcomes {
		if o.err != nil {
			report.Skipped = append(report.Skipped, domain.Skip{
				Symbol: universe[k].Symbol,
				Stage:  domain.StageBacktest,
				Err:    o.err,
			})
			continue
		}
		report.Instruments = append(report.Instruments, o.result)
		report.Global.Merge(o.result.Summary)
	}

	slog.Debug("backtest complete",
		"instruments", len(report.Instruments),
		"skipped", len(report.Skipped),
		"trades", report.Global.Trades,
		"win_rate", report.Global.WinRate,
		"total_return", report.Global.TotalReturn,
	)
	return report, nil
}

// RunInstrument backtests a single instrument. Overlapping holding windows are
// simulated independently; no capital or position constraints apply.
func RunInstrument(inst Instrument, p domain.TradeParams, threshold float64) (domain.InstrumentResult, error) {
	res := domain.InstrumentResult{Symbol: inst.Symbol}

	n := p.SignalBars(len(inst.Bars))
	if n == 0 {
		return res, nil
	}
	if len(inst.Probabilities) < n {
		return res, fmt.Errorf("%w: %s has %d probabilities for %d signal bars",
			domain.ErrMisalignedProbabilities, inst.Symbol, len(inst.Probabilities), n)
	}

	for i := 0; i < n; i++ {
		prob := inst.Probabilities[i]
		if !(prob >= threshold) {
			continue
		}
		out := domain.Simulate(inst.Bars, i, p)
		res.Trades = append(res.Trades, domain.BacktestTrade{
			Symbol:      inst.Symbol,
			SignalIndex: i,
			SignalDate:  inst.Bars[i].Date,
			Probability: prob,
			Outcome:     out,
		})
		res.Summary.Record(out)
	}
	return res, nil
}
