package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type statusResponse struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"model_ready"`
}

type signalDTO struct {
	Symbol      string  `json:"symbol"`
	Date        string  `json:"date"`
	Close       float64 `json:"close"`
	Probability float64 `json:"probability"`
	Signal      string  `json:"signal"`
	RSI         float64 `json:"rsi"`
	ATRPct      float64 `json:"atr_pct"`
	VolRatio    float64 `json:"vol_ratio"`
}

type skipDTO struct {
	Symbol string `json:"symbol"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

type signalsResponse struct {
	Success bool        `json:"success"`
	Signals []signalDTO `json:"signals"`
	Skipped []skipDTO   `json:"skipped"`
}

// summaryDTO expresses rates and returns in percent, rounded for display.
type summaryDTO struct {
	Symbol      string  `json:"symbol,omitempty"`
	Trades      int     `json:"trades"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	TotalReturn float64 `json:"total_return"`
}

type tradeDTO struct {
	Symbol      string  `json:"symbol"`
	SignalDate  string  `json:"signal_date"`
	Probability float64 `json:"probability"`
	Label       int     `json:"label"`
	PnL         float64 `json:"pnl"`
}

type backtestResponse struct {
	Success  bool         `json:"success"`
	RunID    string       `json:"run_id,omitempty"`
	Summary  summaryDTO   `json:"summary"`
	PerStock []summaryDTO `json:"per_stock"`
	Skipped  []skipDTO    `json:"skipped"`
}

type runDTO struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	TargetPct float64      `json:"target_pct"`
	StopPct   float64      `json:"stop_pct"`
	HoldDays  int          `json:"hold_days"`
	Threshold float64      `json:"threshold"`
	Summary   summaryDTO   `json:"summary"`
	PerStock  []summaryDTO `json:"per_stock,omitempty"`
	Trades    []tradeDTO   `json:"trades,omitempty"`
	Skipped   []skipDTO    `json:"skipped,omitempty"`
}

type runsResponse struct {
	Success bool     `json:"success"`
	Runs    []runDTO `json:"runs"`
}

type runResponse struct {
	Success bool   `json:"success"`
	Run     runDTO `json:"run"`
}

type evaluationDTO struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

type trainResponse struct {
	Success      bool          `json:"success"`
	TrainSamples int           `json:"train_samples"`
	TestSamples  int           `json:"test_samples"`
	Evaluation   evaluationDTO `json:"evaluation"`
	Skipped      []skipDTO     `json:"skipped"`
}

// round redondea con decimal para evitar artefactos binarios (0.1+0.2).
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// pct convierte una fracción a porcentaje redondeado.
func pct(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Shift(2).Round(places).InexactFloat64()
}

func toSignal(s domain.Signal) signalDTO {
	return signalDTO{
		Symbol:      s.Symbol,
		Date:        s.Date.Format(time.DateOnly),
		Close:       round(s.Close, 2),
		Probability: round(s.Probability, 4),
		Signal:      string(s.Action),
		RSI:         round(s.RSI, 2),
		ATRPct:      pct(s.ATRPct, 3),
		VolRatio:    round(s.VolRatio, 2),
	}
}

func toSkips(skipped []domain.Skip) []skipDTO {
	out := make([]skipDTO, len(skipped))
	for i, s := range skipped {
		out[i] = skipDTO{Symbol: s.Symbol, Stage: string(s.Stage), Error: s.Reason()}
	}
	return out
}

func toSummary(symbol string, s domain.PerformanceSummary) summaryDTO {
	return summaryDTO{
		Symbol:      symbol,
		Trades:      s.Trades,
		Wins:        s.Wins,
		WinRate:     pct(s.WinRate, 1),
		TotalReturn: pct(s.TotalReturn, 2),
	}
}

func toPerStock(report domain.Report) []summaryDTO {
	out := make([]summaryDTO, len(report.Instruments))
	for i, ir := range report.Instruments {
		out[i] = toSummary(ir.Symbol, ir.Summary)
	}
	return out
}

func toRun(r domain.BacktestRun, full bool) runDTO {
	dto := runDTO{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		TargetPct: r.Params.TargetPct,
		StopPct:   r.Params.StopPct,
		HoldDays:  r.Params.HoldDays,
		Threshold: r.Threshold,
		Summary:   toSummary("", r.Report.Global),
	}
	if !full {
		return dto
	}
	dto.PerStock = toPerStock(r.Report)
	dto.Skipped = toSkips(r.Report.Skipped)
	for _, t := range r.Report.Trades() {
		dto.Trades = append(dto.Trades, tradeDTO{
			Symbol:      t.Symbol,
			SignalDate:  t.SignalDate.Format(time.DateOnly),
			Probability: round(t.Probability, 4),
			Label:       t.Outcome.Label,
			PnL:         t.Outcome.PnL,
		})
	}
	return dto
}
