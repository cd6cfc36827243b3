package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Console implementa ports.Notifier y pinta los informes en texto.
type Console struct {
	out     io.Writer
	verbose bool
	now     func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
// En modo verbose el informe de backtest incluye cada trade.
func NewConsole(verbose bool) *Console {
	return NewConsoleWriter(os.Stdout, verbose)
}

// NewConsoleWriter crea un notificador sobre cualquier writer (tests, ficheros).
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose, now: time.Now}
}

// NotifySignals imprime la señal del último bar de cada instrumento.
func (c *Console) NotifySignals(_ context.Context, signals []domain.Signal, skipped []domain.Skip) error {
	stamp := c.now().Format("15:04:05")
	if len(signals) == 0 {
		fmt.Fprintf(c.out, "[%s] no signals\n", stamp)
		c.printSkipped(skipped)
		return nil
	}

	buys := 0
	for _, s := range signals {
		if s.Action == domain.ActionBuy {
			buys++
		}
	}
	fmt.Fprintf(c.out, "\n[%s] %d instruments → BUY:%d HOLD:%d\n", stamp, len(signals), buys, len(signals)-buys)

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Date", "Close", "Prob", "Action", "RSI", "ATR%", "Vol x")
	for _, s := range signals {
		table.Append(
			s.Symbol,
			s.Date.Format(time.DateOnly),
			fmt.Sprintf("%.2f", s.Close),
			fmt.Sprintf("%.2f", s.Probability),
			string(s.Action),
			fmt.Sprintf("%.2f", s.RSI),
			fmt.Sprintf("%.3f", s.ATRPct*100),
			fmt.Sprintf("%.2f", s.VolRatio),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("notify.NotifySignals: %w", err)
	}
	c.printSkipped(skipped)
	return nil
}

// PrintBacktest imprime el resumen por instrumento y el global.
func (c *Console) PrintBacktest(report domain.Report, params domain.TradeParams, threshold float64) error {
	fmt.Fprintf(c.out, "\n=== BACKTEST (target %s, stop %s, hold %dd, threshold %.2f) ===\n",
		percent(params.TargetPct), percent(params.StopPct), params.HoldDays, threshold)

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Trades", "Wins", "Losses", "Win rate", "Return")
	for _, ir := range report.Instruments {
		appendSummary(table, ir.Symbol, ir.Summary)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("notify.PrintBacktest: %w", err)
	}

	g := report.Global
	fmt.Fprintln(c.out, "─── Backtest Results ───────────────────────────")
	fmt.Fprintf(c.out, "  Trades      : %d\n", g.Trades)
	fmt.Fprintf(c.out, "  Win Rate    : %s\n", percent(g.WinRate))
	fmt.Fprintf(c.out, "  Total Return: %s\n", percent(g.TotalReturn))

	if c.verbose {
		if err := c.printTrades(report.Trades()); err != nil {
			return err
		}
	}
	c.printSkipped(report.Skipped)
	return nil
}

// PrintEvaluation imprime la evaluación out-of-sample de un entrenamiento.
func (c *Console) PrintEvaluation(eval domain.ClassificationReport, trainSize, testSize int) error {
	fmt.Fprintf(c.out, "\n=== TRAINING (train %d samples, test %d samples) ===\n", trainSize, testSize)
	if eval.Samples == 0 {
		fmt.Fprintln(c.out, "  no test samples: evaluation skipped")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("", "Predicted 0", "Predicted 1")
	table.Append("Actual 0", fmt.Sprint(eval.TrueNegatives), fmt.Sprint(eval.FalsePositives))
	table.Append("Actual 1", fmt.Sprint(eval.FalseNegatives), fmt.Sprint(eval.TruePositives))
	if err := table.Render(); err != nil {
		return fmt.Errorf("notify.PrintEvaluation: %w", err)
	}

	fmt.Fprintf(c.out, "  Accuracy : %.3f\n", eval.Accuracy)
	fmt.Fprintf(c.out, "  Precision: %.3f\n", eval.Precision)
	fmt.Fprintf(c.out, "  Recall   : %.3f\n", eval.Recall)
	fmt.Fprintf(c.out, "  F1       : %.3f  (support %d)\n", eval.F1, eval.Support())
	return nil
}

// PrintRuns imprime el histórico de backtests guardados.
func (c *Console) PrintRuns(runs []domain.BacktestRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no stored backtest runs")
		return nil
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Created", "Threshold", "Trades", "Win rate", "Return")
	for _, r := range runs {
		g := r.Report.Global
		table.Append(
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", r.Threshold),
			fmt.Sprint(g.Trades),
			percent(g.WinRate),
			percent(g.TotalReturn),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("notify.PrintRuns: %w", err)
	}
	return nil
}

// --- helpers internos ---

func (c *Console) printTrades(trades []domain.BacktestTrade) error {
	if len(trades) == 0 {
		return nil
	}
	fmt.Fprintf(c.out, "\n=== TRADES (%d) ===\n", len(trades))
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Signal", "Prob", "Result", "PnL")
	for _, t := range trades {
		table.Append(
			t.Symbol,
			t.SignalDate.Format(time.DateOnly),
			fmt.Sprintf("%.2f", t.Probability),
			result(t.Outcome),
			percent(t.Outcome.PnL),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("notify.PrintBacktest: trades: %w", err)
	}
	return nil
}

func (c *Console) printSkipped(skipped []domain.Skip) {
	if len(skipped) == 0 {
		return
	}
	parts := make([]string, len(skipped))
	for i, s := range skipped {
		parts[i] = fmt.Sprintf("%s (%s: %s)", s.Symbol, s.Stage, s.Reason())
	}
	fmt.Fprintf(c.out, "  ⚠ skipped %d: %s\n", len(skipped), strings.Join(parts, ", "))
}

func appendSummary(table *tablewriter.Table, label string, s domain.PerformanceSummary) {
	table.Append(
		label,
		fmt.Sprint(s.Trades),
		fmt.Sprint(s.Wins),
		fmt.Sprint(s.Losses()),
		percent(s.WinRate),
		percent(s.TotalReturn),
	)
}

// result clasifica un trade: TARGET, STOP o EXPIRED (sin PnL).
func result(o domain.TradeOutcome) string {
	switch {
	case o.Win():
		return "TARGET"
	case o.PnL < 0:
		return "STOP"
	default:
		return "EXPIRED"
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
