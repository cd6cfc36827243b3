package storage

// sqlite.go: histórico de backtests en un único fichero.
//
// Estrategia:
//   - `backtest_runs`: una fila por ejecución con parámetros y resumen global.
//   - `instrument_summaries`: una fila por instrumento, en el orden del universo.
//   - `backtest_trades`: cada trade simulado, para reconstruir el informe completo.
//   - `run_skips`: instrumentos descartados y el motivo.
//   - Todo se escribe en una transacción: un run está completo o no existe.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
    id           TEXT PRIMARY KEY,
    created_at   TEXT    NOT NULL,
    target_pct   REAL    NOT NULL,
    stop_pct     REAL    NOT NULL,
    hold_days    INTEGER NOT NULL,
    threshold    REAL    NOT NULL,
    trades       INTEGER NOT NULL DEFAULT 0,
    wins         INTEGER NOT NULL DEFAULT 0,
    win_rate     REAL    NOT NULL DEFAULT 0,
    total_return REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS instrument_summaries (
    run_id       TEXT    NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    symbol       TEXT    NOT NULL,
    trades       INTEGER NOT NULL DEFAULT 0,
    wins         INTEGER NOT NULL DEFAULT 0,
    win_rate     REAL    NOT NULL DEFAULT 0,
    total_return REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS backtest_trades (
    run_id       TEXT    NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    symbol       TEXT    NOT NULL,
    signal_index INTEGER NOT NULL,
    signal_date  TEXT    NOT NULL,
    probability  REAL    NOT NULL,
    label        INTEGER NOT NULL,
    pnl          REAL    NOT NULL,
    PRIMARY KEY (run_id, symbol, signal_index)
);

CREATE TABLE IF NOT EXISTS run_skips (
    run_id   TEXT    NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    symbol   TEXT    NOT NULL,
    stage    TEXT    NOT NULL,
    reason   TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON backtest_runs(created_at DESC);
`

// SQLiteStorage implementa ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun persiste el run, sus resúmenes por instrumento, trades y skips.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.BacktestRun) error {
	if run.ID == "" {
		return fmt.Errorf("storage.SaveRun: empty run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	g := run.Report.Global
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, created_at, target_pct, stop_pct, hold_days, threshold,
			 trades, wins, win_rate, total_return)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.CreatedAt),
		run.Params.TargetPct, run.Params.StopPct, run.Params.HoldDays, run.Threshold,
		g.Trades, g.Wins, g.WinRate, g.TotalReturn,
	); err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("storage.SaveRun: %s: %w", run.ID, ErrDuplicateRun)
		}
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	summaryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instrument_summaries
			(run_id, position, symbol, trades, wins, win_rate, total_return)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare summaries: %w", err)
	}
	defer summaryStmt.Close()

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, symbol, signal_index, signal_date, probability, label, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for pos, ir := range run.Report.Instruments {
		sm := ir.Summary
		if _, err := summaryStmt.ExecContext(ctx,
			run.ID, pos, ir.Symbol, sm.Trades, sm.Wins, sm.WinRate, sm.TotalReturn,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert summary %s: %w", ir.Symbol, err)
		}
		for _, tr := range ir.Trades {
			if _, err := tradeStmt.ExecContext(ctx,
				run.ID, tr.Symbol, tr.SignalIndex, formatDate(tr.SignalDate),
				tr.Probability, tr.Outcome.Label, tr.Outcome.PnL,
			); err != nil {
				return fmt.Errorf("storage.SaveRun: insert trade %s#%d: %w", tr.Symbol, tr.SignalIndex, err)
			}
		}
	}

	for pos, sk := range run.Report.Skipped {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_skips (run_id, position, symbol, stage, reason) VALUES (?, ?, ?, ?, ?)`,
			run.ID, pos, sk.Symbol, string(sk.Stage), sk.Reason(),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert skip %s: %w", sk.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRun carga un run completo. Devuelve ErrRunNotFound si no existe.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (domain.BacktestRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, target_pct, stop_pct, hold_days, threshold,
		       trades, wins, win_rate, total_return
		FROM backtest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, trades, wins, win_rate, total_return
		FROM instrument_summaries WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: query summaries: %w", err)
	}
	defer rows.Close()
	bySymbol := make(map[string]int)
	for rows.Next() {
		var ir domain.InstrumentResult
		if err := rows.Scan(&ir.Symbol, &ir.Summary.Trades, &ir.Summary.Wins,
			&ir.Summary.WinRate, &ir.Summary.TotalReturn); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: scan summary: %w", err)
		}
		bySymbol[ir.Symbol] = len(run.Report.Instruments)
		run.Report.Instruments = append(run.Report.Instruments, ir)
	}
	if err := rows.Err(); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	trades, err := s.db.QueryContext(ctx, `
		SELECT symbol, signal_index, signal_date, probability, label, pnl
		FROM backtest_trades WHERE run_id = ? ORDER BY symbol, signal_index`, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: query trades: %w", err)
	}
	defer trades.Close()
	for trades.Next() {
		var tr domain.BacktestTrade
		var signalDate string
		if err := trades.Scan(&tr.Symbol, &tr.SignalIndex, &signalDate,
			&tr.Probability, &tr.Outcome.Label, &tr.Outcome.PnL); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: scan trade: %w", err)
		}
		if tr.SignalDate, err = parseDate(signalDate); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %w", err)
		}
		if k, ok := bySymbol[tr.Symbol]; ok {
			run.Report.Instruments[k].Trades = append(run.Report.Instruments[k].Trades, tr)
		}
	}
	if err := trades.Err(); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	skips, err := s.db.QueryContext(ctx,
		`SELECT symbol, stage, reason FROM run_skips WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: query skips: %w", err)
	}
	defer skips.Close()
	for skips.Next() {
		var symbol, stage, reason string
		if err := skips.Scan(&symbol, &stage, &reason); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: scan skip: %w", err)
		}
		run.Report.Skipped = append(run.Report.Skipped, restoreSkip(symbol, stage, reason))
	}
	return run, skips.Err()
}

// ListRuns devuelve los últimos runs, más recientes primero, sin instrumentos ni trades.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]domain.BacktestRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, target_pct, stop_pct, hold_days, threshold,
		       trades, wins, win_rate, total_return
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (domain.BacktestRun, error) {
	var run domain.BacktestRun
	var createdAt string
	g := &run.Report.Global
	if err := r.Scan(&run.ID, &createdAt,
		&run.Params.TargetPct, &run.Params.StopPct, &run.Params.HoldDays, &run.Threshold,
		&g.Trades, &g.Wins, &g.WinRate, &g.TotalReturn,
	); err != nil {
		return domain.BacktestRun{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return domain.BacktestRun{}, err
	}
	run.CreatedAt = t
	return run, nil
}

// isSQLiteConstraint detecta violaciones de PRIMARY KEY / UNIQUE (código primario 19).
func isSQLiteConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
