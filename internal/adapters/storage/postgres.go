package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
    id           TEXT PRIMARY KEY,
    created_at   TIMESTAMPTZ      NOT NULL,
    target_pct   DOUBLE PRECISION NOT NULL,
    stop_pct     DOUBLE PRECISION NOT NULL,
    hold_days    INTEGER          NOT NULL,
    threshold    DOUBLE PRECISION NOT NULL,
    trades       INTEGER          NOT NULL DEFAULT 0,
    wins         INTEGER          NOT NULL DEFAULT 0,
    win_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_return DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS instrument_summaries (
    run_id       TEXT             NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    position     INTEGER          NOT NULL,
    symbol       TEXT             NOT NULL,
    trades       INTEGER          NOT NULL DEFAULT 0,
    wins         INTEGER          NOT NULL DEFAULT 0,
    win_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_return DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS backtest_trades (
    run_id       TEXT             NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
    symbol       TEXT             NOT NULL,
    signal_index INTEGER          NOT NULL,
    signal_date  DATE             NOT NULL,
    probability  DOUBLE PRECISION NOT NULL,
    label        SMALLINT         NOT NULL,
    pnl          DOUBLE PRECISION NOT NULL,
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

// PostgreSQL error codes
const pgErrUniqueViolation = "23505"

// PostgresStorage implements ports.RunStorage on a pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects, verifies the connection and applies the schema.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: apply schema: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// SaveRun stores the run in one transaction; trades are bulk-loaded with COPY.
func (s *PostgresStorage) SaveRun(ctx context.Context, run domain.BacktestRun) error {
	if run.ID == "" {
		return fmt.Errorf("storage.SaveRun: empty run id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	g := run.Report.Global
	if _, err := tx.Exec(ctx, `
		INSERT INTO backtest_runs
			(id, created_at, target_pct, stop_pct, hold_days, threshold,
			 trades, wins, win_rate, total_return)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.CreatedAt.UTC(),
		run.Params.TargetPct, run.Params.StopPct, run.Params.HoldDays, run.Threshold,
		g.Trades, g.Wins, g.WinRate, g.TotalReturn,
	); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("storage.SaveRun: %s: %w", run.ID, ErrDuplicateRun)
		}
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for pos, ir := range run.Report.Instruments {
		sm := ir.Summary
		batch.Queue(`
			INSERT INTO instrument_summaries
				(run_id, position, symbol, trades, wins, win_rate, total_return)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			run.ID, pos, ir.Symbol, sm.Trades, sm.Wins, sm.WinRate, sm.TotalReturn)
	}
	for pos, sk := range run.Report.Skipped {
		batch.Queue(`INSERT INTO run_skips (run_id, position, symbol, stage, reason) VALUES ($1, $2, $3, $4, $5)`,
			run.ID, pos, sk.Symbol, string(sk.Stage), sk.Reason())
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("storage.SaveRun: insert summaries: %w", err)
		}
	}

	var rows [][]any
	for _, tr := range run.Report.Trades() {
		rows = append(rows, []any{
			run.ID, tr.Symbol, tr.SignalIndex, tr.SignalDate.UTC(),
			tr.Probability, int16(tr.Outcome.Label), tr.Outcome.PnL,
		})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"backtest_trades"},
			[]string{"run_id", "symbol", "signal_index", "signal_date", "probability", "label", "pnl"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: copy trades: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRun loads a full run. It returns ErrRunNotFound for an unknown id.
func (s *PostgresStorage) GetRun(ctx context.Context, id string) (domain.BacktestRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, `
		SELECT id, created_at, target_pct, stop_pct, hold_days, threshold,
		       trades, wins, win_rate, total_return
		FROM backtest_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT symbol, trades, wins, win_rate, total_return
		FROM instrument_summaries WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: query summaries: %w", err)
	}
	run.Report.Instruments, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.InstrumentResult, error) {
		var ir domain.InstrumentResult
		err := r.Scan(&ir.Symbol, &ir.Summary.Trades, &ir.Summary.Wins, &ir.Summary.WinRate, &ir.Summary.TotalReturn)
		return ir, err
	})
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: scan summaries: %w", err)
	}
	if len(run.Report.Instruments) == 0 {
		run.Report.Instruments = nil
	}
	bySymbol := make(map[string]int, len(run.Report.Instruments))
	for k, ir := range run.Report.Instruments {
		bySymbol[ir.Symbol] = k
	}

	rows, err = s.pool.Query(ctx, `
		SELECT symbol, signal_index, signal_date, probability, label, pnl
		FROM backtest_trades WHERE run_id = $1 ORDER BY symbol, signal_index`, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: query trades: %w", err)
	}
	trades, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.BacktestTrade, error) {
		var tr domain.BacktestTrade
		var label int16
		err := r.Scan(&tr.Symbol, &tr.SignalIndex, &tr.SignalDate, &tr.Probability, &label, &tr.Outcome.PnL)
		tr.Outcome.Label = int(label)
		tr.SignalDate = tr.SignalDate.UTC()
		return tr, err
	})
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: scan trades: %w", err)
	}
	for _, tr := range trades {
		if k, ok := bySymbol[tr.Symbol]; ok {
			run.Report.Instruments[k].Trades = append(run.Report.Instruments[k].Trades, tr)
		}
	}

	rows, err = s.pool.Query(ctx,
		`SELECT symbol, stage, reason FROM run_skips WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: query skips: %w", err)
	}
	skips, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Skip, error) {
		var symbol, stage, reason string
		err := r.Scan(&symbol, &stage, &reason)
		return restoreSkip(symbol, stage, reason), err
	})
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: scan skips: %w", err)
	}
	if len(skips) > 0 {
		run.Report.Skipped = skips
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, without instruments or trades.
func (s *PostgresStorage) ListRuns(ctx context.Context, limit int) ([]domain.BacktestRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, target_pct, stop_pct, hold_days, threshold,
		       trades, wins, win_rate, total_return
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.BacktestRun, error) {
		return scanPgRun(r)
	})
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs, nil
}

// Close closes the connection pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func scanPgRun(r pgx.Row) (domain.BacktestRun, error) {
	var run domain.BacktestRun
	g := &run.Report.Global
	if err := r.Scan(&run.ID, &run.CreatedAt,
		&run.Params.TargetPct, &run.Params.StopPct, &run.Params.HoldDays, &run.Threshold,
		&g.Trades, &g.Wins, &g.WinRate, &g.TotalReturn,
	); err != nil {
		return domain.BacktestRun{}, err
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return run, nil
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
