package ports

import (
	"context"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// RunStorage persists backtest runs.
type RunStorage interface {
	// SaveRun stores the run with its per-instrument summaries and trades.
	SaveRun(ctx context.Context, run domain.BacktestRun) error

	// GetRun loads a run with all its trades.
	GetRun(ctx context.Context, id string) (domain.BacktestRun, error)

	// ListRuns returns the most recent runs, newest first, with the global
	// summary only.
	ListRuns(ctx context.Context, limit int) ([]domain.BacktestRun, error)

	// Close releases the underlying connection.
	Close() error
}
