package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

var (
	// ErrRunNotFound is returned by GetRun for an unknown id.
	ErrRunNotFound = errors.New("backtest run not found")

	// ErrDuplicateRun is returned by SaveRun when the id is already stored.
	ErrDuplicateRun = errors.New("backtest run already stored")
)

const (
	defaultListLimit = 20

	// fixed width so stored timestamps sort lexicographically
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs use
// Postgres, "" and "-" disable persistence, anything else is a SQLite path.
func Open(ctx context.Context, dsn string) (ports.RunStorage, error) {
	switch {
	case dsn == "" || dsn == "-":
		slog.Debug("run storage disabled")
		return NewNoopStorage(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStorage(ctx, dsn)
	default:
		return NewSQLiteStorage(dsn)
	}
}

// NewRun stamps a report with a fresh id and the current time.
func NewRun(report domain.Report, params domain.TradeParams, threshold float64) domain.BacktestRun {
	return domain.BacktestRun{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Params:    params,
		Threshold: threshold,
		Report:    report,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// restoreSkip rebuilds a stored skip. Only the error text survives storage.
func restoreSkip(symbol, stage, reason string) domain.Skip {
	sk := domain.Skip{Symbol: symbol, Stage: domain.Stage(stage)}
	if reason != "" {
		sk.Err = errors.New(reason)
	}
	return sk
}
