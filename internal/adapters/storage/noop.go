package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// NoopStorage discards runs. It is used when no DSN is configured.
type NoopStorage struct{}

func NewNoopStorage() *NoopStorage { return &NoopStorage{} }

func (n *NoopStorage) SaveRun(_ context.Context, _ domain.BacktestRun) error { return nil }

func (n *NoopStorage) GetRun(_ context.Context, id string) (domain.BacktestRun, error) {
	return domain.BacktestRun{}, fmt.Errorf("storage.GetRun: %s: %w", id, ErrRunNotFound)
}

func (n *NoopStorage) ListRuns(_ context.Context, _ int) ([]domain.BacktestRun, error) {
	return nil, nil
}

func (n *NoopStorage) Close() error { return nil }
