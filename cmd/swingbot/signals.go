package main

import (
	"context"
	"fmt"
)

func (a *app) runSignals(ctx context.Context) error {
	predictor, err := a.models.Load()
	if err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	signals, skipped, err := a.pipeline.Signals(ctx, predictor)
	if err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	return a.console.NotifySignals(ctx, signals, skipped)
}
