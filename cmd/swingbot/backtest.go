package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
)

func (a *app) runBacktest(ctx context.Context, save bool) error {
	slog.Info("=== BACKTEST MODE ===", "save", save)

	predictor, err := a.models.Load()
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	report, err := a.pipeline.Backtest(ctx, predictor)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	params := a.cfg.TradeParams()
	if err := a.console.PrintBacktest(report, params, a.cfg.Trade.SignalThreshold); err != nil {
		slog.Warn("print backtest", "err", err)
	}

	if save {
		if a.cfg.StorageDisabled() {
			slog.Warn("run storage disabled, run not saved")
			return nil
		}
		runs, err := storage.Open(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
		defer runs.Close()

		run := storage.NewRun(report, params, a.cfg.Trade.SignalThreshold)
		if err := runs.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
		slog.Info("backtest run saved", "id", run.ID)
	}

	slog.Info("backtest complete",
		"instruments", len(report.Instruments),
		"trades", report.Global.Trades,
		"skipped", len(report.Skipped),
	)
	return nil
}

func (a *app) listRuns(ctx context.Context) error {
	runs, err := storage.Open(ctx, a.cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("runs: %w", err)
	}
	defer runs.Close()

	list, err := runs.ListRuns(ctx, 0)
	if err != nil {
		return fmt.Errorf("runs: %w", err)
	}
	return a.console.PrintRuns(list)
}
