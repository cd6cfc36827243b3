package main

import (
	"context"
	"fmt"
	"log/slog"
)

func (a *app) runTrain(ctx context.Context) error {
	slog.Info("=== TRAIN MODE ===",
		"train_end", a.cfg.Data.TrainEnd,
		"test_end", a.cfg.Data.TestEnd,
		"epochs", a.cfg.Model.Epochs,
	)

	res, err := a.pipeline.Train(ctx, a.trainer)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := a.models.Save(res.Predictor); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := a.console.PrintEvaluation(res.Evaluation, res.TrainSize, res.TestSize); err != nil {
		slog.Warn("print evaluation", "err", err)
	}

	slog.Info("model saved", "path", a.cfg.Model.Path, "train", res.TrainSize, "test", res.TestSize, "skipped", len(res.Skipped))
	return nil
}
