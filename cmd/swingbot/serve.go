package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/swingbot/internal/adapters/httpapi"
	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/application/scheduler"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

func (a *app) runServe(ctx context.Context) error {
	var runs ports.RunStorage
	if !a.cfg.StorageDisabled() {
		store, err := storage.Open(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer store.Close()
		runs = store
	}

	api := httpapi.New(httpapi.Config{
		Params:    a.cfg.TradeParams(),
		Threshold: a.cfg.Trade.SignalThreshold,
		Trainer:   a.trainer,
		Runs:      runs,
	}, a.pipeline, a.models)

	return api.ListenAndServe(ctx, a.cfg.Server.Addr)
}

func (a *app) runSchedule(ctx context.Context) error {
	if !a.models.Exists() {
		slog.Warn("no trained model yet, scans will fail until -train runs", "path", a.cfg.Model.Path)
	}

	s := scheduler.New(a.pipeline, a.models, a.console)
	if err := s.Register(a.cfg.Schedule.SignalsCron); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	s.Run(ctx)
	return nil
}
