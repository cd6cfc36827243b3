package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/swingbot/config"
	"github.com/alejandrodnm/swingbot/internal/adapters/indicators"
	"github.com/alejandrodnm/swingbot/internal/adapters/model"
	"github.com/alejandrodnm/swingbot/internal/adapters/notify"
	"github.com/alejandrodnm/swingbot/internal/adapters/yahoo"
	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/application/pipeline"
)

// app agrupa los componentes compartidos por todos los modos.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	trainer  *model.Trainer
	models   model.FileStore
	console  *notify.Console
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	train := flag.Bool("train", false, "train the model on the train window and evaluate on the test window")
	signals := flag.Bool("signals", false, "score the latest bar of every symbol")
	runBT := flag.Bool("backtest", false, "run the threshold backtest over the full history")
	save := flag.Bool("save", false, "persist the backtest run (with -backtest)")
	runs := flag.Bool("runs", false, "list saved backtest runs")
	serve := flag.Bool("serve", false, "serve the dashboard JSON API")
	schedule := flag.Bool("schedule", false, "run signal scans on the configured cron schedule")
	verbose := flag.Bool("verbose", false, "set log level to debug and list every backtest trade")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("swingbot starting",
		"config", *configPath,
		"symbols", len(cfg.Data.Symbols),
		"target_pct", cfg.Trade.TargetPct,
		"stop_pct", cfg.Trade.StopPct,
		"hold_days", cfg.Trade.HoldDays,
		"threshold", cfg.Trade.SignalThreshold,
	)

	a, err := newApp(cfg, *verbose)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *train:
		err = a.runTrain(ctx)
	case *signals:
		err = a.runSignals(ctx)
	case *runBT:
		err = a.runBacktest(ctx, *save)
	case *runs:
		err = a.listRuns(ctx)
	case *serve:
		err = a.runServe(ctx)
	case *schedule:
		err = a.runSchedule(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("swingbot exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("swingbot stopped cleanly")
}

func newApp(cfg *config.Config, verbose bool) (*app, error) {
	from, to, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}

	client := yahoo.NewClient(cfg.API.YahooBase, cfg.API.RequestsPerSecond)
	features := indicators.NewEngine(indicators.DefaultPeriods)
	engine := backtest.NewEngine(backtest.Config{Params: cfg.TradeParams(), Workers: cfg.Engine.Workers})

	p := pipeline.New(pipeline.Config{
		Symbols:      cfg.Data.Symbols,
		From:         from,
		To:           to,
		FeatureCols:  cfg.Data.FeatureCols,
		Window:       window,
		Threshold:    cfg.Trade.SignalThreshold,
		FetchWorkers: cfg.API.FetchWorkers,
	}, client, features, engine)

	return &app{
		cfg:      cfg,
		pipeline: p,
		trainer: model.NewTrainer(model.TrainConfig{
			LearningRate: cfg.Model.LearningRate,
			Epochs:       cfg.Model.Epochs,
			L2:           cfg.Model.L2,
			Columns:      cfg.Data.FeatureCols,
		}),
		models:  model.FileStore{Path: cfg.Model.Path, Columns: cfg.Data.FeatureCols},
		console: notify.NewConsole(verbose),
	}, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
