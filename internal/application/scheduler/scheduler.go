package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// Scanner produces live signals for the configured universe.
type Scanner interface {
	Signals(ctx context.Context, predictor ports.Predictor) ([]domain.Signal, []domain.Skip, error)
}

// ModelLoader returns the current trained predictor.
type ModelLoader interface {
	Load() (ports.Predictor, error)
}

// specParser accepts six-field specs (leading seconds) and descriptors like @daily.
var specParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs signal scans on a cron schedule and hands the results to a Notifier.
type Scheduler struct {
	cron      *cron.Cron
	scanner   Scanner
	models    ModelLoader
	notifier  ports.Notifier
	schedules []cron.Schedule
}

// New creates a Scheduler.
// The model is reloaded on every scan so a retrain is picked up without a restart.
func New(scanner Scanner, models ModelLoader, notifier ports.Notifier) *Scheduler {
	logger := slogLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		scanner:  scanner,
		models:   models,
		notifier: notifier,
	}
}

// Register validates spec and schedules the signal scan. Jobs start with Run.
func (s *Scheduler) Register(spec string) error {
	schedule, err := specParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("scheduler.Register: %q: %w", spec, err)
	}
	s.schedules = append(s.schedules, schedule)
	return nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// an in-flight scan to finish. Every scan runs under ctx.
func (s *Scheduler) Run(ctx context.Context) {
	for _, schedule := range s.schedules {
		s.cron.Schedule(schedule, cron.FuncJob(func() { s.scanTask(ctx) }))
	}
	s.cron.Start()
	slog.Info("scheduler started", "next", s.next())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunNow executes one scan immediately.
func (s *Scheduler) RunNow(ctx context.Context) error {
	predictor, err := s.models.Load()
	if err != nil {
		return fmt.Errorf("scheduler.RunNow: %w", err)
	}
	signals, skipped, err := s.scanner.Signals(ctx, predictor)
	if err != nil {
		return fmt.Errorf("scheduler.RunNow: %w", err)
	}
	if err := s.notifier.NotifySignals(ctx, signals, skipped); err != nil {
		return fmt.Errorf("scheduler.RunNow: notify: %w", err)
	}

	buys := 0
	for _, sig := range signals {
		if sig.Action == domain.ActionBuy {
			buys++
		}
	}
	slog.Info("signal scan complete", "signals", len(signals), "buy", buys, "skipped", len(skipped))
	return nil
}

func (s *Scheduler) scanTask(ctx context.Context) {
	slog.Info("running scheduled signal scan")
	if err := s.RunNow(ctx); err != nil {
		slog.Error("scheduled signal scan failed", "err", err)
	}
}

func (s *Scheduler) next() string {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return "none"
	}
	return entries[0].Next.Format("2006-01-02 15:04:05 MST")
}

// slogLogger routes cron's internal logging through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
