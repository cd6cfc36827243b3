package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// Config holds the run parameters shared by training, backtest and signals.
type Config struct {
	Symbols      []string
	From         time.Time
	To           time.Time
	FeatureCols  []string
	Window       domain.Window
	Threshold    float64
	FetchWorkers int // concurrent data-source requests (0 = 4)
}

// Pipeline wires the data source, feature engine and backtest engine together.
// Every per-instrument failure becomes a domain.Skip; only cancellation aborts a run.
type Pipeline struct {
	cfg      Config
	bars     ports.BarProvider
	features ports.FeatureEngine
	engine   *backtest.Engine
}

// New creates a Pipeline with all its collaborators injected.
func New(cfg Config, bars ports.BarProvider, features ports.FeatureEngine, engine *backtest.Engine) *Pipeline {
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 4
	}
	return &Pipeline{cfg: cfg, bars: bars, features: features, engine: engine}
}

// Universe is the featurized history of every instrument that could be loaded,
// in configured symbol order.
type Universe struct {
	Series  []domain.FeatureSeries
	Skipped []domain.Skip
}

// LoadUniverse fetches, validates and featurizes every configured symbol.
func (p *Pipeline) LoadUniverse(ctx context.Context) (Universe, error) {
	type slot struct {
		series domain.FeatureSeries
		skip   *domain.Skip
	}
	slots := make([]slot, len(p.cfg.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FetchWorkers)
	for k, symbol := range p.cfg.Symbols {
		g.Go(func() error {
			series, skip := p.loadOne(gctx, symbol)
			if skip != nil && errors.Is(skip.Err, context.Canceled) {
				return skip.Err
			}
			slots[k] = slot{series: series, skip: skip}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Universe{}, fmt.Errorf("pipeline.LoadUniverse: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Universe{}, fmt.Errorf("pipeline.LoadUniverse: %w", err)
	}

	var u Universe
	for _, s := range slots {
		if s.skip != nil {
			logSkip(*s.skip)
			u.Skipped = append(u.Skipped, *s.skip)
			continue
		}
		u.Series = append(u.Series, s.series)
	}
	slog.Info("universe loaded", "instruments", len(u.Series), "skipped", len(u.Skipped))
	return u, nil
}

func (p *Pipeline) loadOne(ctx context.Context, symbol string) (domain.FeatureSeries, *domain.Skip) {
	series, err := p.bars.FetchDailyBars(ctx, symbol, p.cfg.From, p.cfg.To)
	if err != nil {
		return domain.FeatureSeries{}, &domain.Skip{Symbol: symbol, Stage: domain.StageFetch, Err: err}
	}
	if series.Len() == 0 {
		return domain.FeatureSeries{}, &domain.Skip{Symbol: symbol, Stage: domain.StageFetch, Err: domain.ErrInstrumentUnavailable}
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}
	if err := series.Validate(); err != nil {
		return domain.FeatureSeries{}, &domain.Skip{Symbol: symbol, Stage: domain.StageValidate, Err: err}
	}

	fs, err := p.features.AddFeatures(series)
	if err != nil {
		return domain.FeatureSeries{}, &domain.Skip{Symbol: symbol, Stage: domain.StageFeatures, Err: err}
	}
	if len(fs.Bars) == 0 {
		return domain.FeatureSeries{}, &domain.Skip{
			Symbol: symbol,
			Stage:  domain.StageFeatures,
			Err:    fmt.Errorf("%w: no bars left after indicator warm-up (%d fetched)", domain.ErrInsufficientData, series.Len()),
		}
	}
	slog.Debug("instrument loaded", "symbol", symbol, "bars", series.Len(), "feature_rows", len(fs.Bars))
	return fs, nil
}

// Dataset is the labeled sample set split into walk-forward train and test windows.
type Dataset struct {
	Columns []string
	Train   []domain.Sample
	Test    []domain.Sample
	Skipped []domain.Skip
}

// Dataset labels every loaded instrument and splits the concatenated samples by date.
// It returns domain.ErrNoInstruments when nothing could be labeled.
func (p *Pipeline) Dataset(ctx context.Context) (Dataset, error) {
	u, err := p.LoadUniverse(ctx)
	if err != nil {
		return Dataset{}, err
	}

	ds := Dataset{Columns: p.cfg.FeatureCols, Skipped: u.Skipped}
	var all []domain.Sample
	labeled := 0
	for _, fs := range u.Series {
		samples, err := domain.Samples(fs, p.cfg.FeatureCols, p.engine.Params())
		if err != nil {
			skip := domain.Skip{Symbol: fs.Symbol, Stage: domain.StageFeatures, Err: err}
			logSkip(skip)
			ds.Skipped = append(ds.Skipped, skip)
			continue
		}
		if len(samples) == 0 {
			slog.Warn("series too short to label", "symbol", fs.Symbol, "bars", len(fs.Bars))
			continue
		}
		labeled++
		all = append(all, samples...)
	}
	if labeled == 0 {
		return ds, fmt.Errorf("pipeline.Dataset: %w", domain.ErrNoInstruments)
	}

	ds.Train, ds.Test = domain.SplitByDate(all, p.cfg.Window)
	slog.Info("dataset ready", "instruments", labeled, "train", len(ds.Train), "test", len(ds.Test))
	return ds, nil
}

// TrainResult is a fitted predictor with its out-of-sample evaluation.
type TrainResult struct {
	Predictor  ports.Predictor
	Evaluation domain.ClassificationReport
	TrainSize  int
	TestSize   int
	Skipped    []domain.Skip
}

// Train fits the predictor on the train window and evaluates it on the test window.
func (p *Pipeline) Train(ctx context.Context, trainer ports.Trainer) (TrainResult, error) {
	ds, err := p.Dataset(ctx)
	if err != nil {
		return TrainResult{}, err
	}
	if len(ds.Train) == 0 {
		return TrainResult{}, fmt.Errorf("pipeline.Train: %w: no samples on or before %s",
			domain.ErrInsufficientData, p.cfg.Window.TrainEnd.Format(time.DateOnly))
	}

	trainX, trainY := split(ds.Train)
	predictor, err := trainer.Fit(trainX, trainY)
	if err != nil {
		return TrainResult{}, fmt.Errorf("pipeline.Train: fit: %w", err)
	}

	res := TrainResult{
		Predictor: predictor,
		TrainSize: len(ds.Train),
		TestSize:  len(ds.Test),
		Skipped:   ds.Skipped,
	}
	if len(ds.Test) > 0 {
		testX, testY := split(ds.Test)
		probs, err := predictor.PredictProbabilities(testX)
		if err != nil {
			return TrainResult{}, fmt.Errorf("pipeline.Train: evaluate: %w", err)
		}
		res.Evaluation = domain.Classify(probs, testY, 0.5)
	}
	return res, nil
}

// Backtest predicts a probability for every feature row of every instrument
// and runs the engine over the result.
func (p *Pipeline) Backtest(ctx context.Context, predictor ports.Predictor) (domain.Report, error) {
	u, err := p.LoadUniverse(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	skipped := u.Skipped
	universe := make([]backtest.Instrument, 0, len(u.Series))
	for _, fs := range u.Series {
		probs, err := predict(predictor, fs, p.cfg.FeatureCols)
		if err != nil {
			skip := domain.Skip{Symbol: fs.Symbol, Stage: domain.StagePredict, Err: err}
			logSkip(skip)
			skipped = append(skipped, skip)
			continue
		}
		universe = append(universe, backtest.Instrument{Symbol: fs.Symbol, Bars: fs.Bars, Probabilities: probs})
	}

	report, err := p.engine.Run(universe, p.cfg.Threshold)
	if err != nil {
		return domain.Report{}, fmt.Errorf("pipeline.Backtest: %w", err)
	}
	for _, s := range report.Skipped {
		logSkip(s)
	}
	report.Skipped = append(skipped, report.Skipped...)
	return report, nil
}

// Signals scores the most recent bar of every instrument.
func (p *Pipeline) Signals(ctx context.Context, predictor ports.Predictor) ([]domain.Signal, []domain.Skip, error) {
	u, err := p.LoadUniverse(ctx)
	if err != nil {
		return nil, nil, err
	}

	skipped := u.Skipped
	signals := make([]domain.Signal, 0, len(u.Series))
	for _, fs := range u.Series {
		probs, err := predict(predictor, fs, p.cfg.FeatureCols)
		if err != nil {
			skip := domain.Skip{Symbol: fs.Symbol, Stage: domain.StagePredict, Err: err}
			logSkip(skip)
			skipped = append(skipped, skip)
			continue
		}
		last := len(fs.Bars) - 1
		sig := domain.Signal{
			Symbol:      fs.Symbol,
			Date:        fs.Bars[last].Date,
			Close:       fs.Bars[last].Close,
			Probability: probs[last],
			Action:      domain.ActionFor(probs[last], p.cfg.Threshold),
			RSI:         valueAt(fs, "rsi", last),
			ATRPct:      valueAt(fs, "atr_pct", last),
			VolRatio:    valueAt(fs, "vol_ratio", last),
		}
		slog.Info("signal",
			"symbol", sig.Symbol,
			"action", sig.Action,
			"probability", fmt.Sprintf("%.2f", sig.Probability),
		)
		signals = append(signals, sig)
	}
	return signals, skipped, nil
}

func predict(predictor ports.Predictor, fs domain.FeatureSeries, cols []string) ([]float64, error) {
	rows, err := fs.Matrix(cols)
	if err != nil {
		return nil, err
	}
	probs, err := predictor.PredictProbabilities(rows)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(rows) {
		return nil, fmt.Errorf("%w: predictor returned %d probabilities for %d rows",
			domain.ErrMisalignedProbabilities, len(probs), len(rows))
	}
	return probs, nil
}

func split(samples []domain.Sample) ([][]float64, []int) {
	x := make([][]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		x[i] = s.Features
		y[i] = s.Label
	}
	return x, y
}

func valueAt(fs domain.FeatureSeries, col string, i int) float64 {
	v, ok := fs.Column(col)
	if !ok || i >= len(v) {
		return 0
	}
	return v[i]
}

func logSkip(s domain.Skip) {
	slog.Warn("skipping instrument", "symbol", s.Symbol, "stage", s.Stage, "err", s.Err)
}
