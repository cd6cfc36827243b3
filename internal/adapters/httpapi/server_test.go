package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/swingbot/internal/adapters/httpapi"
	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/application/pipeline"
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakePredictor struct{}

func (fakePredictor) PredictProbabilities(rows [][]float64) ([]float64, error) {
	return make([]float64, len(rows)), nil
}

type fakeModels struct {
	trained bool
	saved   ports.Predictor
}

func (m *fakeModels) Exists() bool { return m.trained }

func (m *fakeModels) Load() (ports.Predictor, error) {
	if !m.trained {
		return nil, fmt.Errorf("model.Load: %q: %w: run with -train first", "model.json", domain.ErrModelNotTrained)
	}
	return fakePredictor{}, nil
}

func (m *fakeModels) Save(p ports.Predictor) error {
	m.saved = p
	m.trained = true
	return nil
}

type fakeRunner struct {
	signals []domain.Signal
	report  domain.Report
	train   pipeline.TrainResult
	err     error
}

func (f *fakeRunner) Signals(context.Context, ports.Predictor) ([]domain.Signal, []domain.Skip, error) {
	return f.signals, []domain.Skip{{Symbol: "TCS.NS", Stage: domain.StageFetch, Err: errors.New("No data")}}, f.err
}

func (f *fakeRunner) Backtest(context.Context, ports.Predictor) (domain.Report, error) {
	return f.report, f.err
}

func (f *fakeRunner) Train(context.Context, ports.Trainer) (pipeline.TrainResult, error) {
	return f.train, f.err
}

// ── helpers ──────────────────────────────────────────────────────────────────

var params = domain.TradeParams{TargetPct: 0.03, StopPct: 0.02, HoldDays: 5}

func sampleReport() domain.Report {
	trades := []domain.BacktestTrade{
		{Symbol: "INFY.NS", SignalIndex: 2, SignalDate: time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC), Probability: 0.812345, Outcome: domain.TradeOutcome{Label: 1, PnL: 0.03}},
		{Symbol: "INFY.NS", SignalIndex: 5, SignalDate: time.Date(2023, 5, 5, 0, 0, 0, 0, time.UTC), Probability: 0.7, Outcome: domain.TradeOutcome{Label: 0, PnL: -0.02}},
		{Symbol: "INFY.NS", SignalIndex: 8, SignalDate: time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC), Probability: 0.66, Outcome: domain.TradeOutcome{Label: 0, PnL: -0.02}},
	}
	ir := domain.InstrumentResult{Symbol: "INFY.NS", Trades: trades, Summary: domain.Summarize(trades)}
	return domain.Report{Instruments: []domain.InstrumentResult{ir}, Global: ir.Summary}
}

func newServer(t *testing.T, runner *fakeRunner, models *fakeModels, runs ports.RunStorage) *httptest.Server {
	t.Helper()
	api := httpapi.New(httpapi.Config{Params: params, Threshold: 0.65, Runs: runs}, runner, models)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, method, url string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestStatus(t *testing.T) {
	models := &fakeModels{}
	srv := newServer(t, &fakeRunner{}, models, nil)

	var body map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/status", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["model_ready"])

	models.trained = true
	getJSON(t, http.MethodGet, srv.URL+"/api/status", &body)
	assert.Equal(t, true, body["model_ready"])
}

func TestSignals(t *testing.T) {
	runner := &fakeRunner{signals: []domain.Signal{{
		Symbol:      "RELIANCE.NS",
		Date:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Close:       1215.456,
		Probability: 0.723456,
		Action:      domain.ActionBuy,
		RSI:         61.2345,
		ATRPct:      0.015347,
		VolRatio:    1.416,
	}}}
	srv := newServer(t, runner, &fakeModels{trained: true}, nil)

	var body struct {
		Success bool `json:"success"`
		Signals []struct {
			Symbol      string  `json:"symbol"`
			Date        string  `json:"date"`
			Probability float64 `json:"probability"`
			Signal      string  `json:"signal"`
			RSI         float64 `json:"rsi"`
			ATRPct      float64 `json:"atr_pct"`
			VolRatio    float64 `json:"vol_ratio"`
		} `json:"signals"`
		Skipped []struct {
			Symbol string `json:"symbol"`
			Error  string `json:"error"`
		} `json:"skipped"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/signals", &body))
	assert.True(t, body.Success)
	require.Len(t, body.Signals, 1)

	s := body.Signals[0]
	assert.Equal(t, "RELIANCE.NS", s.Symbol)
	assert.Equal(t, "2024-12-31", s.Date)
	assert.Equal(t, 0.7235, s.Probability)
	assert.Equal(t, "BUY", s.Signal)
	assert.Equal(t, 61.23, s.RSI)
	assert.Equal(t, 1.535, s.ATRPct)
	assert.Equal(t, 1.42, s.VolRatio)

	require.Len(t, body.Skipped, 1)
	assert.Equal(t, "No data", body.Skipped[0].Error)
}

func TestSignals_ModelMissingIs400(t *testing.T) {
	srv := newServer(t, &fakeRunner{}, &fakeModels{}, nil)

	var body map[string]any
	assert.Equal(t, http.StatusBadRequest, getJSON(t, http.MethodGet, srv.URL+"/api/signals", &body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "train first")
}

func TestBacktest(t *testing.T) {
	srv := newServer(t, &fakeRunner{report: sampleReport()}, &fakeModels{trained: true}, nil)

	var body struct {
		Success  bool `json:"success"`
		RunID    string `json:"run_id"`
		Summary  struct {
			Trades      int     `json:"trades"`
			Wins        int     `json:"wins"`
			WinRate     float64 `json:"win_rate"`
			TotalReturn float64 `json:"total_return"`
		} `json:"summary"`
		PerStock []struct {
			Symbol string `json:"symbol"`
			Trades int    `json:"trades"`
		} `json:"per_stock"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/backtest", &body))
	assert.True(t, body.Success)
	assert.Empty(t, body.RunID)
	assert.Equal(t, 3, body.Summary.Trades)
	assert.Equal(t, 1, body.Summary.Wins)
	assert.Equal(t, 33.3, body.Summary.WinRate)
	assert.Equal(t, -1.0, body.Summary.TotalReturn)
	require.Len(t, body.PerStock, 1)
	assert.Equal(t, "INFY.NS", body.PerStock[0].Symbol)
}

func TestBacktest_SaveAndFetchRun(t *testing.T) {
	runs, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer runs.Close()
	srv := newServer(t, &fakeRunner{report: sampleReport()}, &fakeModels{trained: true}, runs)

	var saved struct {
		RunID string `json:"run_id"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/backtest?save=true", &saved))
	require.NotEmpty(t, saved.RunID)

	var list struct {
		Runs []struct {
			ID string `json:"id"`
		} `json:"runs"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/runs", &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, saved.RunID, list.Runs[0].ID)

	var one struct {
		Run struct {
			ID       string `json:"id"`
			HoldDays int    `json:"hold_days"`
			Trades   []struct {
				SignalDate  string  `json:"signal_date"`
				Probability float64 `json:"probability"`
			} `json:"trades"`
		} `json:"run"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/runs/"+saved.RunID, &one))
	assert.Equal(t, 5, one.Run.HoldDays)
	require.Len(t, one.Run.Trades, 3)
	assert.Equal(t, "2023-05-02", one.Run.Trades[0].SignalDate)
	assert.Equal(t, 0.8123, one.Run.Trades[0].Probability)

	var missing map[string]any
	assert.Equal(t, http.StatusNotFound, getJSON(t, http.MethodGet, srv.URL+"/api/runs/nope", &missing))
}

func TestBacktest_SaveWithoutStorage(t *testing.T) {
	srv := newServer(t, &fakeRunner{report: sampleReport()}, &fakeModels{trained: true}, nil)

	var body map[string]any
	assert.Equal(t, http.StatusBadRequest, getJSON(t, http.MethodGet, srv.URL+"/api/backtest?save=1", &body))
}

func TestBacktest_PipelineErrors(t *testing.T) {
	srv := newServer(t, &fakeRunner{err: fmt.Errorf("pipeline: %w", domain.ErrNoInstruments)}, &fakeModels{trained: true}, nil)
	var body map[string]any
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, http.MethodGet, srv.URL+"/api/backtest", &body))

	srv = newServer(t, &fakeRunner{err: errors.New("boom")}, &fakeModels{trained: true}, nil)
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, http.MethodGet, srv.URL+"/api/backtest", &body))
	assert.Equal(t, "boom", body["error"])
}

func TestTrain_SavesModel(t *testing.T) {
	eval := domain.Classify([]float64{0.9, 0.8, 0.3, 0.6, 0.1}, []int{1, 0, 1, 1, 0}, 0.5)
	runner := &fakeRunner{train: pipeline.TrainResult{Predictor: fakePredictor{}, Evaluation: eval, TrainSize: 900, TestSize: 250}}
	models := &fakeModels{}
	srv := newServer(t, runner, models, nil)

	var body struct {
		Success      bool `json:"success"`
		TrainSamples int  `json:"train_samples"`
		Evaluation   struct {
			Precision float64 `json:"precision"`
			Support   int     `json:"support"`
		} `json:"evaluation"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodPost, srv.URL+"/api/train", &body))
	assert.True(t, body.Success)
	assert.Equal(t, 900, body.TrainSamples)
	assert.Equal(t, 0.6667, body.Evaluation.Precision)
	assert.Equal(t, 3, body.Evaluation.Support)
	assert.True(t, models.trained)
	assert.NotNil(t, models.saved)
}

func TestRuns_WithoutStorage(t *testing.T) {
	srv := newServer(t, &fakeRunner{}, &fakeModels{}, nil)
	var body struct {
		Runs []any `json:"runs"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, http.MethodGet, srv.URL+"/api/runs", &body))
	assert.NotNil(t, body.Runs)
	assert.Empty(t, body.Runs)
}
