package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/application/pipeline"
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// Runner is the part of the pipeline the API drives.
type Runner interface {
	Signals(ctx context.Context, predictor ports.Predictor) ([]domain.Signal, []domain.Skip, error)
	Backtest(ctx context.Context, predictor ports.Predictor) (domain.Report, error)
	Train(ctx context.Context, trainer ports.Trainer) (pipeline.TrainResult, error)
}

// ModelStore loads and persists the trained predictor.
type ModelStore interface {
	Exists() bool
	Load() (ports.Predictor, error)
	Save(p ports.Predictor) error
}

// Config holds what the handlers need besides the pipeline.
type Config struct {
	Params    domain.TradeParams
	Threshold float64
	Trainer   ports.Trainer
	Runs      ports.RunStorage // nil disables /api/runs and ?save
}

// Server exposes the dashboard JSON API.
type Server struct {
	cfg      Config
	runner   Runner
	models   ModelStore
	training sync.Mutex
}

// New creates a Server.
func New(cfg Config, runner Runner, models ModelStore) *Server {
	return &Server{cfg: cfg, runner: runner, models: models}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	return logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dashboard API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("httpapi.ListenAndServe: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi.ListenAndServe: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", ModelReady: s.models.Exists()})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	predictor, err := s.models.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	signals, skipped, err := s.runner.Signals(r.Context(), predictor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := signalsResponse{Success: true, Signals: make([]signalDTO, len(signals)), Skipped: toSkips(skipped)}
	for i, sig := range signals {
		resp.Signals[i] = toSignal(sig)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))
	if save && s.cfg.Runs == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "run storage is disabled"})
		return
	}

	predictor, err := s.models.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := s.runner.Backtest(r.Context(), predictor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := backtestResponse{
		Success:  true,
		Summary:  toSummary("", report.Global),
		PerStock: toPerStock(report),
		Skipped:  toSkips(report.Skipped),
	}
	if save {
		run := storage.NewRun(report, s.cfg.Params, s.cfg.Threshold)
		if err := s.cfg.Runs.SaveRun(r.Context(), run); err != nil {
			writeError(w, err)
			return
		}
		resp.RunID = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if !s.training.TryLock() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "training already in progress"})
		return
	}
	defer s.training.Unlock()

	res, err := s.runner.Train(r.Context(), s.cfg.Trainer)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.models.Save(res.Predictor); err != nil {
		writeError(w, err)
		return
	}

	ev := res.Evaluation
	writeJSON(w, http.StatusOK, trainResponse{
		Success:      true,
		TrainSamples: res.TrainSize,
		TestSamples:  res.TestSize,
		Evaluation: evaluationDTO{
			Accuracy:  round(ev.Accuracy, 4),
			Precision: round(ev.Precision, 4),
			Recall:    round(ev.Recall, 4),
			F1:        round(ev.F1, 4),
			Support:   ev.Support(),
		},
		Skipped: toSkips(res.Skipped),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Runs == nil {
		writeJSON(w, http.StatusOK, runsResponse{Success: true, Runs: []runDTO{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.cfg.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := runsResponse{Success: true, Runs: make([]runDTO, len(runs))}
	for i, run := range runs {
		resp.Runs[i] = toRun(run, false)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Runs == nil {
		writeError(w, storage.ErrRunNotFound)
		return
	}
	run, err := s.cfg.Runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Success: true, Run: toRun(run, true)})
}

// writeError maps domain errors to status codes: a missing model or bad input
// is the caller's problem (400), an unknown run is 404, the rest is 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrModelNotTrained):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoInstruments), errors.Is(err, domain.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.Error("api request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}
