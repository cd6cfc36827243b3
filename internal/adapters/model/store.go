package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// Save writes the model as JSON. The file is replaced atomically.
func Save(path string, m *Logistic) error {
	if err := m.validate(); err != nil {
		return fmt.Errorf("model.Save: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("model.Save: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("model.Save: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("model.Save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("model.Save: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("model.Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("model.Save: %w", err)
	}
	slog.Info("model saved", "path", path, "features", len(m.Weights), "samples", m.Samples)
	return nil
}

// Load reads a model saved by Save. If columns is not empty, the model must
// have been trained on exactly those columns in that order.
func Load(path string, columns []string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("model.Load: %q: %w: run with -train first", path, domain.ErrModelNotTrained)
	}
	if err != nil {
		return nil, fmt.Errorf("model.Load: %w", err)
	}

	var m Logistic
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("model.Load: decode %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model.Load: %s: %w", path, err)
	}
	if len(columns) != 0 && len(m.Columns) != 0 && !slices.Equal(columns, m.Columns) {
		return nil, fmt.Errorf("model.Load: model trained on %v, configured %v", m.Columns, columns)
	}
	slog.Info("model loaded", "path", path, "trained_at", m.TrainedAt)
	return &m, nil
}

// FileStore loads and saves the model at a fixed path, checking it against
// the configured feature columns.
type FileStore struct {
	Path    string
	Columns []string
}

// Exists reports whether a model file is present.
func (s FileStore) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load reads the model. A missing file wraps domain.ErrModelNotTrained.
func (s FileStore) Load() (ports.Predictor, error) {
	return Load(s.Path, s.Columns)
}

// Save persists a predictor produced by Trainer.
func (s FileStore) Save(p ports.Predictor) error {
	m, ok := p.(*Logistic)
	if !ok {
		return fmt.Errorf("model.Save: unsupported predictor %T", p)
	}
	return Save(s.Path, m)
}
