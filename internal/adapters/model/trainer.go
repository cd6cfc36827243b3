package model

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/swingbot/internal/ports"
)

// TrainConfig holds the gradient-descent hyper-parameters.
type TrainConfig struct {
	LearningRate float64
	Epochs       int
	L2           float64
	Columns      []string // recorded in the model for compatibility checks
}

// Trainer fits Logistic models with full-batch gradient descent from zero
// weights, so the same data always yields the same model.
// It implements ports.Trainer.
type Trainer struct {
	cfg TrainConfig
	now func() time.Time
}

// NewTrainer creates a Trainer. Zero values fall back to 0.05, 300 epochs and no L2.
func NewTrainer(cfg TrainConfig) *Trainer {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.05
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 300
	}
	if cfg.L2 < 0 {
		cfg.L2 = 0
	}
	return &Trainer{cfg: cfg, now: time.Now}
}

// Fit trains a model on rows and their 0/1 labels.
func (t *Trainer) Fit(rows [][]float64, labels []int) (ports.Predictor, error) {
	return t.FitLogistic(rows, labels)
}

// FitLogistic is Fit returning the concrete model.
func (t *Trainer) FitLogistic(rows [][]float64, labels []int) (*Logistic, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("model.Fit: no training rows")
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("model.Fit: %d rows but %d labels", len(rows), len(labels))
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("model.Fit: rows have no features")
	}
	if len(t.cfg.Columns) != 0 && len(t.cfg.Columns) != width {
		return nil, fmt.Errorf("model.Fit: rows have %d features but %d columns are configured", width, len(t.cfg.Columns))
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("model.Fit: row %d has %d features, want %d", i, len(row), width)
		}
		if labels[i] != 0 && labels[i] != 1 {
			return nil, fmt.Errorf("model.Fit: label %d is %d, want 0 or 1", i, labels[i])
		}
	}

	m := &Logistic{
		Columns: append([]string(nil), t.cfg.Columns...),
		Weights: make([]float64, width),
		Samples: len(rows),
	}
	m.Mean, m.Std = standardize(rows, width)

	scaled := make([][]float64, len(rows))
	for i, row := range rows {
		s := make([]float64, width)
		for j, x := range row {
			s[j] = (x - m.Mean[j]) / m.Std[j]
		}
		scaled[i] = s
	}

	n := float64(len(rows))
	grad := make([]float64, width)
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		clear(grad)
		var gradBias float64
		for i, s := range scaled {
			z := m.Bias
			for j, x := range s {
				z += m.Weights[j] * x
			}
			diff := sigmoid(z) - float64(labels[i])
			for j, x := range s {
				grad[j] += diff * x
			}
			gradBias += diff
		}
		for j := range m.Weights {
			m.Weights[j] -= t.cfg.LearningRate * (grad[j]/n + t.cfg.L2*m.Weights[j])
		}
		m.Bias -= t.cfg.LearningRate * gradBias / n
	}
	m.TrainedAt = t.now().UTC()

	slog.Debug("model fitted",
		"samples", len(rows),
		"features", width,
		"epochs", t.cfg.Epochs,
		"log_loss", logLoss(m, scaled, labels),
	)
	return m, nil
}

// standardize returns per-column mean and population standard deviation.
// Constant columns get a deviation of 1 so they scale to zero.
func standardize(rows [][]float64, width int) (mean, std []float64) {
	mean = make([]float64, width)
	std = make([]float64, width)
	n := float64(len(rows))
	for _, row := range rows {
		for j, x := range row {
			mean[j] += x
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range rows {
		for j, x := range row {
			d := x - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] < 1e-12 {
			std[j] = 1
		}
	}
	return mean, std
}

func logLoss(m *Logistic, scaled [][]float64, labels []int) float64 {
	const eps = 1e-15
	var loss float64
	for i, s := range scaled {
		z := m.Bias
		for j, x := range s {
			z += m.Weights[j] * x
		}
		p := math.Min(math.Max(sigmoid(z), eps), 1-eps)
		if labels[i] == 1 {
			loss -= math.Log(p)
		} else {
			loss -= math.Log(1 - p)
		}
	}
	return loss / float64(len(scaled))
}
