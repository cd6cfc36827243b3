package model

import (
	"fmt"
	"math"
	"time"
)

// Logistic is a standardized logistic-regression classifier. Inputs are scaled
// with the training mean and standard deviation before the linear term.
// It implements ports.Predictor.
type Logistic struct {
	Columns   []string  `json:"columns"`
	Mean      []float64 `json:"mean"`
	Std       []float64 `json:"std"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trained_at"`
}

// PredictProbabilities returns P(label = 1) for every row.
func (m *Logistic) PredictProbabilities(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("model.PredictProbabilities: row %d has %d features, model expects %d",
				i, len(row), len(m.Weights))
		}
		out[i] = sigmoid(m.linear(row))
	}
	return out, nil
}

func (m *Logistic) linear(row []float64) float64 {
	z := m.Bias
	for j, x := range row {
		z += m.Weights[j] * (x - m.Mean[j]) / m.Std[j]
	}
	return z
}

func (m *Logistic) validate() error {
	n := len(m.Weights)
	if n == 0 {
		return fmt.Errorf("model has no weights")
	}
	if len(m.Mean) != n || len(m.Std) != n {
		return fmt.Errorf("model has %d weights but %d means and %d deviations", n, len(m.Mean), len(m.Std))
	}
	if len(m.Columns) != 0 && len(m.Columns) != n {
		return fmt.Errorf("model has %d weights but %d columns", n, len(m.Columns))
	}
	for j, s := range m.Std {
		if s <= 0 || math.IsNaN(s) {
			return fmt.Errorf("model deviation %d is %v", j, s)
		}
	}
	return nil
}

// sigmoid clamps z so Exp never overflows.
func sigmoid(z float64) float64 {
	if z > 35 {
		z = 35
	} else if z < -35 {
		z = -35
	}
	return 1 / (1 + math.Exp(-z))
}
