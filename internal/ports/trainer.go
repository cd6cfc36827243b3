package ports

// Trainer fits a Predictor on labeled feature rows.
type Trainer interface {
	Fit(rows [][]float64, labels []int) (Predictor, error)
}
