package ports

// Predictor is the opaque probability source of a backtest or signal scan.
// It returns one probability of a positive label per input row.
type Predictor interface {
	PredictProbabilities(rows [][]float64) ([]float64, error)
}
