package domain

import "errors"

var (
	// ErrInvalidSeries means a price series breaks ordering or price invariants.
	ErrInvalidSeries = errors.New("invalid price series")

	// ErrInsufficientData means a series is too short to produce any label or trade.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMisalignedProbabilities means a probability series does not cover every signal bar.
	ErrMisalignedProbabilities = errors.New("probabilities not aligned with signal bars")

	// ErrInstrumentUnavailable means the data source returned nothing for a symbol.
	ErrInstrumentUnavailable = errors.New("instrument unavailable")

	// ErrNoInstruments means every instrument of the universe was skipped.
	ErrNoInstruments = errors.New("no instrument data loaded")

	// ErrModelNotTrained means no persisted model exists yet.
	ErrModelNotTrained = errors.New("model not trained")
)

// Stage identifies where in the pipeline an instrument was dropped.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageFeatures Stage = "features"
	StagePredict  Stage = "predict"
	StageBacktest Stage = "backtest"
)

// Skip records an instrument left out of a run. Skips never abort the run;
// they are surfaced to the caller for logging and display.
type Skip struct {
	Symbol string
	Stage  Stage
	Err    error
}

// Reason returns the skip error as text, or "" when no error was recorded.
func (s Skip) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
