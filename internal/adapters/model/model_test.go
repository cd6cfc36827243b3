package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable: label is 1 exactly when the first feature is positive.
func separable() ([][]float64, []int) {
	var rows [][]float64
	var labels []int
	for k := -10; k <= 10; k++ {
		if k == 0 {
			continue
		}
		rows = append(rows, []float64{float64(k), 5})
		if k > 0 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}
	return rows, labels
}

func newTestTrainer(cols ...string) *Trainer {
	tr := NewTrainer(TrainConfig{LearningRate: 0.5, Epochs: 200, Columns: cols})
	tr.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return tr
}

func TestFit_LearnsSeparableData(t *testing.T) {
	rows, labels := separable()
	m, err := newTestTrainer().FitLogistic(rows, labels)
	require.NoError(t, err)

	probs, err := m.PredictProbabilities([][]float64{{8, 5}, {-8, 5}, {0.5, 5}})
	require.NoError(t, err)
	assert.Greater(t, probs[0], 0.9)
	assert.Less(t, probs[1], 0.1)
	assert.Greater(t, probs[2], 0.5)

	// the constant column scales to zero and carries no weight
	assert.Equal(t, 1.0, m.Std[1])
	assert.Equal(t, 0.0, m.Weights[1])
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
	}
}

func TestFit_IsDeterministic(t *testing.T) {
	rows, labels := separable()
	a, err := newTestTrainer().FitLogistic(rows, labels)
	require.NoError(t, err)
	b, err := newTestTrainer().FitLogistic(rows, labels)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFit_RejectsBadInput(t *testing.T) {
	tr := newTestTrainer()

	_, err := tr.Fit(nil, nil)
	assert.Error(t, err)

	_, err = tr.Fit([][]float64{{1}, {2}}, []int{1})
	assert.Error(t, err)

	_, err = tr.Fit([][]float64{{1, 2}, {2}}, []int{1, 0})
	assert.Error(t, err)

	_, err = tr.Fit([][]float64{{1}, {2}}, []int{1, 2})
	assert.Error(t, err)

	_, err = newTestTrainer("a", "b", "c").Fit([][]float64{{1}, {2}}, []int{1, 0})
	assert.Error(t, err)
}

func TestPredictProbabilities_WrongWidth(t *testing.T) {
	rows, labels := separable()
	m, err := newTestTrainer().FitLogistic(rows, labels)
	require.NoError(t, err)

	_, err = m.PredictProbabilities([][]float64{{1}})
	assert.Error(t, err)

	probs, err := m.PredictProbabilities(nil)
	require.NoError(t, err)
	assert.Empty(t, probs)
}

func TestSaveLoad(t *testing.T) {
	rows, labels := separable()
	m, err := newTestTrainer("x", "const").FitLogistic(rows, labels)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "model.json")
	require.NoError(t, Save(path, m))

	loaded, err := Load(path, []string{"x", "const"})
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	// no columns configured skips the compatibility check
	_, err = Load(path, nil)
	assert.NoError(t, err)

	_, err = Load(path, []string{"const", "x"})
	assert.Error(t, err)
}

func TestLoad_NotTrained(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, domain.ErrModelNotTrained)
	assert.Contains(t, err.Error(), "-train")
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"weights":[1,2],"mean":[0],"std":[1]}`), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrModelNotTrained)
}

func TestFileStore(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "model.json"), Columns: []string{"x", "const"}}
	assert.False(t, store.Exists())

	_, err := store.Load()
	assert.ErrorIs(t, err, domain.ErrModelNotTrained)

	rows, labels := separable()
	p, err := newTestTrainer("x", "const").Fit(rows, labels)
	require.NoError(t, err)
	require.NoError(t, store.Save(p))
	assert.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, p, loaded)

	assert.Error(t, store.Save(fakePredictor{}))
}

type fakePredictor struct{}

func (fakePredictor) PredictProbabilities(rows [][]float64) ([]float64, error) {
	return make([]float64, len(rows)), nil
}
