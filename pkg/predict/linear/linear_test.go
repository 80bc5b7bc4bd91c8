package linear

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/predict"
)

const sampleModel = `
weights: [0.001, 0.1, -0.2, 0.0001]
bias: 0.5
learningRate: 0.5
`

func TestLoad(t *testing.T) {
	m, err := Load(strings.NewReader(sampleModel))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.001, 0.1, -0.2, 0.0001}, m.Weights)
	assert.InDelta(t, 0.5, m.Bias, 0)
	assert.InDelta(t, 0.5, m.LearningRate, 0)
}

func TestLoadDefaults(t *testing.T) {
	m, err := Load(strings.NewReader("weights: [1, 2]\n"))
	require.NoError(t, err)
	assert.InDelta(t, 0.01, m.LearningRate, 0)
}

func TestLoadInvalid(t *testing.T) {
	for _, content := range []string{"bias: 1\n", "weights: [a, b\n"} {
		_, err := Load(strings.NewReader(content))
		assert.Error(t, err, content)
	}
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "model.yml")
	require.NoError(t, os.WriteFile(file, []byte(sampleModel), 0o600))
	m, err := LoadFile(file)
	require.NoError(t, err)
	assert.Len(t, m.Weights, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	m := &Model{Weights: []float64{1, 2, 3}, Bias: 1}
	got, err := m.Predict(context.Background(), model.FeatureVector{1, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 7, got, 1e-12)

	_, err = m.Predict(context.Background(), model.FeatureVector{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGradientStep(t *testing.T) {
	m := &Model{Weights: []float64{1, -2}, LearningRate: 0.5}
	fv := model.FeatureVector{10, 10}
	got, err := m.GradientStep(context.Background(), fv)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10.5, 9}, []float64(got), 1e-12)
	assert.InDeltaSlice(t, []float64{10, 10}, []float64(fv), 0)

	_, err = m.GradientStep(context.Background(), model.FeatureVector{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAdvisorWithLinearModel(t *testing.T) {
	m := &Model{Weights: []float64{1, 1}, LearningRate: 1}
	a := predict.NewAdvisor(m, predict.WithSteps(2))
	got, err := a.Advise(context.Background(), model.FeatureVector{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 3, got.PredictedPercentPerSecond, 1e-12)
	assert.InDelta(t, 7, got.SuggestedPercentPerSecond, 1e-12)
	assert.Greater(t, got.SuggestedPercentPerSecond, got.PredictedPercentPerSecond)
}
