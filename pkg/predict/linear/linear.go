// Package linear provides a linear scorer implementing predict.Predictor.
// It is a stand-in for externally trained models which export their
// weights as YAML.
package linear

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/predict"
)

var ErrDimensionMismatch = errors.New("feature dimension mismatch")

type Model struct {
	Weights      []float64 `yaml:"weights"`
	Bias         float64   `yaml:"bias"`
	LearningRate float64   `yaml:"learningRate"`
}

var _ predict.Predictor = (*Model)(nil)

func Load(r io.Reader) (*Model, error) {
	var m Model
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	if len(m.Weights) == 0 {
		return nil, errors.New("model has no weights")
	}
	if m.LearningRate == 0 {
		m.LearningRate = 0.01
	}
	return &m, nil
}

func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (m *Model) Predict(_ context.Context, fv model.FeatureVector) (float64, error) {
	if len(fv) != len(m.Weights) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(fv), len(m.Weights))
	}
	return floats.Dot(m.Weights, fv) + m.Bias, nil
}

// GradientStep moves fv along the gradient of the model, which for a linear
// model is the weight vector itself.
//
//nolint:whitespace // editor/linter issue
func (m *Model) GradientStep(_ context.Context, fv model.FeatureVector) (
	model.FeatureVector, error,
) {
	if len(fv) != len(m.Weights) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(fv), len(m.Weights))
	}
	ret := make(model.FeatureVector, len(fv))
	floats.AddScaledTo(ret, fv, m.LearningRate, m.Weights)
	return ret, nil
}
