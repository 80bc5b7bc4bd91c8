package predict

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

var ErrPredictorUnavailable = errors.New("predictor unavailable")

// Predictor is the contract with the externally trained scorer.
// Implementations must be free of side effects and safe for concurrent use.
type Predictor interface {
	// Predict returns the estimated percent per second for the features.
	Predict(ctx context.Context, fv model.FeatureVector) (float64, error)
	// GradientStep returns fv moved into the direction that increases the
	// predicted value.
	GradientStep(ctx context.Context, fv model.FeatureVector) (model.FeatureVector, error)
}

type Advisor struct {
	predictor Predictor
	steps     int
}

type AdvisorOption func(a *Advisor)

// WithSteps sets the number of gradient steps used to create a suggestion
func WithSteps(n int) AdvisorOption {
	return func(a *Advisor) {
		if n > 0 {
			a.steps = n
		}
	}
}

// NewAdvisor creates an advisor for p. p may be nil, in which case every call
// to Advise reports ErrPredictorUnavailable.
func NewAdvisor(p Predictor, opts ...AdvisorOption) *Advisor {
	ret := &Advisor{predictor: p, steps: 1}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

//nolint:whitespace // editor/linter issue
func (a *Advisor) Advise(ctx context.Context, fv model.FeatureVector) (
	*model.Advisory, error,
) {
	if a == nil || a.predictor == nil {
		return nil, ErrPredictorUnavailable
	}
	predicted, err := a.predictor.Predict(ctx, fv)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %w", ErrPredictorUnavailable, err)
	}
	suggested := fv
	for i := 0; i < a.steps; i++ {
		if suggested, err = a.predictor.GradientStep(ctx, suggested); err != nil {
			return nil, fmt.Errorf("%w: gradient step %d: %w", ErrPredictorUnavailable, i, err)
		}
		if len(suggested) != len(fv) {
			return nil, fmt.Errorf("%w: gradient step returned %d features, want %d",
				ErrPredictorUnavailable, len(suggested), len(fv))
		}
	}
	suggestedPredicted, err := a.predictor.Predict(ctx, suggested)
	if err != nil {
		return nil, fmt.Errorf("%w: predict suggestion: %w", ErrPredictorUnavailable, err)
	}
	delta := func(idx int) float64 {
		if idx >= len(fv) {
			return 0
		}
		return suggested[idx] - fv[idx]
	}
	return &model.Advisory{
		PredictedPercentPerSecond: predicted,
		SuggestedPercentPerSecond: suggestedPredicted,
		Suggested:                 suggested,
		SpeedDelta:                delta(model.FeatSpeed),
		ThrottleDelta:             delta(model.FeatThrottle),
		BrakeDelta:                delta(model.FeatBrake),
	}, nil
}
