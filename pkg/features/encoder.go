package features

import (
	"math"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

const (
	DefaultSubdivisions = 8
	drsActiveThreshold  = 10
	numBaseFeatures     = model.FeatSubdivisionStart
)

type Encoder struct {
	subdivisions int
}

type Option func(e *Encoder)

func WithSubdivisions(k int) Option {
	return func(e *Encoder) {
		if k > 0 {
			e.subdivisions = k
		}
	}
}

func NewEncoder(opts ...Option) *Encoder {
	ret := &Encoder{subdivisions: DefaultSubdivisions}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (e *Encoder) Subdivisions() int {
	return e.subdivisions
}

// Size returns the length of the vectors created by Encode
func (e *Encoder) Size() int {
	return numBaseFeatures + e.subdivisions + 1
}

func (e *Encoder) Encode(s *model.DerivedSample) model.FeatureVector {
	ret := make(model.FeatureVector, e.Size())
	ret[model.FeatSpeed] = s.Speed
	ret[model.FeatThrottle] = s.Throttle
	ret[model.FeatBrake] = s.Brake
	ret[model.FeatRPM] = s.RPM
	if s.DRS >= drsActiveThreshold {
		ret[model.FeatDRS] = 1
	}
	ret[model.FeatGear] = float64(s.Gear)
	e.subdivide(s.TrackPercent, ret[numBaseFeatures:])
	return ret
}

// Subdivision returns the soft bucket encoding of a track percentage.
func (e *Encoder) Subdivision(p float64) []float64 {
	ret := make([]float64, e.subdivisions+1)
	e.subdivide(p, ret)
	return ret
}

// subdivide splits the weight between the two slots surrounding p*K.
// dst must have a length of K+1.
func (e *Encoder) subdivide(p float64, dst []float64) {
	k := float64(e.subdivisions)
	scaled := math.Max(0, math.Min(p, 1)) * k
	idx := int(math.Ceil(scaled))
	idx = max(1, min(idx, e.subdivisions))
	dst[idx-1] = float64(idx) - scaled
	dst[idx] = 1 - dst[idx-1]
}
