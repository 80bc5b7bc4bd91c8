package track

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

const (
	DefaultCornerThreshold = 150.0
	DefaultCloseThreshold  = 100.0
)

type (
	ExtractOption func(*extractor)
	extractor     struct {
		cornerThreshold float64
		closeThreshold  float64
	}
)

// WithCornerThreshold sets the deviation between the extrapolated reference
// point and the actual position which marks a corner.
func WithCornerThreshold(v float64) ExtractOption {
	return func(e *extractor) {
		e.cornerThreshold = v
	}
}

// WithCloseThreshold sets the distance to the first corner which closes the loop.
func WithCloseThreshold(v float64) ExtractOption {
	return func(e *extractor) {
		e.closeThreshold = v
	}
}

// ExtractCorners reconstructs the corner points of a closed circuit from an
// ordered trajectory.
//
// The trajectory is followed by a reference point which keeps moving into the
// last known direction (scaled to the current step length). Once the car
// deviates more than the corner threshold from that reference point a corner
// is recorded and the reference point is reset to the current position.
// Extraction stops as soon as the car returns close to the first corner.
func ExtractCorners(positions []model.Position, opts ...ExtractOption) ([]model.Position, error) {
	e := &extractor{
		cornerThreshold: DefaultCornerThreshold,
		closeThreshold:  DefaultCloseThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(positions) < 2 {
		return nil, fmt.Errorf("%w: got %d positions", ErrInsufficientTrackData, len(positions))
	}
	corners := e.extract(positions)
	if len(corners) < 2 {
		return nil, fmt.Errorf("%w: found %d corners in %d positions",
			ErrInsufficientTrackData, len(corners), len(positions))
	}
	ret := make([]model.Position, len(corners))
	for i, c := range corners {
		ret[i] = model.Position{X: c.X, Y: c.Y}
	}
	return ret, nil
}

func (e *extractor) extract(positions []model.Position) []r2.Vec {
	corners := make([]r2.Vec, 0)
	direction := r2.Sub(toVec(positions[1]), toVec(positions[0]))
	ref := toVec(positions[0])

	for i := 1; i < len(positions); i++ {
		prev := toVec(positions[i-1])
		cur := toVec(positions[i])
		step := r2.Sub(cur, prev)

		if magDir := r2.Norm(direction); magDir > 0 {
			direction = r2.Scale(r2.Norm(step)/magDir, direction)
		} else {
			direction = step
		}
		ref = r2.Add(ref, direction)

		if len(corners) > 1 && r2.Norm(r2.Sub(corners[0], cur)) < e.closeThreshold {
			break
		}

		if r2.Norm(r2.Sub(ref, cur)) > e.cornerThreshold {
			direction = step
			ref = cur
			if len(corners) == 0 || corners[len(corners)-1] != cur {
				corners = append(corners, cur)
			}
		}
	}
	return corners
}

func toVec(p model.Position) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}
