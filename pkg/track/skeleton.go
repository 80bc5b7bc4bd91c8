package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

// Skeleton is a closed polyline approximating the racing line.
// It is immutable after creation and safe for concurrent use.
type Skeleton struct {
	points     []r2.Vec
	segLen     []float64
	cumulative []float64 // length of all segments before segment i
	total      float64
}

// Projection is the result of projecting a position onto the skeleton.
// A vertex belongs to the segment starting there.
type Projection struct {
	Distance float64 // distance between position and closest point
	Percent  float64 // [0,1)
	Segment  int     // index of the segment containing the closest point
}

// NewSkeleton creates a skeleton from corner points. Consecutive duplicates
// (including last/first) are removed.
func NewSkeleton(corners []model.Position) (*Skeleton, error) {
	points := make([]r2.Vec, 0, len(corners))
	for _, c := range corners {
		v := toVec(c)
		if len(points) > 0 && points[len(points)-1] == v {
			continue
		}
		points = append(points, v)
	}
	for len(points) > 1 && points[len(points)-1] == points[0] {
		points = points[:len(points)-1]
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: %d distinct points", ErrEmptySkeleton, len(points))
	}

	s := &Skeleton{
		points:     points,
		segLen:     make([]float64, len(points)),
		cumulative: make([]float64, len(points)),
	}
	for i := range points {
		s.cumulative[i] = s.total
		s.segLen[i] = r2.Norm(r2.Sub(points[(i+1)%len(points)], points[i]))
		s.total += s.segLen[i]
	}
	if s.total <= 0 {
		return nil, fmt.Errorf("%w: zero perimeter", ErrEmptySkeleton)
	}
	return s, nil
}

func (s *Skeleton) Len() int {
	return len(s.points)
}

// Perimeter returns the total length of the closed polyline
func (s *Skeleton) Perimeter() float64 {
	return s.total
}

// CumulativeLength returns the track length from vertex 0 up to vertex i.
func (s *Skeleton) CumulativeLength(i int) float64 {
	return s.cumulative[i]
}

func (s *Skeleton) SegmentLength(i int) float64 {
	return s.segLen[i]
}

func (s *Skeleton) Points() []model.Position {
	ret := make([]model.Position, len(s.points))
	for i, p := range s.points {
		ret[i] = model.Position{X: p.X, Y: p.Y}
	}
	return ret
}

// Project finds the closest point on the skeleton for pos.
// If local is true the percentage refers to the winning segment only,
// otherwise to the whole track.
func (s *Skeleton) Project(pos model.Position, local bool) (Projection, error) {
	if s == nil || len(s.points) < 2 {
		return Projection{}, ErrEmptySkeleton
	}
	p := toVec(pos)
	best := Projection{Distance: math.Inf(1)}
	bestAlong, bestT := 0.0, 0.0
	for i, start := range s.points {
		end := s.points[(i+1)%len(s.points)]
		closest, t := closestOnSegment(p, start, end)
		d := r2.Norm(r2.Sub(p, closest))
		if d < best.Distance {
			best.Distance = d
			best.Segment = i
			bestAlong = r2.Norm(r2.Sub(closest, start))
			bestT = t
		}
	}
	if bestT >= 1 {
		best.Segment = (best.Segment + 1) % len(s.points)
		bestAlong = 0
	}
	if local {
		if s.segLen[best.Segment] > 0 {
			best.Percent = normalize(bestAlong / s.segLen[best.Segment])
		}
	} else {
		best.Percent = normalize((s.cumulative[best.Segment] + bestAlong) / s.total)
	}
	return best, nil
}

// closestOnSegment also returns the position of the closest point as
// fraction of the segment
func closestOnSegment(p, start, end r2.Vec) (r2.Vec, float64) {
	seg := r2.Sub(end, start)
	lenSq := r2.Dot(seg, seg)
	if lenSq == 0 {
		return start, 0
	}
	t := r2.Dot(r2.Sub(p, start), seg) / lenSq
	t = math.Max(0, math.Min(1, t))
	return r2.Add(start, r2.Scale(t, seg)), t
}

// normalize maps v into [0,1)
func normalize(v float64) float64 {
	v -= math.Floor(v)
	if v >= 1 {
		return 0
	}
	return v
}
