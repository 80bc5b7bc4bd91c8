//nolint:funlen // ok for tests
package track

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

func square() []model.Position {
	return []model.Position{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
}

func TestProjectSquare(t *testing.T) {
	sk, err := NewSkeleton(square())
	require.NoError(t, err)
	assert.InDelta(t, 40, sk.Perimeter(), 1e-9)

	tests := []struct {
		name     string
		pos      model.Position
		local    bool
		percent  float64
		distance float64
		segment  int
	}{
		{"bottom edge", model.Position{X: 5}, false, 0.125, 0, 0},
		{"right edge", model.Position{X: 10, Y: 5}, false, 0.375, 0, 1},
		{"off track", model.Position{X: 5, Y: -3}, false, 0.125, 3, 0},
		{"local bottom edge", model.Position{X: 5}, true, 0.5, 0, 0},
		{"local right edge", model.Position{X: 10, Y: 2.5}, true, 0.25, 0, 1},
		{"closing segment", model.Position{X: 0, Y: 5}, false, 0.875, 0, 3},
		{"start vertex", model.Position{}, false, 0, 0, 0},
		{"outside corner", model.Position{X: 12, Y: -2}, false, 0.25, math.Sqrt(8), 1},
		{"local end vertex", model.Position{X: 10}, true, 0, 0, 1},
		{"local start vertex", model.Position{}, true, 0, 0, 0},
		{"global closing vertex", model.Position{X: -1, Y: -1}, false, 0, math.Sqrt(2), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sk.Project(tt.pos, tt.local)
			require.NoError(t, err)
			assert.InDelta(t, tt.percent, got.Percent, 1e-9)
			assert.InDelta(t, tt.distance, got.Distance, 1e-9)
			assert.Equal(t, tt.segment, got.Segment)
		})
	}
}

func TestProjectAtVertex(t *testing.T) {
	corners := []model.Position{
		{X: 0, Y: 0}, {X: 100, Y: 10}, {X: 180, Y: 90}, {X: 60, Y: 140}, {X: -20, Y: 60},
	}
	sk, err := NewSkeleton(corners)
	require.NoError(t, err)
	for i, c := range corners {
		got, err := sk.Project(c, false)
		require.NoError(t, err)
		assert.InDelta(t, 0, got.Distance, 1e-9)
		assert.InDelta(t, sk.CumulativeLength(i)/sk.Perimeter(), got.Percent, 1e-9,
			"vertex %d", i)
		assert.Equal(t, i, got.Segment, "vertex %d", i)

		local, err := sk.Project(c, true)
		require.NoError(t, err)
		assert.InDelta(t, 0, local.Percent, 1e-9, "vertex %d", i)
		assert.Equal(t, i, local.Segment, "vertex %d", i)
	}
}

func TestProjectRange(t *testing.T) {
	sk, err := NewSkeleton([]model.Position{
		{X: 0, Y: 0}, {X: 300, Y: -20}, {X: 350, Y: 200}, {X: 100, Y: 260},
	})
	require.NoError(t, err)
	r := rand.New(rand.NewPCG(1, 2))
	for range 1000 {
		pos := model.Position{X: r.Float64()*800 - 200, Y: r.Float64()*800 - 200}
		for _, local := range []bool{false, true} {
			got, err := sk.Project(pos, local)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Percent, 0.0)
			assert.Less(t, got.Percent, 1.0)
		}
	}
}

func TestProjectTieFirstSegmentWins(t *testing.T) {
	sk, err := NewSkeleton(square())
	require.NoError(t, err)
	// the center has the same distance to all segments
	got, err := sk.Project(model.Position{X: 5, Y: 5}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Segment)
	assert.InDelta(t, 0.125, got.Percent, 1e-9)
}

func TestNewSkeleton(t *testing.T) {
	tests := []struct {
		name    string
		corners []model.Position
		wantLen int
		wantErr error
	}{
		{"square", square(), 4, nil},
		{"duplicates removed", []model.Position{
			{X: 0}, {X: 0}, {X: 10}, {X: 10, Y: 10}, {X: 0},
		}, 3, nil},
		{"two points", []model.Position{{X: 0}, {X: 10}}, 2, nil},
		{"single point", []model.Position{{X: 1, Y: 1}}, 0, ErrEmptySkeleton},
		{"all equal", []model.Position{{X: 1}, {X: 1}, {X: 1}}, 0, ErrEmptySkeleton},
		{"empty", nil, 0, ErrEmptySkeleton},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sk, err := NewSkeleton(tt.corners)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, sk.Len())
			assert.Len(t, sk.Points(), tt.wantLen)
		})
	}
}

func TestProjectEmptySkeleton(t *testing.T) {
	var sk *Skeleton
	_, err := sk.Project(model.Position{}, false)
	assert.ErrorIs(t, err, ErrEmptySkeleton)
}

func TestNormalize(t *testing.T) {
	assert.InDelta(t, 0, normalize(1), 0)
	assert.InDelta(t, 0.25, normalize(1.25), 1e-12)
	assert.InDelta(t, 0.75, normalize(-0.25), 1e-12)
	assert.InDelta(t, 0.5, normalize(0.5), 0)
}
