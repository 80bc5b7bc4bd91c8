package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/track"
	"github.com/mpapenbr/telemetry-replay/testsupport/basedata"
)

func sample(x, y, z, speed float64) model.RawSample {
	return model.RawSample{Position: model.Position{X: x, Y: y, Z: z}, Speed: speed}
}

func TestProcessor_Filter(t *testing.T) {
	raw := []model.RawSample{
		sample(0, 100, 10, 100),   // x at origin
		sample(100, 0.5, 10, 100), // y at origin
		sample(100, 100, 0, 100),  // z at origin
		sample(100, 100, 10, 20),  // too slow
		sample(100, 100, 10, 50),
		sample(200, 200, 10, 100),
		sample(300, 300, 10, 100),
	}
	tests := []struct {
		name   string
		filter FilterParam
		want   int
	}{
		{"defaults", DefaultFilterParam(), 3},
		{"skip leading", FilterParam{MinCoordinate: 1, MinSpeed: 50, SkipLeading: 2}, 1},
		{"skip all", FilterParam{MinCoordinate: 1, MinSpeed: 50, SkipLeading: 10}, 0},
		{"no speed limit", FilterParam{MinCoordinate: 1}, 4},
		{"negative skip", FilterParam{MinCoordinate: 1, MinSpeed: 50, SkipLeading: -1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(WithFilter(tt.filter))
			assert.Len(t, p.Filter(raw), tt.want)
		})
	}
}

func TestProcessor_Process(t *testing.T) {
	param := basedata.DefaultCircuitParam()
	raw := basedata.RectangleCircuit(param)

	res, err := NewProcessor().Process(raw)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Skeleton.Len())
	assert.InDelta(t, 2797.93, res.Skeleton.Perimeter(), 0.1)
	require.Len(t, res.Samples, len(raw))

	for i := range res.Samples {
		s := res.Samples[i]
		assert.GreaterOrEqual(t, s.TrackPercent, 0.0)
		assert.Less(t, s.TrackPercent, 1.0)
		assert.GreaterOrEqual(t, s.EdgePercent, 0.0)
		assert.Less(t, s.EdgePercent, 1.0)
		assert.GreaterOrEqual(t, s.DistanceOffTrack, 0.0)
		if i > 0 {
			diff := s.Lap - res.Samples[i-1].Lap
			assert.True(t, diff == 0 || diff == 1, "lap jump at %d", i)
		}
	}
	last := res.Samples[len(res.Samples)-1].Lap
	assert.GreaterOrEqual(t, last, param.Laps)
	assert.LessOrEqual(t, last, param.Laps+1)
	// raw samples are carried unchanged
	assert.Equal(t, raw[10], res.Samples[10].RawSample)
}

func TestProcessor_ProcessInvalidFilter(t *testing.T) {
	raw := basedata.RectangleCircuit(basedata.DefaultCircuitParam())
	p := NewProcessor(WithFilter(FilterParam{MinCoordinate: 1, MinSpeed: 50, SkipLeading: -1}))
	res, err := p.Process(raw)
	require.ErrorIs(t, err, ErrInvalidFilter)
	assert.Nil(t, res)
}

func TestProcessor_ProcessInsufficient(t *testing.T) {
	raw := []model.RawSample{
		sample(100, 100, 10, 100),
		sample(110, 100, 10, 100),
	}
	res, err := NewProcessor().Process(raw)
	assert.ErrorIs(t, err, track.ErrInsufficientTrackData)
	assert.Nil(t, res)
}

func TestProcessor_ProcessAllFiltered(t *testing.T) {
	raw := basedata.RectangleCircuit(basedata.DefaultCircuitParam())
	p := NewProcessor(WithFilter(FilterParam{MinSpeed: 1000}))
	_, err := p.Process(raw)
	assert.ErrorIs(t, err, track.ErrInsufficientTrackData)
}

func TestProcessor_Derive(t *testing.T) {
	skeleton, err := track.NewSkeleton([]model.Position{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
	})
	require.NoError(t, err)
	ts := basedata.TestTime()
	raw := []model.RawSample{
		{Position: model.Position{X: 50, Y: -5}, Date: ts},
		{Position: model.Position{X: 100, Y: 50}, Date: ts.Add(time.Second)},
	}
	got, err := NewProcessor().Derive(skeleton, raw)
	require.NoError(t, err)
	assert.InDelta(t, 0.125, got[0].TrackPercent, 1e-9)
	assert.InDelta(t, 0.5, got[0].EdgePercent, 1e-9)
	assert.InDelta(t, 5, got[0].DistanceOffTrack, 1e-9)
	assert.InDelta(t, 0.375, got[1].TrackPercent, 1e-9)
	assert.InDelta(t, 0.25, got[1].PercentPerSecond, 1e-9)
}
