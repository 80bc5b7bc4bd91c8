package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

func TestSize(t *testing.T) {
	assert.Equal(t, 15, NewEncoder().Size())
	assert.Equal(t, 11, NewEncoder(WithSubdivisions(4)).Size())
	assert.Equal(t, 15, NewEncoder(WithSubdivisions(0)).Size())
}

func TestSubdivision(t *testing.T) {
	enc := NewEncoder()
	tests := []struct {
		name string
		p    float64
		want []float64
	}{
		{"start", 0, []float64{1, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"within first bucket", 0.1, []float64{0.2, 0.8, 0, 0, 0, 0, 0, 0, 0}},
		{"boundary", 0.5, []float64{0, 0, 0, 0, 1, 0, 0, 0, 0}},
		{"end", 0.99, []float64{0, 0, 0, 0, 0, 0, 0, 0.08, 0.92}},
		{"above range", 1.5, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"below range", -0.5, []float64{1, 0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, enc.Subdivision(tt.p), 1e-9)
		})
	}
}

func TestSubdivisionProperties(t *testing.T) {
	for _, k := range []int{1, 3, 8, 16} {
		enc := NewEncoder(WithSubdivisions(k))
		for i := 0; i <= 1000; i++ {
			p := float64(i) / 1000
			sub := enc.Subdivision(p)
			require.Len(t, sub, k+1)
			sum := 0.0
			nonZero := []int{}
			for idx, v := range sub {
				sum += v
				if v != 0 {
					nonZero = append(nonZero, idx)
				}
			}
			assert.InDelta(t, 1, sum, 1e-9, "k=%d p=%v", k, p)
			require.LessOrEqual(t, len(nonZero), 2, "k=%d p=%v", k, p)
			if len(nonZero) == 2 {
				assert.Equal(t, nonZero[0]+1, nonZero[1], "k=%d p=%v", k, p)
			}
		}
	}
}

func TestEncode(t *testing.T) {
	enc := NewEncoder()
	s := model.DerivedSample{
		RawSample: model.RawSample{
			Speed: 250, Throttle: 0.9, Brake: 0.1, RPM: 11000, Gear: 6, DRS: 12,
		},
		TrackPercent: 0.1,
	}
	got := enc.Encode(&s)
	require.Len(t, got, enc.Size())
	assert.InDeltaSlice(t,
		[]float64{250, 0.9, 0.1, 11000, 1, 6, 0.2, 0.8, 0, 0, 0, 0, 0, 0, 0},
		[]float64(got), 1e-9)

	s.DRS = 9
	assert.InDelta(t, 0, enc.Encode(&s)[model.FeatDRS], 0)
}
