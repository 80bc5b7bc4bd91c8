//nolint:funlen // ok for tests
package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/telemetry-replay/pkg/features"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/predict"
)

func testSamples(n int) []model.DerivedSample {
	ret := make([]model.DerivedSample, n)
	for i := range ret {
		ret[i].Lap = 1
		ret[i].TrackPercent = float64(i) / float64(n)
		ret[i].Speed = float64(100 + i)
	}
	return ret
}

type constPredictor struct{ err error }

func (p constPredictor) Predict(_ context.Context, _ model.FeatureVector) (float64, error) {
	return 0.01, p.err
}

//nolint:whitespace // editor/linter issue
func (p constPredictor) GradientStep(_ context.Context, fv model.FeatureVector) (
	model.FeatureVector, error,
) {
	ret := append(model.FeatureVector{}, fv...)
	ret[model.FeatSpeed] += 5
	return ret, p.err
}

func TestNextUntilExhausted(t *testing.T) {
	samples := testSamples(5)
	s := NewSession(samples, WithInterval(time.Millisecond))
	ctx := context.Background()
	for i := range samples {
		e, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, e.Index)
		assert.Equal(t, len(samples), e.Total)
		assert.Equal(t, samples[i], e.Sample)
	}
	for range 3 {
		e, err := s.Next(ctx)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Nil(t, e)
	}
	remaining, err := s.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestNextEmptySession(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestNextConcurrentCallers(t *testing.T) {
	const n = 50
	var order []int
	s := NewSession(testSamples(n),
		WithInterval(time.Millisecond),
		WithEmitHook(func(e *model.Emission) {
			// hooks run inside the critical section
			order = append(order, e.Index)
		}))

	received := make(chan int, n)
	wg := sync.WaitGroup{}
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, err := s.Next(context.Background())
				if errors.Is(err, ErrExhausted) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				received <- e.Index
			}
		}()
	}
	wg.Wait()
	close(received)

	seen := make(map[int]bool)
	for idx := range received {
		assert.False(t, seen[idx], "index %d emitted twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, n)
	require.Len(t, order, n)
	for i, idx := range order {
		assert.Equal(t, i, idx)
	}
}

func TestNextServesCallersInArrivalOrder(t *testing.T) {
	const n = 6
	s := NewSession(testSamples(n), WithInterval(time.Millisecond))
	ctx := context.Background()

	// keep the session busy while the callers line up
	require.NoError(t, s.lock(ctx))
	got := make([]int, n)
	wg := sync.WaitGroup{}
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.Next(ctx)
			if assert.NoError(t, err) {
				got[i] = e.Index
			}
		}()
		// give caller i time to block before the next one arrives
		time.Sleep(20 * time.Millisecond)
	}
	s.unlock()
	wg.Wait()

	for i := range n {
		assert.Equal(t, i, got[i], "caller %d", i)
	}
}

func TestNextPacing(t *testing.T) {
	const interval = 30 * time.Millisecond
	s := NewSession(testSamples(4), WithInterval(interval))
	var last time.Time
	for i := range 4 {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
		now := time.Now()
		if i > 0 {
			assert.GreaterOrEqual(t, now.Sub(last), interval-time.Millisecond,
				"emission %d", i)
		}
		last = now
	}
}

func TestNextFirstEmissionIsImmediate(t *testing.T) {
	s := NewSession(testSamples(1), WithInterval(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.Next(ctx)
	assert.NoError(t, err)
}

func TestNextCancelledLeavesCursor(t *testing.T) {
	s := NewSession(testSamples(3), WithInterval(50*time.Millisecond))
	e, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, e.Index)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = s.Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	remaining, err := s.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	e, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.Index)
}

func TestNextWaitingCallerCancelled(t *testing.T) {
	s := NewSession(testSamples(3), WithInterval(200*time.Millisecond))
	_, err := s.Next(context.Background())
	require.NoError(t, err)

	// the first caller holds the session while waiting for the interval
	done := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Remaining(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, <-done)
	remaining, err := s.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestSetInterval(t *testing.T) {
	s := NewSession(testSamples(3))
	assert.Equal(t, DefaultInterval, s.Interval())
	s.SetInterval(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, s.Interval())

	start := time.Now()
	for range 3 {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), DefaultInterval)
}

func TestNextAdvisory(t *testing.T) {
	enc := features.NewEncoder()
	tests := []struct {
		name      string
		advisor   *predict.Advisor
		wantIsSet bool
	}{
		{"working predictor", predict.NewAdvisor(constPredictor{}), true},
		{"failing predictor", predict.NewAdvisor(constPredictor{err: errors.New("down")}), false},
		{"no predictor", predict.NewAdvisor(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := testSamples(2)
			s := NewSession(samples,
				WithInterval(time.Millisecond),
				WithAdvisor(enc, tt.advisor))
			for i := range samples {
				e, err := s.Next(context.Background())
				require.NoError(t, err)
				assert.Equal(t, samples[i], e.Sample)
				assert.Equal(t, tt.wantIsSet, e.Advisory.IsSet())
				if tt.wantIsSet {
					a, ok := e.Advisory.Get()
					require.True(t, ok)
					assert.InDelta(t, 5, a.SpeedDelta, 1e-9)
					assert.Len(t, a.Suggested, enc.Size())
				}
			}
		})
	}
}

func TestSessionOptions(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	info := map[string]any{"track": "test"}
	s := NewSession(testSamples(1), WithID(id), WithInfo(info))
	assert.Equal(t, id, s.ID())
	assert.Equal(t, 1, s.Len())
	e, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, info, e.Info)

	assert.NotEqual(t, uuid.Nil, NewSession(nil).ID())
}
