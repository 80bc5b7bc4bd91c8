package lap

import (
	"time"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
)

const (
	DefaultWindow         = time.Second
	DefaultNominalLapTime = 93 * time.Second
)

// LapProcessor assigns lap numbers, progress rates and estimated lap times
// to samples which already carry their track percentage.
type LapProcessor struct {
	window         time.Duration
	nominalLapTime time.Duration
}

type LapProcessorOption func(lp *LapProcessor)

// WithWindow sets the minimum time span used for the rate estimation
func WithWindow(d time.Duration) LapProcessorOption {
	return func(lp *LapProcessor) {
		lp.window = d
	}
}

func WithNominalLapTime(d time.Duration) LapProcessorOption {
	return func(lp *LapProcessor) {
		lp.nominalLapTime = d
	}
}

func NewLapProcessor(opts ...LapProcessorOption) *LapProcessor {
	ret := &LapProcessor{
		window:         DefaultWindow,
		nominalLapTime: DefaultNominalLapTime,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Process updates Lap, PercentPerSecond and EstimatedLapTime in place.
// Non-monotonic timestamps are not rejected, the rates of the affected
// samples are meaningless though.
func (lp *LapProcessor) Process(samples []model.DerivedSample) {
	lap := 1
	prevPercent := 0.0
	for i := range samples {
		cur := &samples[i]
		if cur.TrackPercent < prevPercent {
			lap++
		}
		cur.Lap = lap
		prevPercent = cur.TrackPercent

		cur.PercentPerSecond = lp.rate(samples, i)
		cur.EstimatedLapTime = lp.estimateLapTime(cur.PercentPerSecond)
	}
}

// rate computes the progress per second between sample i and the first sample
// at least one window later. Near the end of the data the last sample is used
// even if it is closer than the window.
func (lp *LapProcessor) rate(samples []model.DerivedSample, i int) float64 {
	cur := &samples[i]
	j := i + 1
	for j < len(samples) && samples[j].Date.Sub(cur.Date) < lp.window {
		j++
	}
	if j == len(samples) {
		j--
		if j == i {
			return 0
		}
	}
	dt := samples[j].Date.Sub(cur.Date).Seconds()
	if dt == 0 {
		return 0
	}
	return (samples[j].TrackPercent - cur.TrackPercent) / dt
}

// estimateLapTime blends the nominal lap time with the lap time implied by
// the current rate: (nominal + 1/rate) / 2
func (lp *LapProcessor) estimateLapTime(rate float64) float64 {
	nominal := lp.nominalLapTime.Seconds()
	if rate <= 0 {
		return nominal
	}
	return (nominal + 1/rate) / 2
}
