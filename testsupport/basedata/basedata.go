package basedata

import (
	"context"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
	sessionrepos "github.com/mpapenbr/telemetry-replay/pkg/repository/session"
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

type CircuitParam struct {
	Origin   model.Position // lower left corner
	Width    float64
	Height   float64
	Step     float64       // distance between two samples
	Interval time.Duration // time between two samples
	Laps     int
	Speed    float64
}

func DefaultCircuitParam() CircuitParam {
	return CircuitParam{
		Origin:   model.Position{X: 500, Y: 500, Z: 10},
		Width:    1000,
		Height:   600,
		Step:     10,
		Interval: 50 * time.Millisecond,
		Laps:     3,
		Speed:    200,
	}
}

// RectangleCircuit creates samples of a car driving counter-clockwise around
// a rectangle, starting at the lower left corner.
func RectangleCircuit(p CircuitParam) []model.RawSample {
	corners := []model.Position{
		{X: p.Origin.X, Y: p.Origin.Y},
		{X: p.Origin.X + p.Width, Y: p.Origin.Y},
		{X: p.Origin.X + p.Width, Y: p.Origin.Y + p.Height},
		{X: p.Origin.X, Y: p.Origin.Y + p.Height},
	}
	ret := make([]model.RawSample, 0)
	ts := TestTime()
	for lap := 0; lap < p.Laps; lap++ {
		for i, start := range corners {
			end := corners[(i+1)%len(corners)]
			dx, dy := end.X-start.X, end.Y-start.Y
			length := abs(dx) + abs(dy)
			for d := 0.0; d < length; d += p.Step {
				f := d / length
				ret = append(ret, model.RawSample{
					Date:     ts,
					Position: model.Position{X: start.X + f*dx, Y: start.Y + f*dy, Z: p.Origin.Z},
					Speed:    p.Speed,
					Throttle: 100,
					RPM:      11000,
					Gear:     7,
					DRS:      12,
				})
				ts = ts.Add(p.Interval)
			}
		}
	}
	return ret
}

func Positions(samples []model.RawSample) []model.Position {
	ret := make([]model.Position, len(samples))
	for i := range samples {
		ret[i] = samples[i].Position
	}
	return ret
}

// SampleSession returns a small processed session usable for persistence tests
func SampleSession() *model.StoredSession {
	id := uuid.Must(uuid.NewV4())
	samples := make([]model.DerivedSample, 0, 4)
	for i := range 4 {
		samples = append(samples, model.DerivedSample{
			RawSample: model.RawSample{
				Date:     TestTime().Add(time.Duration(i) * time.Second),
				Position: model.Position{X: float64(i * 10), Y: 0, Z: 1},
				Speed:    100,
				Gear:     4,
			},
			TrackPercent:     float64(i) * 0.25,
			Lap:              1,
			PercentPerSecond: 0.25,
			EstimatedLapTime: 48.5,
		})
	}
	return &model.StoredSession{
		ID:       id,
		Name:     "sample",
		Created:  TestTime(),
		Skeleton: []model.Position{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		Info:     map[string]any{"track": "testtrack"},
		Samples:  samples,
	}
}

func CreateSampleSession(pool *pgxpool.Pool) *model.StoredSession {
	s := SampleSession()
	err := pgx.BeginFunc(context.Background(), pool, func(tx pgx.Tx) error {
		return sessionrepos.Create(context.Background(), tx, s)
	})
	if err != nil {
		log.Fatalf("CreateSampleSession: %v\n", err)
	}
	return s
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
