package processing

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/processing/lap"
	"github.com/mpapenbr/telemetry-replay/pkg/track"
)

// FilterParam controls which raw samples are used.
// Samples near the coordinate origin are recorded while the car is not
// tracked, slow samples are mostly pit lane or formation laps.
type FilterParam struct {
	MinCoordinate float64
	MinSpeed      float64
	SkipLeading   int
}

var ErrInvalidFilter = errors.New("invalid filter parameter")

func DefaultFilterParam() FilterParam {
	return FilterParam{MinCoordinate: 1, MinSpeed: 50}
}

func (f FilterParam) Validate() error {
	if f.SkipLeading < 0 {
		return fmt.Errorf("%w: skip leading must not be negative (%d)",
			ErrInvalidFilter, f.SkipLeading)
	}
	return nil
}

type Processor struct {
	filter       FilterParam
	extractOpts  []track.ExtractOption
	lapProcessor *lap.LapProcessor
	l            *log.Logger
}

type ProcessorOption func(proc *Processor)

func WithFilter(f FilterParam) ProcessorOption {
	return func(proc *Processor) {
		proc.filter = f
	}
}

func WithExtractOptions(opts ...track.ExtractOption) ProcessorOption {
	return func(proc *Processor) {
		proc.extractOpts = append(proc.extractOpts, opts...)
	}
}

func WithLapProcessor(lp *lap.LapProcessor) ProcessorOption {
	return func(proc *Processor) {
		proc.lapProcessor = lp
	}
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	ret := &Processor{
		filter:       DefaultFilterParam(),
		lapProcessor: lap.NewLapProcessor(),
		l:            log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Result holds the outcome of the processing. Both the skeleton and the
// samples are read-only after creation.
type Result struct {
	Skeleton *track.Skeleton
	Samples  []model.DerivedSample
}

// Filter removes samples which are not usable for track reconstruction.
func (p *Processor) Filter(raw []model.RawSample) []model.RawSample {
	ret := lo.Filter(raw, func(s model.RawSample, _ int) bool {
		return math.Abs(s.X) > p.filter.MinCoordinate &&
			math.Abs(s.Y) > p.filter.MinCoordinate &&
			math.Abs(s.Z) > p.filter.MinCoordinate &&
			s.Speed >= p.filter.MinSpeed
	})
	return lo.Drop(ret, max(p.filter.SkipLeading, 0))
}

// Process builds the track skeleton from the raw samples and derives the
// track position data for every sample. No partial result is returned.
func (p *Processor) Process(raw []model.RawSample) (*Result, error) {
	if err := p.filter.Validate(); err != nil {
		return nil, err
	}
	filtered := p.Filter(raw)
	p.l.Debug("filtered samples",
		log.Int("raw", len(raw)),
		log.Int("filtered", len(filtered)))

	positions := lo.Map(filtered, func(s model.RawSample, _ int) model.Position {
		return s.Position
	})
	corners, err := track.ExtractCorners(positions, p.extractOpts...)
	if err != nil {
		return nil, err
	}
	skeleton, err := track.NewSkeleton(corners)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", track.ErrInsufficientTrackData, err)
	}
	p.l.Info("track skeleton created",
		log.Int("corners", skeleton.Len()),
		log.Float64("perimeter", skeleton.Perimeter()))

	samples, err := p.Derive(skeleton, filtered)
	if err != nil {
		return nil, err
	}
	return &Result{Skeleton: skeleton, Samples: samples}, nil
}

// Derive projects every sample onto the skeleton and assigns lap data.
//
//nolint:whitespace // editor/linter issue
func (p *Processor) Derive(skeleton *track.Skeleton, raw []model.RawSample) (
	[]model.DerivedSample, error,
) {
	ret := make([]model.DerivedSample, len(raw))
	for i := range raw {
		global, err := skeleton.Project(raw[i].Position, false)
		if err != nil {
			return nil, err
		}
		local, err := skeleton.Project(raw[i].Position, true)
		if err != nil {
			return nil, err
		}
		ret[i] = model.DerivedSample{
			RawSample:        raw[i],
			TrackPercent:     global.Percent,
			EdgePercent:      local.Percent,
			DistanceOffTrack: global.Distance,
		}
	}
	p.lapProcessor.Process(ret)
	return ret, nil
}
