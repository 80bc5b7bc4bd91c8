package replay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/features"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/predict"
)

const DefaultInterval = 100 * time.Millisecond

var ErrExhausted = errors.New("no more data")

// EmitHook is called for every emission while the session is still locked.
// Hooks must not block.
type EmitHook func(e *model.Emission)

// Session replays an immutable sequence of derived samples one at a time.
// Concurrent callers of Next are served in arrival order, successive
// emissions are at least the configured interval apart.
type Session struct {
	id      uuid.UUID
	samples []model.DerivedSample
	info    map[string]any
	encoder *features.Encoder
	advisor *predict.Advisor
	hooks   []EmitHook
	l       *log.Logger
	metrics *sessionMetrics

	interval atomic.Int64

	// guards idx and nextEligible. A buffered channel is used instead of a
	// mutex so waiting callers can give up on context cancellation.
	sem          chan struct{}
	idx          int
	nextEligible time.Time
}

type Option func(s *Session)

func WithID(id uuid.UUID) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithInfo sets the info block attached to every emission.
// The map must not be modified afterwards.
func WithInfo(info map[string]any) Option {
	return func(s *Session) {
		s.info = info
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval.Store(int64(d))
	}
}

// WithAdvisor enables advisory decoration of emissions
func WithAdvisor(encoder *features.Encoder, advisor *predict.Advisor) Option {
	return func(s *Session) {
		s.encoder = encoder
		s.advisor = advisor
	}
}

func WithEmitHook(hook EmitHook) Option {
	return func(s *Session) {
		s.hooks = append(s.hooks, hook)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.l = l
	}
}

// NewSession creates a session for samples. The samples must not be modified
// after this call.
func NewSession(samples []model.DerivedSample, opts ...Option) *Session {
	ret := &Session{
		samples:      samples,
		sem:          make(chan struct{}, 1),
		nextEligible: time.Now(),
		l:            log.Default().Named("replay"),
	}
	ret.interval.Store(int64(DefaultInterval))
	for _, opt := range opts {
		opt(ret)
	}
	if ret.id == uuid.Nil {
		ret.id = uuid.Must(uuid.NewV4())
	}
	ret.metrics = newSessionMetrics(ret)
	return ret
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Len() int {
	return len(s.samples)
}

func (s *Session) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the pacing interval. It applies to the next emission
// computed after the call.
func (s *Session) SetInterval(d time.Duration) {
	s.interval.Store(int64(d))
	s.l.Info("pacing interval changed", log.Duration("interval", d))
}

// Remaining returns the number of samples not yet emitted.
func (s *Session) Remaining(ctx context.Context) (int, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()
	return len(s.samples) - s.idx, nil
}

// Next returns the next sample. It blocks until the pacing interval since the
// previous emission has passed. ErrExhausted is returned once all samples are
// emitted. If ctx is done before the sample is emitted, the cursor is left
// untouched and ctx.Err() is returned.
func (s *Session) Next(ctx context.Context) (*model.Emission, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	if s.idx >= len(s.samples) {
		s.metrics.exhausted(ctx)
		return nil, ErrExhausted
	}

	e := &model.Emission{
		Index:  s.idx,
		Total:  len(s.samples),
		Sample: s.samples[s.idx],
		Info:   s.info,
	}
	s.decorate(ctx, e)

	waitStart := time.Now()
	if err := s.waitUntil(ctx, s.nextEligible); err != nil {
		s.l.Debug("emission cancelled", log.Int("idx", s.idx), log.ErrorField(err))
		return nil, err
	}
	s.metrics.waited(ctx, time.Since(waitStart))

	s.idx++
	s.nextEligible = time.Now().Add(s.Interval())
	s.metrics.emitted(ctx)
	for _, hook := range s.hooks {
		hook(e)
	}
	return e, nil
}

func (s *Session) decorate(ctx context.Context, e *model.Emission) {
	if s.advisor == nil || s.encoder == nil {
		return
	}
	advisory, err := s.advisor.Advise(ctx, s.encoder.Encode(&e.Sample))
	if err != nil {
		s.metrics.advisoryFailed(ctx)
		s.l.Warn("advisory omitted", log.Int("idx", e.Index), log.ErrorField(err))
		return
	}
	e.Advisory = omit.From(*advisory)
}

func (s *Session) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlock() {
	<-s.sem
}

func (s *Session) waitUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
