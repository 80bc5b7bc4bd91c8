package replay

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/telemetry-replay/log"
)

type sessionMetrics struct {
	attrs             metric.MeasurementOption
	emitCount         metric.Int64Counter
	exhaustedCount    metric.Int64Counter
	advisoryFailCount metric.Int64Counter
	waitHist          metric.Float64Histogram
}

//nolint:funlen // by design
func newSessionMetrics(s *Session) *sessionMetrics {
	meter := otel.GetMeterProvider().Meter("trs.replay")
	ret := &sessionMetrics{
		attrs: metric.WithAttributes(attribute.String("session", s.id.String())),
	}
	logErr := func(name string, err error) {
		if err != nil {
			s.l.Error("failed to register metric",
				log.String("metric", name),
				log.ErrorField(err))
		}
	}
	var err error
	ret.emitCount, err = meter.Int64Counter("trs.replay.emitted",
		metric.WithDescription("Number of emitted samples"),
		metric.WithUnit("{count}"))
	logErr("trs.replay.emitted", err)
	ret.exhaustedCount, err = meter.Int64Counter("trs.replay.exhausted",
		metric.WithDescription("Number of requests after the end of data"),
		metric.WithUnit("{count}"))
	logErr("trs.replay.exhausted", err)
	ret.advisoryFailCount, err = meter.Int64Counter("trs.replay.advisory.failed",
		metric.WithDescription("Number of emissions without advisory"),
		metric.WithUnit("{count}"))
	logErr("trs.replay.advisory.failed", err)
	ret.waitHist, err = meter.Float64Histogram("trs.replay.wait",
		metric.WithDescription("Time spent waiting for the pacing interval"),
		metric.WithUnit("s"))
	logErr("trs.replay.wait", err)
	return ret
}

func (m *sessionMetrics) emitted(ctx context.Context) {
	if m.emitCount != nil {
		m.emitCount.Add(ctx, 1, m.attrs)
	}
}

func (m *sessionMetrics) exhausted(ctx context.Context) {
	if m.exhaustedCount != nil {
		m.exhaustedCount.Add(ctx, 1, m.attrs)
	}
}

func (m *sessionMetrics) advisoryFailed(ctx context.Context) {
	if m.advisoryFailCount != nil {
		m.advisoryFailCount.Add(ctx, 1, m.attrs)
	}
}

func (m *sessionMetrics) waited(ctx context.Context, d time.Duration) {
	if m.waitHist != nil {
		m.waitHist.Record(ctx, d.Seconds(), m.attrs)
	}
}
