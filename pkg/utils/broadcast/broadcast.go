package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/telemetry-replay/log"
)

// Server distributes each message read from a source channel to all current
// subscribers. A subscriber that does not take a message within the skip
// timeout misses that message.
type Server[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type server[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	skipTimeout    time.Duration
	logger         *log.Logger
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
}

type Option[T any] func(*server[T])

// WithSkipTimeout sets how long a message waits for a slow subscriber
func WithSkipTimeout[T any](d time.Duration) Option[T] {
	return func(b *server[T]) {
		b.skipTimeout = d
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *server[T]) {
		b.logger = l
	}
}

//nolint:whitespace // false positive
func NewServer[T any](
	ctx context.Context,
	name string,
	source <-chan T,
	opts ...Option[T],
) Server[T] {
	ctx, cancel := context.WithCancel(ctx)
	b := &server[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		skipTimeout:    50 * time.Millisecond,
		logger:         log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

func (b *server[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *server[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *server[T]) Close() {
	b.logger.Info("Closing broadcast server",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
}

func (b *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("trs.broadcast.%s", b.name))
	register := func(metricName, desc string, value *atomic.Int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(),
					metric.WithAttributes(attribute.String("name", b.name)))
				return nil
			})); err != nil {
			b.logger.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("trs.broadcast.rcv", "Number of received messages", &b.numRcv)
	register("trs.broadcast.snd", "Number of sent messages", &b.numSnd)
	register("trs.broadcast.skip", "Number of skipped messages", &b.numSkip)
	register("trs.broadcast.listener", "Number of listeners", &b.numListener)
}

//nolint:cyclop // by design
func (b *server[T]) serve() {
	defer func() {
		b.logger.Debug("Closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.numListener.Store(int64(len(b.listeners)))
			b.logger.Debug("removed listener",
				log.String("name", b.name), log.Int("len", len(b.listeners)))
		case msg, ok := <-b.source:
			if !ok {
				b.logger.Debug("source closed", log.String("name", b.name))
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd.Add(1)
				case <-time.After(b.skipTimeout):
					b.numSkip.Add(1)
				}
			}
		}
	}
}
