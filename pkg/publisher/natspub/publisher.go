package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/utils/broadcast"
)

// Conn is the part of *nats.Conn used by the publisher
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher forwards every emission of a broadcast server to a NATS subject
type Publisher struct {
	conn    Conn
	subject string
	l       *log.Logger
	wg      sync.WaitGroup
}

type Option func(p *Publisher)

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

// Subject returns the subject emissions of a session are published on
func Subject(prefix, sessionID string) string {
	return fmt.Sprintf("%s.%s", prefix, sessionID)
}

func NewPublisher(conn Conn, subject string, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:    conn,
		subject: subject,
		l:       log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Start consumes the broadcast until ctx is done or the broadcast is closed.
//
//nolint:whitespace // editor/linter issue
func (p *Publisher) Start(
	ctx context.Context,
	bs broadcast.Server[*model.Emission],
) {
	ch := bs.Subscribe()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				bs.CancelSubscription(ch)
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := p.Publish(e); err != nil {
					p.l.Warn("could not publish emission",
						log.String("subject", p.subject),
						log.Int("index", e.Index),
						log.ErrorField(err))
				}
			}
		}
	}()
}

// Wait blocks until the goroutine started by Start has finished
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) Publish(e *model.Emission) error {
	data, err := json.Marshal(e.ToJSONValue())
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}
