package util

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/telemetry-replay/log"
)

const TraceIDHeader = "X-Trace-ID"

// NewTraceIDInterceptor exposes the trace id of the current span to the
// client, both on success and on error responses. Every call is logged on
// debug level.
func NewTraceIDInterceptor(l *log.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)
			l.Debug("unary call",
				log.String("procedure", req.Spec().Procedure),
				log.String("peer", req.Peer().Addr),
				log.String("code", codeOf(err)),
				log.Duration("duration", time.Since(start)))

			spanCtx := trace.SpanFromContext(ctx).SpanContext()
			if !spanCtx.IsValid() {
				return res, err
			}
			traceID := spanCtx.TraceID().String()
			if err != nil {
				var ce *connect.Error
				if errors.As(err, &ce) {
					ce.Meta().Set(TraceIDHeader, traceID)
				}
				return nil, err
			}
			res.Header().Set(TraceIDHeader, traceID)
			return res, nil
		}
	}
}

func codeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return connect.CodeOf(err).String()
}
