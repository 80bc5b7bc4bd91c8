package replay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/replay"
)

const (
	ServiceName   = "replay.v1.ReplayService"
	NextProcedure = "/" + ServiceName + "/Next"
)

// Source provides the emissions served by the replay service
type Source interface {
	Next(ctx context.Context) (*model.Emission, error)
}

func NewServer(opts ...Option) *replayServer {
	ret := &replayServer{
		log: log.Default().Named("grpc.replay"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("trs")
	}
	return ret
}

type Option func(*replayServer)

func WithSource(src Source) Option {
	return func(srv *replayServer) {
		srv.source = src
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(srv *replayServer) {
		srv.tracer = tracer
	}
}

type replayServer struct {
	source Source
	log    *log.Logger
	tracer trace.Tracer
}

// NewHandler returns the mount path and the handler for the replay service
func NewHandler(srv *replayServer, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(NextProcedure, connect.NewUnaryHandler(NextProcedure, srv.Next, opts...))
	return "/" + ServiceName + "/", mux
}

//nolint:whitespace // can't make both editor and linter happy
func (s *replayServer) Next(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	ctx, span := s.tracer.Start(ctx, "replay.Next")
	defer span.End()

	e, err := s.source.Next(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	span.SetAttributes(attribute.Int("index", e.Index))
	msg, err := EmissionToStruct(e)
	if err != nil {
		s.log.Error("could not convert emission", log.ErrorField(err))
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// EmissionToStruct converts an emission into its wire representation
func EmissionToStruct(e *model.Emission) (*structpb.Struct, error) {
	data, err := json.Marshal(e.ToJSONValue())
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, replay.ErrExhausted):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
