package replay

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mpapenbr/telemetry-replay/pkg/replay"
)

type Client struct {
	next *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the replay service located at baseURL
//
//nolint:whitespace // editor/linter issue
func NewClient(
	httpClient connect.HTTPClient,
	baseURL string,
	opts ...connect.ClientOption,
) *Client {
	return &Client{
		next: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient, baseURL+NextProcedure, opts...),
	}
}

// Next fetches the next emission. replay.ErrExhausted is returned once the
// server has no more data.
func (c *Client) Next(ctx context.Context) (map[string]any, error) {
	resp, err := c.next.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		var cerr *connect.Error
		if errors.As(err, &cerr) && cerr.Code() == connect.CodeNotFound {
			return nil, replay.ErrExhausted
		}
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}
