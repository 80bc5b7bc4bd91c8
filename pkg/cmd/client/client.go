package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/telemetry-replay/log"
	replayserver "github.com/mpapenbr/telemetry-replay/pkg/grpc/server/replay"
	"github.com/mpapenbr/telemetry-replay/pkg/replay"
)

var (
	addr  string
	count int
)

func NewClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "client commands for a running replay server",
	}
	cmd.PersistentFlags().StringVar(&addr,
		"addr",
		"http://localhost:5000",
		"replay server address")
	cmd.AddCommand(newNextCmd())
	return cmd
}

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "fetches samples from the replay server and prints them as json lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(cmd.Context(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1,
		"number of samples to fetch (0 means: until no more data)")
	return cmd
}

func fetch(ctx context.Context, n int) error {
	c := replayserver.NewClient(http.DefaultClient, addr)
	enc := json.NewEncoder(os.Stdout)
	for i := 0; n == 0 || i < n; i++ {
		data, err := c.Next(ctx)
		if errors.Is(err, replay.ErrExhausted) {
			log.Info("no more data", log.Int("received", i))
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not fetch sample: %w", err)
		}
		if err := enc.Encode(data); err != nil {
			return err
		}
	}
	return nil
}
