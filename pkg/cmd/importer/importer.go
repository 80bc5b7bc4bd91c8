package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/telemetry-replay/log"
	cmdutil "github.com/mpapenbr/telemetry-replay/pkg/cmd/util"
	"github.com/mpapenbr/telemetry-replay/pkg/config"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	sessionrepos "github.com/mpapenbr/telemetry-replay/pkg/repository/session"
)

func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "processes a telemetry file and stores it as session",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if config.InputFile == "" {
				return fmt.Errorf("--input is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return importSession(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.SessionName, "name", "",
		"name of the session (defaults to the input file name)")
	cmdutil.AddInputFlags(cmd)
	return cmd
}

func importSession(ctx context.Context) error {
	res, info, err := cmdutil.ReadInput()
	if err != nil {
		log.Error("could not process input", log.ErrorField(err))
		return err
	}
	name := config.SessionName
	if name == "" {
		name = filepath.Base(config.InputFile)
	}
	s := &model.StoredSession{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     name,
		Created:  time.Now(),
		Skeleton: res.Skeleton.Points(),
		Info:     info,
		Samples:  res.Samples,
	}

	pool, err := cmdutil.OpenDB(ctx)
	if err != nil {
		log.Error("could not connect to database", log.ErrorField(err))
		return err
	}
	defer pool.Close()

	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return sessionrepos.Create(ctx, tx, s)
	}); err != nil {
		log.Error("could not store session", log.ErrorField(err))
		return err
	}
	log.Info("Session stored",
		log.String("id", s.ID.String()),
		log.String("name", s.Name),
		log.Int("samples", len(s.Samples)),
		log.Int("corners", len(s.Skeleton)))
	fmt.Println(s.ID.String())
	return nil
}
