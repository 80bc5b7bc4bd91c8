package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/telemetry-replay/log"
	"github.com/mpapenbr/telemetry-replay/pkg/config"
	dbmigrate "github.com/mpapenbr/telemetry-replay/pkg/db/migrate"
	"github.com/mpapenbr/telemetry-replay/pkg/utils"
)

var steps int

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVarP(&config.MigrationSourceURL,
		"migration-source-url",
		"m",
		"",
		"url to migration files (embedded migrations are used if empty)")
	cmd.Flags().IntVar(&steps,
		"steps",
		0,
		"number of migrations to apply, negative values roll back (0 applies all)")
	cmd.AddCommand(newStatusCmd())
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "shows the schema version of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := waitForDB(cmd.Context()); err != nil {
				return err
			}
			status, err := dbmigrate.CurrentStatus(config.DB, sourceOpts()...)
			if err != nil {
				return err
			}
			switch {
			case status.Empty:
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
			case status.Dirty:
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty)\n", status.Version)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", status.Version)
			}
			return nil
		},
	}
}

func startMigration(ctx context.Context) error {
	if err := waitForDB(ctx); err != nil {
		return err
	}
	opts := append(sourceOpts(), dbmigrate.WithSteps(steps))
	if err := dbmigrate.MigrateDb(config.DB, opts...); err != nil {
		log.Error("migration failed", log.ErrorField(err))
		return err
	}
	log.Info("Database migration done")
	return nil
}

func sourceOpts() []dbmigrate.Option {
	if config.MigrationSourceURL == "" {
		log.Debug("Using embedded migrations")
		return nil
	}
	log.Info("Using migration files", log.String("source", config.MigrationSourceURL))
	return []dbmigrate.Option{dbmigrate.WithSourceURL(config.MigrationSourceURL)}
}

func waitForDB(ctx context.Context) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	if addr := utils.ExtractFromDBURL(config.DB); addr != "" {
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			log.Error("database not ready", log.ErrorField(err))
			return err
		}
	}
	return nil
}
