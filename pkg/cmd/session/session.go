package session

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/telemetry-replay/log"
	cmdutil "github.com/mpapenbr/telemetry-replay/pkg/cmd/util"
	sessionrepos "github.com/mpapenbr/telemetry-replay/pkg/repository/session"
)

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "manage stored sessions",
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSessions(cmd.Context())
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "deletes a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteSession(cmd.Context(), args[0])
		},
	}
}

func listSessions(ctx context.Context) error {
	pool, err := cmdutil.OpenDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	sessions, err := sessionrepos.List(ctx, pool)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tCORNERS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			s.ID, s.Name, s.Created.Format("2006-01-02 15:04:05"), len(s.Skeleton))
	}
	return w.Flush()
}

func deleteSession(ctx context.Context, arg string) error {
	id, err := uuid.FromString(arg)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	pool, err := cmdutil.OpenDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	var n int
	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		n, err = sessionrepos.DeleteByID(ctx, tx, id)
		return err
	}); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", sessionrepos.ErrNotFound, id)
	}
	log.Info("Session deleted", log.String("id", id.String()))
	return nil
}
