//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/telemetry-replay/pkg/db/migrate"
	database "github.com/mpapenbr/telemetry-replay/pkg/db/postgres"
)

// SetupTestDb provides a migrated database running in a shared container
func SetupTestDb() (*pgxpool.Pool, error) {
	ctx := context.Background()
	container, err := StartContainer(ctx, WithName("telemetry-replay-test"))
	if err != nil {
		return nil, err
	}
	dbURL, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, err
	}
	return setupWithURL(ctx, dbURL)
}

// SetupExternalTestDb uses the database referenced by TESTDB_URL
func SetupExternalTestDb() (*pgxpool.Pool, error) {
	return setupWithURL(context.Background(), os.Getenv("TESTDB_URL"))
}

func setupWithURL(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if err := migrate.MigrateDb(dbURL); err != nil {
		return nil, err
	}
	return database.InitWithURL(ctx, dbURL)
}

func ClearSampleTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from replay_sample")
}

func ClearSessionTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from replay_session")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearSampleTable(pool)
	ClearSessionTable(pool)
}
