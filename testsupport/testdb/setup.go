package testdb

import (
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"

	tcpg "github.com/mpapenbr/telemetry-replay/testsupport/tcpostgres"
)

// InitTestDb provides an empty, migrated database.
// Tests are skipped if neither TESTDB_URL is set nor docker is available.
func InitTestDb(t testing.TB) *pgxpool.Pool {
	t.Helper()
	var pool *pgxpool.Pool
	var err error

	if os.Getenv("TESTDB_URL") != "" {
		pool, err = tcpg.SetupExternalTestDb()
	} else {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		pool, err = tcpg.SetupTestDb()
	}
	if err != nil {
		t.Fatalf("initTestDb: %v", err)
	}
	tcpg.ClearAllTables(pool)
	t.Cleanup(pool.Close)
	return pool
}
