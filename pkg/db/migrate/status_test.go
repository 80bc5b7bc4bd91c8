package migrate_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mpapenbr/telemetry-replay/pkg/db/migrate"
	"github.com/mpapenbr/telemetry-replay/testsupport/testdb"
)

func TestCurrentStatus(t *testing.T) {
	pool := testdb.InitTestDb(t)
	dbURL := pool.Config().ConnString()

	status, err := migrate.CurrentStatus(dbURL)
	assert.NilError(t, err)
	assert.Equal(t, status.Version, uint(1))
	assert.Assert(t, !status.Dirty)
	assert.Assert(t, !status.Empty)

	// already up to date
	assert.NilError(t, migrate.MigrateDb(dbURL))
}
