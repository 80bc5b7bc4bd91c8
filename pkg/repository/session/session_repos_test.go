//nolint:funlen // ok for this test code
package session_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/repository/session"
	"github.com/mpapenbr/telemetry-replay/testsupport/basedata"
	"github.com/mpapenbr/telemetry-replay/testsupport/testdb"
)

func TestCreate(t *testing.T) {
	pool := testdb.InitTestDb(t)
	ctx := context.Background()
	existing := basedata.CreateSampleSession(pool)

	tests := []struct {
		name    string
		session func() *model.StoredSession
		wantErr bool
	}{
		{
			name:    "new entry",
			session: basedata.SampleSession,
		},
		{
			name: "no samples",
			session: func() *model.StoredSession {
				s := basedata.SampleSession()
				s.Samples = nil
				return s
			},
		},
		{
			name: "duplicate id",
			session: func() *model.StoredSession {
				s := basedata.SampleSession()
				s.ID = existing.ID
				return s
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
				return session.Create(ctx, tx, tt.session())
			})
			if tt.wantErr {
				assert.Assert(t, err != nil)
			} else {
				assert.NilError(t, err)
			}
		})
	}
}

func TestLoadByID(t *testing.T) {
	pool := testdb.InitTestDb(t)
	ctx := context.Background()
	s := basedata.CreateSampleSession(pool)

	got, err := session.LoadByID(ctx, pool, s.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.ID, s.ID)
	assert.Equal(t, got.Name, s.Name)
	assert.Assert(t, got.Created.Equal(s.Created))
	assert.DeepEqual(t, got.Skeleton, s.Skeleton)
	assert.Equal(t, got.Info["track"], "testtrack")
	assert.Assert(t, is.Len(got.Samples, len(s.Samples)))
	for i := range s.Samples {
		assert.Assert(t, got.Samples[i].Date.Equal(s.Samples[i].Date))
		assert.Equal(t, got.Samples[i].X, s.Samples[i].X)
		assert.Equal(t, got.Samples[i].TrackPercent, s.Samples[i].TrackPercent)
		assert.Equal(t, got.Samples[i].EstimatedLapTime, s.Samples[i].EstimatedLapTime)
	}

	_, err = session.LoadByID(ctx, pool, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	pool := testdb.InitTestDb(t)
	ctx := context.Background()
	first := basedata.CreateSampleSession(pool)
	second := basedata.CreateSampleSession(pool)

	items, err := session.List(ctx, pool)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(items, 2))
	for _, item := range items {
		assert.Assert(t, item.Samples == nil)
	}

	n, err := session.DeleteByID(ctx, pool, first.ID)
	assert.NilError(t, err)
	assert.Equal(t, n, 1)

	n, err = session.DeleteByID(ctx, pool, first.ID)
	assert.NilError(t, err)
	assert.Equal(t, n, 0)

	items, err = session.List(ctx, pool)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(items, 1))
	assert.Equal(t, items[0].ID, second.ID)

	// samples are removed by cascade
	var count int
	err = pool.QueryRow(ctx,
		"select count(*) from replay_sample where session_id=$1", first.ID).Scan(&count)
	assert.NilError(t, err)
	assert.Equal(t, count, 0)
}
