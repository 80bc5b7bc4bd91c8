//nolint:whitespace //can't make both the linter and editor happy :(
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/repository"
)

var ErrNotFound = errors.New("session not found")

// Create stores the session including all samples.
// Should be called within a transaction.
func Create(ctx context.Context, conn repository.Querier, s *model.StoredSession) error {
	_, err := conn.Exec(ctx, `
	insert into replay_session (id, name, created, skeleton, info)
	values ($1,$2,$3,$4,$5)
	`,
		s.ID, s.Name, s.Created, s.Skeleton, s.Info)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i := range s.Samples {
		batch.Queue(
			"insert into replay_sample (session_id, idx, data) values ($1,$2,$3)",
			s.ID, i, s.Samples[i])
	}
	br := conn.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}
	return br.Close()
}

// LoadByID loads the session header and all samples ordered by index.
func LoadByID(
	ctx context.Context,
	conn repository.Querier,
	id uuid.UUID,
) (*model.StoredSession, error) {
	row := conn.QueryRow(ctx, `
	select id, name, created, skeleton, info
	from replay_session where id=$1
	`, id)
	var item model.StoredSession
	if err := row.Scan(
		&item.ID, &item.Name, &item.Created, &item.Skeleton, &item.Info,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var err error
	if item.Samples, err = loadSamples(ctx, conn, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func loadSamples(
	ctx context.Context,
	conn repository.Querier,
	id uuid.UUID,
) ([]model.DerivedSample, error) {
	rows, err := conn.Query(ctx,
		"select data from replay_sample where session_id=$1 order by idx", id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DerivedSample, error) {
		var s model.DerivedSample
		err := row.Scan(&s)
		return s, err
	})
}

// List returns all stored sessions without samples, newest first
func List(ctx context.Context, conn repository.Querier) ([]*model.StoredSession, error) {
	rows, err := conn.Query(ctx, `
	select id, name, created, skeleton, info
	from replay_session order by created desc
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.StoredSession, error) {
		var item model.StoredSession
		err := row.Scan(&item.ID, &item.Name, &item.Created, &item.Skeleton, &item.Info)
		return &item, err
	})
}

// DeleteByID deletes a session and its samples, returns number of sessions deleted.
func DeleteByID(ctx context.Context, conn repository.Querier, id uuid.UUID) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from replay_session where id=$1", id)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}
