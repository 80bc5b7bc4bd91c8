package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	pgxuuid "github.com/jackc/pgx-gofrs-uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/telemetry-replay/log"
)

type PoolConfigOption func(cfg *pgxpool.Config)

func WithTracer(tracer pgx.QueryTracer) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = tracer
	}
}

// NewSQLTracer logs finished sql statements on the given level
func NewSQLTracer(logger *log.Logger, level log.Level) pgx.QueryTracer {
	return &sqlTracer{log: logger.Named("sql"), level: level}
}

// NewOtlpTracer creates spans for sql statements using the global tracer provider
func NewOtlpTracer() pgx.QueryTracer {
	return otelpgx.NewTracer()
}

// InitWithURL creates a connection pool and verifies the connection.
func InitWithURL(ctx context.Context, url string, opts ...PoolConfigOption) (
	*pgxpool.Pool, error,
) {
	dbConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	dbConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}
	for _, opt := range opts {
		opt(dbConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create the database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to get a valid database connection: %w", err)
	}
	return pool, nil
}

// WithMaxConns limits the number of pooled connections
func WithMaxConns(n int32) PoolConfigOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

type queryStartKey struct{}

// sqlTracer logs statements with their duration. Failing statements are
// always logged.
type sqlTracer struct {
	log   *log.Logger
	level log.Level
}

//nolint:whitespace // can't make the linters happy
func (t *sqlTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	_ pgx.TraceQueryStartData,
) context.Context {
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

//nolint:whitespace // can't make the linters happy
func (t *sqlTracer) TraceQueryEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	if data.Err != nil {
		t.log.Warn("query failed",
			log.Duration("duration", elapsed),
			log.ErrorField(data.Err))
		return
	}
	t.log.Log(t.level, "query done",
		log.String("tag", data.CommandTag.String()),
		log.Int64("rows", data.CommandTag.RowsAffected()),
		log.Duration("duration", elapsed))
}
