package migrate

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mpapenbr/telemetry-replay/log"
)

//go:embed migrations
var migrations embed.FS

type (
	Option   func(m *migrator)
	migrator struct {
		sourceURL string
		steps     int
		l         *log.Logger
	}
	// Status describes the schema version of a database
	Status struct {
		Version uint
		Dirty   bool
		Empty   bool
	}
)

// WithSourceURL reads migrations from sourceURL (for example
// file:///migrations) instead of the embedded ones.
func WithSourceURL(sourceURL string) Option {
	return func(m *migrator) {
		m.sourceURL = sourceURL
	}
}

// WithSteps applies n migrations instead of all pending ones.
// Negative values roll back.
func WithSteps(n int) Option {
	return func(m *migrator) {
		m.steps = n
	}
}

func WithLogger(l *log.Logger) Option {
	return func(m *migrator) {
		m.l = l
	}
}

// MigrateDb brings the database at dbURI (postgresql://...) up to date.
func MigrateDb(dbURI string, opts ...Option) error {
	mg := newMigrator(opts...)
	m, err := mg.open(dbURI)
	if err != nil {
		return err
	}
	defer m.Close()

	if mg.steps != 0 {
		mg.l.Info("applying migration steps", log.Int("steps", mg.steps))
		err = m.Steps(mg.steps)
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		mg.l.Debug("no migrations pending")
		return nil
	}
	return err
}

// CurrentStatus reports the schema version of the database at dbURI.
func CurrentStatus(dbURI string, opts ...Option) (Status, error) {
	mg := newMigrator(opts...)
	m, err := mg.open(dbURI)
	if err != nil {
		return Status{}, err
	}
	defer m.Close()
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Empty: true}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Version: version, Dirty: dirty}, nil
}

func newMigrator(opts ...Option) *migrator {
	ret := &migrator{l: log.Default().Named("migrate")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (mg *migrator) open(dbURI string) (*migrate.Migrate, error) {
	if mg.sourceURL != "" {
		return migrate.New(mg.sourceURL, toMigrateURL(dbURI))
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", source, toMigrateURL(dbURI))
}

// golang-migrate selects the pgx v5 driver by the pgx5 scheme
func toMigrateURL(dbURI string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dbURI, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dbURI
}
