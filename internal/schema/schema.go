// Package schema owns the persistent schema: embedded SQL migrations for the
// relational backends and index creation for MongoDB.
package schema

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage/sqlstore"
)

//go:embed migrations
var migrations embed.FS

// ErrUnsupportedStore is returned by New for stores without a known schema.
var ErrUnsupportedStore = errors.New("schema: unsupported store")

type sqlHandle interface {
	DB() *sqlx.DB
	Dialect() sqlstore.Dialect
}

type mongoHandle interface {
	Database() *mongo.Database
	EnsureIndexes(ctx context.Context) error
}

// Migrator applies schema changes to a bound store. Creating one is cheap and
// never touches the database; Materialize does the work.
type Migrator struct {
	sql   sqlHandle
	mongo mongoHandle
}

// New returns a migrator for store.
func New(store storage.Store) (*Migrator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrUnsupportedStore)
	}
	if h, ok := store.(sqlHandle); ok {
		switch h.Dialect() {
		case sqlstore.DialectSQLite, sqlstore.DialectPostgres:
			return &Migrator{sql: h}, nil
		default:
			return nil, fmt.Errorf("%w: dialect %q", ErrUnsupportedStore, h.Dialect())
		}
	}
	if h, ok := store.(mongoHandle); ok {
		return &Migrator{mongo: h}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedStore, store)
}

// String names the target, for logs.
func (m *Migrator) String() string {
	if m.mongo != nil {
		return "mongodb:" + m.mongo.Database().Name()
	}
	return string(m.sql.Dialect())
}

// Materialize brings the schema up to the latest version. It is idempotent.
func (m *Migrator) Materialize(ctx context.Context) error {
	if m.mongo != nil {
		return m.mongo.EnsureIndexes(ctx)
	}

	switch m.sql.Dialect() {
	case sqlstore.DialectSQLite:
		// The driver's Close closes the shared pool; never call it.
		drv, err := sqlite.WithInstance(m.sql.DB().DB, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("failed to prepare sqlite migrations: %w", err)
		}
		return up(drv, "sqlite", "migrations/sqlite")

	case sqlstore.DialectPostgres:
		conn, err := m.sql.DB().DB.Conn(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer conn.Close()

		drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("failed to prepare postgres migrations: %w", err)
		}
		return up(drv, "postgres", "migrations/postgres")
	}
	return fmt.Errorf("%w: dialect %q", ErrUnsupportedStore, m.sql.Dialect())
}

func up(drv database.Driver, name, dir string) error {
	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
