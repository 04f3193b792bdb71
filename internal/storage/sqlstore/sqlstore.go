// Package sqlstore implements storage on top of database/sql through sqlx. It serves
// both the local SQLite database and PostgreSQL; statements are written with '?'
// placeholders and rebound for the active driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

// Dialect identifies the SQL flavour behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func init() {
	// modernc.org/sqlite registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// Compile-time interface checks.
var (
	_ storage.Store        = (*Store)(nil)
	_ storage.UserStore    = (*UserStore)(nil)
	_ storage.EventStore   = (*EventStore)(nil)
	_ storage.MessageStore = (*MessageStore)(nil)
)

// Store implements storage.Store over a SQL database
type Store struct {
	conn *conn

	users    *UserStore
	events   *EventStore
	messages *MessageStore
}

// conn wraps sqlx with statement rebinding and optional tracing.
type conn struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
	trace   bool
}

// New creates a store over an open database handle. The store owns db and
// closes it in Close.
func New(db *sqlx.DB, dialect Dialect, logger *zap.Logger, trace bool) *Store {
	c := &conn{
		db:      db,
		dialect: dialect,
		logger:  logger.Named("sqlstore"),
		trace:   trace,
	}
	return &Store{
		conn:     c,
		users:    &UserStore{c: c},
		events:   &EventStore{c: c},
		messages: &MessageStore{c: c},
	}
}

func (s *Store) Users() storage.UserStore       { return s.users }
func (s *Store) Events() storage.EventStore     { return s.events }
func (s *Store) Messages() storage.MessageStore { return s.messages }

// DB returns the underlying handle, used by schema migrations.
func (s *Store) DB() *sqlx.DB { return s.conn.db }

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() Dialect { return s.conn.dialect }

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.db.PingContext(ctx)
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.conn.db.Close()
}

func (c *conn) rebind(query string) string {
	q := c.db.Rebind(query)
	if c.trace {
		c.logger.Debug("SQL statement", zap.String("query", strings.Join(strings.Fields(q), " ")))
	}
	return q
}

func (c *conn) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.db.GetContext(ctx, dest, c.rebind(query), args...)
}

func (c *conn) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.db.SelectContext(ctx, dest, c.rebind(query), args...)
}

// mapError translates driver errors into storage errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, pqErr.Constraint)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", storage.ErrAlreadyExists, err)
	}
	return fmt.Errorf("%w: %v", storage.ErrDatabase, err)
}

// requireAffected returns ErrNotFound when a write touched no row.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
