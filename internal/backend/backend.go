package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage/mongodb"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage/sqlstore"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/config"
)

// Kind identifies the storage engine behind a Backend
type Kind string

const (
	// KindSQLite is the local file-backed database
	KindSQLite Kind = "sqlite"
	// KindPostgres uses PostgreSQL
	KindPostgres Kind = "postgres"
	// KindMongoDB uses MongoDB
	KindMongoDB Kind = "mongodb"
)

// ErrUnsupportedScheme is returned for database URLs no backend understands.
var ErrUnsupportedScheme = errors.New("unsupported database URL scheme")

// sqlitePragmas are appended to every SQLite DSN.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Backend wraps storage stores with a common interface for lifecycle management
type Backend interface {
	storage.Store
	// Kind reports the storage engine
	Kind() Kind
}

// sqlBackend wraps the SQL store to implement Backend. The store is embedded
// so its DB and Dialect accessors stay visible to schema migrations.
type sqlBackend struct {
	*sqlstore.Store
	kind Kind
}

func (b *sqlBackend) Kind() Kind { return b.kind }

// mongoBackend wraps the MongoDB store to implement Backend
type mongoBackend struct {
	*mongodb.Store
}

func (b *mongoBackend) Kind() Kind { return KindMongoDB }

// KindOf maps a database URL to a backend kind.
func KindOf(rawURL string) (Kind, error) {
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, redact(rawURL))
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		return KindSQLite, nil
	case "postgres", "postgresql":
		return KindPostgres, nil
	case "mongodb", "mongodb+srv":
		return KindMongoDB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// Open creates a storage backend for cfg.URL. Connections are established
// lazily unless cfg.PingOnBind is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Backend, error) {
	kind, err := KindOf(cfg.URL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSQLite:
		db, err := sqlx.Open("sqlite", sqliteDSN(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		return NewSQL(ctx, db, KindSQLite, cfg, logger)

	case KindPostgres:
		db, err := sqlx.Open("postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		return NewSQL(ctx, db, KindPostgres, cfg, logger)

	default:
		store, err := mongodb.NewStore(ctx, mongodb.Options{
			URI:      cfg.URL,
			Database: mongoDatabase(cfg),
			Timeout:  time.Duration(cfg.Timeout) * time.Second,
			Ping:     cfg.PingOnBind,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB backend: %w", err)
		}
		logger.Info("Bound MongoDB backend", zap.String("database", store.Database().Name()))
		return &mongoBackend{Store: store}, nil
	}
}

// NewSQL wraps an already opened SQL handle, applying pool settings and the
// optional bind-time ping. The backend takes ownership of db.
func NewSQL(ctx context.Context, db *sqlx.DB, kind Kind, cfg config.DatabaseConfig, logger *zap.Logger) (Backend, error) {
	var dialect sqlstore.Dialect
	switch kind {
	case KindSQLite:
		dialect = sqlstore.DialectSQLite
		// SQLite serialises writers; one connection avoids "database is locked".
		db.SetMaxOpenConns(1)
	case KindPostgres:
		dialect = sqlstore.DialectPostgres
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
	default:
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, kind)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if cfg.PingOnBind {
		pingCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
			defer cancel()
		}
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping %s database: %w", kind, err)
		}
	}

	logger.Info("Bound SQL backend", zap.String("kind", string(kind)), zap.Bool("trace", cfg.Tracing()))
	return &sqlBackend{
		Store: sqlstore.New(db, dialect, logger, cfg.Tracing()),
		kind:  kind,
	}, nil
}

// sqliteDSN turns sqlite:///abs/path.db or sqlite://rel.db into a driver DSN.
func sqliteDSN(rawURL string) string {
	_, path, _ := strings.Cut(rawURL, "://")
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

func mongoDatabase(cfg config.DatabaseConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

// redact hides credentials in URLs that end up in error messages.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	return u.Redacted()
}
