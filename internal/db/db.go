// internal/db/db.go
package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/unclebandit/leadflow-backend/internal/config"
)

//go:embed migrations
var migrations embed.FS

// Backend is a relational store the Action Store can run on. The backend is
// chosen once at startup from configuration.
type Backend interface {
	Name() string
	Dialect() goose.Dialect
	Open(ctx context.Context) (*sqlx.DB, error)
	Migrate(ctx context.Context, db *sqlx.DB) error
}

// NewBackend selects the backend named by cfg.StorageDriver.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return &PostgresBackend{DSN: cfg.DatabaseURL}, nil
	case config.DriverSQLite:
		return &SQLiteBackend{Path: cfg.SQLitePath}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Connect opens the backend, verifies the connection and applies migrations.
func Connect(ctx context.Context, b Backend) (*sqlx.DB, error) {
	db, err := b.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", b.Name(), err)
	}

	if err := b.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", b.Name(), err)
	}

	log.Printf("✅ Connected to %s database", b.Name())
	return db, nil
}

type PostgresBackend struct {
	DSN string
}

func (b *PostgresBackend) Name() string { return config.DriverPostgres }

func (b *PostgresBackend) Dialect() goose.Dialect { return goose.DialectPostgres }

func (b *PostgresBackend) Open(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", b.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func (b *PostgresBackend) Migrate(ctx context.Context, db *sqlx.DB) error {
	return migrate(ctx, db, b.Dialect(), "migrations/postgres")
}

// SQLiteBackend is the embedded file-backed store used in development.
type SQLiteBackend struct {
	Path string
}

func (b *SQLiteBackend) Name() string { return config.DriverSQLite }

func (b *SQLiteBackend) Dialect() goose.Dialect { return goose.DialectSQLite3 }

func (b *SQLiteBackend) Open(ctx context.Context) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", b.Path)
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single writer connection keeps conditional updates serialized
	db.SetMaxOpenConns(1)
	return db, nil
}

func (b *SQLiteBackend) Migrate(ctx context.Context, db *sqlx.DB) error {
	return migrate(ctx, db, b.Dialect(), "migrations/sqlite")
}

func migrate(ctx context.Context, db *sqlx.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	return up(ctx, db, dialect, fsys)
}

// Seed applies every goose script in fsys. Seeds are not versioned, so each
// call runs all of them again.
func Seed(ctx context.Context, b Backend, db *sqlx.DB, fsys fs.FS) error {
	return up(ctx, db, b.Dialect(), fsys, goose.WithDisableVersioning(true))
}

func up(ctx context.Context, db *sqlx.DB, dialect goose.Dialect, fsys fs.FS, opts ...goose.ProviderOption) error {
	provider, err := goose.NewProvider(dialect, db.DB, fsys, opts...)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Printf("📦 applied %s in %s", r.Source.Path, r.Duration)
	}
	return nil
}
