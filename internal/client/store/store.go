// Package store owns the local SQLite database that backs drafts and the
// pending request queue.
//
// A Store is created closed. The first call to DB opens the file, applies
// the embedded goose migrations and caches the handle; every later call
// returns the same *sql.DB. If opening fails the error is cached as well and
// wrapped in ErrStorageUnavailable, so the store never retries within the
// process lifetime.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/invoicer/internal/client/migrations"
	"github.com/dmitrijs2005/invoicer/internal/dbx"
	"github.com/dmitrijs2005/invoicer/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Provider hands out the lazily opened database handle. Repositories depend
// on it instead of *Store so tests can substitute their own handle.
type Provider interface {
	DB(ctx context.Context) (*sql.DB, error)
}

type Store struct {
	dsn    string
	logger logging.Logger

	mu  sync.Mutex
	db  *sql.DB
	err error
}

func New(dsn string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{dsn: dsn, logger: logger}
}

// FileDSN turns a database file path into a modernc DSN with a busy timeout
// and WAL journal. In-memory and already-prefixed DSNs pass through.
func FileDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// DB returns the shared handle, opening and migrating the database on first use.
func (s *Store) DB(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	if s.err != nil {
		return nil, s.err
	}

	db, err := open(ctx, s.dsn)
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		s.logger.Error(ctx, "local store unavailable", "dsn", s.dsn, "error", err)
		return nil, s.err
	}

	s.logger.Debug(ctx, "local store opened", "dsn", s.dsn)
	s.db = db
	return s.db, nil
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps an in-memory
	// database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

var gooseMu sync.Mutex

// RunMigrations applies the embedded migrations. Tables are created only
// when missing, so running it against an initialised file is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Clear wipes drafts and pending requests in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	db, err := s.DB(ctx)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return dbx.ExecAll(ctx, tx, `DELETE FROM drafts`, `DELETE FROM pending_requests`)
	})
	if err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorageWrite, err)
	}
	return nil
}

// Close releases the handle if it was opened. A closed Store cannot be reopened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		s.err = fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
