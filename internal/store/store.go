package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/querysql"
	"github.com/roach88/ormsql/internal/schema"
)

// Layout version tracking:
// 0 - No meta table
// 1 - ormsql_meta with schema_hash
const currentLayoutVersion = 1

// ErrSchemaMismatch is returned by Open when the database was built from
// a different schema than the one supplied.
var ErrSchemaMismatch = errors.New("database was built from a different schema")

// Store is a SQLite database laid out for one entity schema.
type Store struct {
	db       *sql.DB
	reg      *schema.Registry
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for executed statements. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates or opens a SQLite database at the given path and lays out
// tables for reg. Use ":memory:" for a throwaway sandbox.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Opening an existing database with the same schema is a no-op layout-wise.
func Open(path string, reg *schema.Registry, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; one connection also keeps
	// a :memory: database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, reg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:     db,
		reg:    reg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.compiler = querysql.New(reg, dialect.SQLite, querysql.WithLogger(s.logger))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Compiler returns the SQLite compiler the store seeds with.
func (s *Store) Compiler() *querysql.Compiler {
	return s.compiler
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the meta table and the entity tables, or checks
// that an existing database matches reg.
func applySchema(db *sql.DB, reg *schema.Registry) error {
	hash, err := reg.Hash()
	if err != nil {
		return err
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, metaTableSQL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT value FROM ormsql_meta WHERE key = 'schema_hash'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		for _, stmt := range DDL(reg) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute %q: %w", stmt, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO ormsql_meta (key, value) VALUES ('schema_hash', ?)`, hash); err != nil {
			return fmt.Errorf("record schema hash: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema hash: %w", err)
	case stored != hash:
		return fmt.Errorf("%w: stored %s, have %s", ErrSchemaMismatch, stored, hash)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentLayoutVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

const metaTableSQL = `CREATE TABLE IF NOT EXISTS ormsql_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
