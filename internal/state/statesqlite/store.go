// Package statesqlite implements state.Store on SQLite.
//
// Records live in a single world_state table; rich queries are compiled by
// querysql to json_extract predicates, so no separate index is kept.
package statesqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/querysql"
	"github.com/roach88/tdrive/internal/richquery"
	"github.com/roach88/tdrive/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - world_state and meta tables
const currentSchemaVersion = 1

// Store is a SQLite-backed world state.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
	logger   *slog.Logger
}

// Open creates or opens a SQLite database at path. An empty path opens a
// private in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has one writer; a single connection also keeps an in-memory
	// database alive and shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:       db,
		compiler: querysql.NewSQLCompiler(),
		logger:   logger.With("component", "statesqlite"),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getVersioned(ctx context.Context, q queryer, key string) (*state.VersionedValue, error) {
	var vv state.VersionedValue
	var version int64
	err := q.QueryRowContext(ctx, "SELECT value, version FROM world_state WHERE key = ?", key).Scan(&vv.Value, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	vv.Version = uint64(version)
	return &vv, nil
}

// GetState implements state.Store.
func (s *Store) GetState(ctx context.Context, key string) (*state.VersionedValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return getVersioned(ctx, s.db, key)
}

// Height implements state.Store.
func (s *Store) Height(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return height(ctx, s.db)
}

func height(ctx context.Context, q queryer) (uint64, error) {
	var h int64
	if err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE name = 'height'").Scan(&h); err != nil {
		return 0, fmt.Errorf("get height: %w", err)
	}
	return uint64(h), nil
}

// Commit implements state.Store.
func (s *Store) Commit(ctx context.Context, b *state.UpdateBatch) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range b.ReadKeys() {
		current, err := getVersioned(ctx, tx, key)
		if err != nil {
			return 0, err
		}
		var currentVersion uint64
		if current != nil {
			currentVersion = current.Version
		}
		if read := b.Reads[key]; read != currentVersion {
			return 0, fault.Conflict(key, read, currentVersion)
		}
	}

	h, err := height(ctx, tx)
	if err != nil {
		return 0, err
	}
	version := h + 1

	for _, key := range b.WriteKeys() {
		if value, ok := b.Puts[key]; ok {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO world_state (key, value, version) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version
			`, key, value, int64(version))
		} else {
			_, err = tx.ExecContext(ctx, "DELETE FROM world_state WHERE key = ?", key)
		}
		if err != nil {
			return 0, fmt.Errorf("write %q: %w", key, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE meta SET value = ? WHERE name = 'height'", int64(version)); err != nil {
		return 0, fmt.Errorf("update height: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("committed", "version", version, "writes", len(b.Puts)+len(b.Deletes), "reads", len(b.Reads))
	return version, nil
}

// GetStateRange implements state.Store.
func (s *Store) GetStateRange(ctx context.Context, start, end string) (state.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := "SELECT key, value, version FROM world_state WHERE key >= ?"
	args := []any{start}
	if end != "" {
		query += " AND key < ?"
		args = append(args, end)
	}
	query += " ORDER BY key ASC COLLATE BINARY"

	return s.collect(ctx, query, args...)
}

// ExecuteQuery implements state.Store.
func (s *Store) ExecuteQuery(ctx context.Context, query string) (state.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := richquery.Parse(query)
	if err != nil {
		return nil, err
	}
	sqlText, params, err := s.compiler.Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, sqlText, params...)
}

// collect materializes the result set: with a single connection, leaving
// rows open would block every other statement until the caller closed the
// iterator.
func (s *Store) collect(ctx context.Context, query string, args ...any) (state.Iterator, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	items := []state.KV{}
	for rows.Next() {
		var kv state.KV
		var version int64
		if err := rows.Scan(&kv.Key, &kv.Value, &version); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		kv.Version = uint64(version)
		items = append(items, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return state.NewSliceIterator(items), nil
}
