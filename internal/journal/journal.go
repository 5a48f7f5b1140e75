package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"slices"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - transactions and tx_writes tables
const currentSchemaVersion = 1

// Entry is one committed transaction.
type Entry struct {
	TxID         string
	Version      uint64
	Seq          int64
	Function     string
	Args         []string
	Payload      string
	ResponseHash string
	Writes       []Write
}

// Write is one key written by a transaction. Value is empty for deletes.
type Write struct {
	Key      string
	Value    []byte
	IsDelete bool
}

// Journal is a SQLite-backed transaction log. It implements shim.Journal.
type Journal struct {
	db *sql.DB
}

var _ shim.Journal = (*Journal)(nil)

// Open creates or opens a journal at path. An empty path opens a private
// in-memory journal.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time; one connection also keeps
	// an in-memory journal alive.
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

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records a committed transaction and its write set atomically.
// Appending a tx id that is already present is a no-op.
func (j *Journal) Append(ctx context.Context, res *shim.Result, batch *state.UpdateBatch) error {
	if !res.Committed {
		return fmt.Errorf("append %s: transaction was not committed", res.TxID)
	}

	args, err := marshalArgs(res.Args)
	if err != nil {
		return fmt.Errorf("append %s: %w", res.TxID, err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append %s: begin tx: %w", res.TxID, err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
		(tx_id, version, seq, function, args, payload, response_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_id) DO NOTHING
	`,
		res.TxID,
		int64(res.Version),
		res.Seq,
		res.Function,
		args,
		res.Payload,
		res.ResponseHash,
	)
	if err != nil {
		return fmt.Errorf("append %s: %w", res.TxID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("append %s: rows affected: %w", res.TxID, err)
	} else if n == 0 {
		return nil
	}

	for _, w := range writesOf(batch) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tx_writes (tx_id, key, value, is_delete)
			VALUES (?, ?, ?, ?)
		`, res.TxID, w.Key, append([]byte{}, w.Value...), w.IsDelete)
		if err != nil {
			return fmt.Errorf("append %s: write %s: %w", res.TxID, w.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append %s: commit: %w", res.TxID, err)
	}
	return nil
}

// writesOf flattens a batch's write set in key order.
func writesOf(batch *state.UpdateBatch) []Write {
	if batch == nil {
		return nil
	}
	writes := make([]Write, 0, len(batch.Puts)+len(batch.Deletes))
	for k, v := range batch.Puts {
		writes = append(writes, Write{Key: k, Value: v})
	}
	for k := range batch.Deletes {
		writes = append(writes, Write{Key: k, IsDelete: true})
	}
	slices.SortFunc(writes, func(a, b Write) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return writes
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

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
