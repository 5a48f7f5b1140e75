package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Entries returns every committed transaction in commit order.
// Returns an empty slice (not nil) for an empty journal.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT tx_id, version, seq, function, args, payload, response_hash
		FROM transactions
		ORDER BY version ASC, tx_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if err := j.attachWrites(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Entry returns the transaction with txID, or nil if it is not journaled.
func (j *Journal) Entry(ctx context.Context, txID string) (*Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT tx_id, version, seq, function, args, payload, response_hash
		FROM transactions
		WHERE tx_id = ?
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query transaction %s: %w", txID, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if err := j.attachWrites(ctx, entries); err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// KeyModification is one change to a key, as returned by KeyHistory.
type KeyModification struct {
	TxID     string
	Version  uint64
	Function string
	Value    []byte
	IsDelete bool
}

// KeyHistory returns every committed change to key, oldest first.
// Returns an empty slice (not nil) if the key was never written.
func (j *Journal) KeyHistory(ctx context.Context, key string) ([]KeyModification, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT t.tx_id, t.version, t.function, w.value, w.is_delete
		FROM tx_writes w
		JOIN transactions t ON t.tx_id = w.tx_id
		WHERE w.key = ?
		ORDER BY t.version ASC, t.tx_id COLLATE BINARY ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", key, err)
	}
	defer rows.Close()

	mods := []KeyModification{}
	for rows.Next() {
		var (
			m       KeyModification
			version int64
		)
		if err := rows.Scan(&m.TxID, &version, &m.Function, &m.Value, &m.IsDelete); err != nil {
			return nil, fmt.Errorf("scan history of %s: %w", key, err)
		}
		m.Version = uint64(version)
		mods = append(mods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history of %s: %w", key, err)
	}
	return mods, nil
}

// Height returns the highest journaled commit version, 0 when empty.
func (j *Journal) Height(ctx context.Context) (uint64, error) {
	var height sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(version) FROM transactions`).Scan(&height); err != nil {
		return 0, fmt.Errorf("query height: %w", err)
	}
	return uint64(height.Int64), nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			version int64
			args    string
		)
		if err := rows.Scan(&e.TxID, &version, &e.Seq, &e.Function, &args, &e.Payload, &e.ResponseHash); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		e.Version = uint64(version)

		parsed, err := unmarshalArgs(args)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", e.TxID, err)
		}
		e.Args = parsed
		e.Writes = []Write{}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return entries, nil
}

// attachWrites loads the write sets of entries in one query.
func (j *Journal) attachWrites(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.TxID] = i
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT tx_id, key, value, is_delete
		FROM tx_writes
		ORDER BY tx_id COLLATE BINARY ASC, key COLLATE BINARY ASC
	`)
	if err != nil {
		return fmt.Errorf("query writes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txID string
			w    Write
		)
		if err := rows.Scan(&txID, &w.Key, &w.Value, &w.IsDelete); err != nil {
			return fmt.Errorf("scan write: %w", err)
		}
		if i, ok := index[txID]; ok {
			entries[i].Writes = append(entries[i].Writes, w)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate writes: %w", err)
	}
	return nil
}
