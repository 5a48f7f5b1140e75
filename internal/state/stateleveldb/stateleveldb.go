// Package stateleveldb implements state.Store on LevelDB.
//
// LevelDB is a plain ordered key/value store, so rich queries are answered
// from an explicit secondary index maintained in the same batch as every
// record write. The key space is split by a one-byte prefix:
//
//	s<key>                                    -> version(8) || value
//	d<len>docType<key>                        -> empty  (document type index)
//	f<len>docType<len>field<len>token<key>    -> empty  (field index)
//	m<name>                                   -> metadata (height, db version)
//
// token is the canonical JSON of a scalar field value, so the string "1"
// and the integer 1 index separately.
package stateleveldb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/queryir"
	"github.com/roach88/tdrive/internal/richquery"
	"github.com/roach88/tdrive/internal/state"
)

const (
	prefixState   = 's'
	prefixDocType = 'd'
	prefixField   = 'f'
	prefixMeta    = 'm'
)

// currentDBVersion is bumped whenever the key layout changes.
const currentDBVersion = 1

var (
	metaHeight  = []byte{prefixMeta, 'h'}
	metaVersion = []byte{prefixMeta, 'v'}
)

// Store is a LevelDB-backed world state.
type Store struct {
	db     *leveldb.DB
	sync   bool
	logger *slog.Logger

	// commitMu serializes Commit so read-set validation and the batch
	// write see the same state.
	commitMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithSync makes every commit fsync before returning.
func WithSync(sync bool) Option {
	return func(s *Store) { s.sync = sync }
}

// WithLogger sets the logger. Defaults to slog.Default(); nil keeps the
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens or creates the database at path. An empty path opens a
// private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: false})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %q: %w", path, err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "stateleveldb")

	if err := s.checkVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// checkVersion tags an empty database with the current layout version and
// refuses databases written by a newer layout.
func (s *Store) checkVersion() error {
	raw, err := s.db.Get(metaVersion, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return s.db.Put(metaVersion, encodeUint64(currentDBVersion), nil)
	}
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	if len(raw) != 8 {
		return fmt.Errorf("db version record has length %d", len(raw))
	}
	if v := binary.BigEndian.Uint64(raw); v != currentDBVersion {
		return fmt.Errorf("db version %d, expected %d", v, currentDBVersion)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetState implements state.Store.
func (s *Store) GetState(ctx context.Context, key string) (*state.VersionedValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return getVersioned(s.db, key)
}

type getter interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

func getVersioned(g getter, key string) (*state.VersionedValue, error) {
	raw, err := g.Get(stateKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return decodeVersioned(raw)
}

// Height implements state.Store.
func (s *Store) Height(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := s.db.Get(metaHeight, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get height: %w", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Commit implements state.Store.
func (s *Store) Commit(ctx context.Context, b *state.UpdateBatch) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	for _, key := range b.ReadKeys() {
		current, err := getVersioned(s.db, key)
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

	height, err := s.Height(ctx)
	if err != nil {
		return 0, err
	}
	version := height + 1

	batch := new(leveldb.Batch)
	for _, key := range b.WriteKeys() {
		old, err := getVersioned(s.db, key)
		if err != nil {
			return 0, err
		}
		if old != nil {
			for _, ik := range indexKeys(key, old.Value) {
				batch.Delete(ik)
			}
		}

		value, isPut := b.Puts[key]
		if !isPut {
			batch.Delete(stateKey(key))
			continue
		}
		batch.Put(stateKey(key), encodeVersioned(version, value))
		for _, ik := range indexKeys(key, value) {
			batch.Put(ik, nil)
		}
	}
	batch.Put(metaHeight, encodeUint64(version))

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}); err != nil {
		return 0, fmt.Errorf("write batch: %w", err)
	}

	s.logger.Debug("committed", "version", version, "writes", len(b.Puts)+len(b.Deletes), "reads", len(b.Reads))
	return version, nil
}

// GetStateRange implements state.Store.
func (s *Store) GetStateRange(ctx context.Context, start, end string) (state.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	r := util.BytesPrefix([]byte{prefixState})
	if start != "" {
		r.Start = stateKey(start)
	}
	if end != "" {
		r.Limit = stateKey(end)
	}
	return &rangeIterator{ctx: ctx, snap: snap, iter: snap.NewIterator(r, nil)}, nil
}

// ExecuteQuery implements state.Store.
//
// The scan walks the field index of the first non-DocType condition, or
// the document type index when there is none, and re-checks every
// condition against the stored record.
func (s *Store) ExecuteQuery(ctx context.Context, query string) (state.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := richquery.Parse(query)
	if err != nil {
		return nil, err
	}
	conds, err := queryir.Conditions(sel)
	if err != nil {
		return nil, err
	}

	prefix := docTypePrefix(sel.DocType)
	for _, c := range conds {
		if c.Field == queryir.DocTypeField {
			continue
		}
		prefix, err = fieldPrefix(sel.DocType, c.Field, c.Value)
		if err != nil {
			return nil, err
		}
		break
	}

	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return &queryIterator{
		ctx:    ctx,
		snap:   snap,
		iter:   snap.NewIterator(util.BytesPrefix(prefix), nil),
		prefix: len(prefix),
		conds:  conds,
	}, nil
}

func stateKey(key string) []byte {
	return append([]byte{prefixState}, key...)
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func encodeVersioned(version uint64, value []byte) []byte {
	out := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(out, version)
	copy(out[8:], value)
	return out
}

func decodeVersioned(raw []byte) (*state.VersionedValue, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("state entry too short: %d bytes", len(raw))
	}
	value := make([]byte, len(raw)-8)
	copy(value, raw[8:])
	return &state.VersionedValue{Value: value, Version: binary.BigEndian.Uint64(raw)}, nil
}
