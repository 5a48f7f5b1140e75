// Package state defines the world-state store contract the transaction
// shim runs against.
//
// A Store holds versioned key/value pairs. Writes only happen through
// Commit, which validates a transaction's read set and applies its write
// set atomically. Two backends implement the contract: stateleveldb (plain
// ordered KV with an explicit secondary index) and statesqlite (SQLite with
// native JSON predicates).
package state

import (
	"context"
	"slices"
)

// VersionedValue is a stored value and the commit version that wrote it.
type VersionedValue struct {
	Value   []byte
	Version uint64
}

// KV is one entry produced by an Iterator.
type KV struct {
	Key     string
	Value   []byte
	Version uint64
}

// Iterator walks a finite result set. Next returns (nil, nil) once the
// results are exhausted. Close must always be called.
type Iterator interface {
	Next() (*KV, error)
	Close() error
}

// Store is the world-state store contract.
type Store interface {
	// GetState returns the committed value for key, or nil if absent.
	GetState(ctx context.Context, key string) (*VersionedValue, error)

	// GetStateRange iterates keys in [start, end) in byte order.
	// An empty start or end leaves that side unbounded.
	GetStateRange(ctx context.Context, start, end string) (Iterator, error)

	// ExecuteQuery evaluates a rich query ({"selector":{...}}) and iterates
	// the matching records in key order.
	ExecuteQuery(ctx context.Context, query string) (Iterator, error)

	// Commit validates batch.Reads against the current versions and, if
	// they all still hold, applies the puts and deletes atomically under a
	// new commit version, which it returns. A stale read yields a
	// fault.CodeConflict error and leaves the store untouched.
	Commit(ctx context.Context, batch *UpdateBatch) (uint64, error)

	// Height returns the version of the last successful commit.
	Height(ctx context.Context) (uint64, error)

	Close() error
}

// UpdateBatch is a transaction's read set and write set.
type UpdateBatch struct {
	// Reads maps each key read to the version observed; 0 means absent.
	Reads   map[string]uint64
	Puts    map[string][]byte
	Deletes map[string]struct{}
}

// NewUpdateBatch returns an empty batch.
func NewUpdateBatch() *UpdateBatch {
	return &UpdateBatch{
		Reads:   make(map[string]uint64),
		Puts:    make(map[string][]byte),
		Deletes: make(map[string]struct{}),
	}
}

// Read records that key was observed at version. The first observation wins.
func (b *UpdateBatch) Read(key string, version uint64) {
	if _, ok := b.Reads[key]; !ok {
		b.Reads[key] = version
	}
}

// Put stages a write of a copy of value, replacing any earlier put or
// delete of key.
func (b *UpdateBatch) Put(key string, value []byte) {
	delete(b.Deletes, key)
	b.Puts[key] = append([]byte{}, value...)
}

// Delete stages a delete, replacing any earlier put of key.
func (b *UpdateBatch) Delete(key string) {
	delete(b.Puts, key)
	b.Deletes[key] = struct{}{}
}

// Empty reports whether the batch writes nothing.
func (b *UpdateBatch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// WriteKeys returns every key the batch writes, sorted.
func (b *UpdateBatch) WriteKeys() []string {
	keys := make([]string, 0, len(b.Puts)+len(b.Deletes))
	for k := range b.Puts {
		keys = append(keys, k)
	}
	for k := range b.Deletes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ReadKeys returns every key in the read set, sorted.
func (b *UpdateBatch) ReadKeys() []string {
	keys := make([]string, 0, len(b.Reads))
	for k := range b.Reads {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Collect drains it into a slice and closes it. The result is never nil.
func Collect(it Iterator) ([]KV, error) {
	defer it.Close()
	out := []KV{}
	for {
		kv, err := it.Next()
		if err != nil {
			return nil, err
		}
		if kv == nil {
			return out, nil
		}
		out = append(out, *kv)
	}
}

// SliceIterator iterates a precomputed result set.
type SliceIterator struct {
	items []KV
	pos   int
}

// NewSliceIterator wraps items.
func NewSliceIterator(items []KV) *SliceIterator {
	return &SliceIterator{items: items}
}

// Next implements Iterator.
func (it *SliceIterator) Next() (*KV, error) {
	if it.pos >= len(it.items) {
		return nil, nil
	}
	kv := it.items[it.pos]
	it.pos++
	return &kv, nil
}

// Close implements Iterator.
func (it *SliceIterator) Close() error {
	it.items = nil
	return nil
}
