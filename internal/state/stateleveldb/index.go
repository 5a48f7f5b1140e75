package stateleveldb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/queryir"
	"github.com/roach88/tdrive/internal/state"
)

// appendComponent appends a uvarint length followed by b, so a sequence of
// components can be followed by an arbitrary primary key without ambiguity.
func appendComponent(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func docTypePrefix(docType string) []byte {
	return appendComponent([]byte{prefixDocType}, []byte(docType))
}

func fieldPrefix(docType, field string, value ir.IRValue) ([]byte, error) {
	token, err := ir.MarshalCanonical(value)
	if err != nil {
		return nil, fmt.Errorf("index token for %s: %w", field, err)
	}
	p := appendComponent([]byte{prefixField}, []byte(docType))
	p = appendComponent(p, []byte(field))
	return appendComponent(p, token), nil
}

// indexKeys returns the index entries for a stored value. Only JSON
// objects with a string DocType are indexed; of their fields, only
// top-level scalars with identifier names. Other fields may hold anything
// JSON allows, floats included.
func indexKeys(key string, value []byte) [][]byte {
	obj, err := ir.UnmarshalScalarFields(value)
	if err != nil {
		return nil
	}
	docType, ok := obj[queryir.DocTypeField].(ir.IRString)
	if !ok {
		return nil
	}

	keys := [][]byte{append(docTypePrefix(string(docType)), key...)}
	for _, field := range obj.SortedKeys() {
		if field == queryir.DocTypeField || !queryir.IsValidField(field) {
			continue
		}
		p, err := fieldPrefix(string(docType), field, obj[field])
		if err != nil {
			continue
		}
		keys = append(keys, append(p, key...))
	}
	return keys
}

// rangeIterator walks state entries of a snapshot.
type rangeIterator struct {
	ctx  context.Context
	snap *leveldb.Snapshot
	iter iterator.Iterator
}

func (it *rangeIterator) Next() (*state.KV, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}
	if !it.iter.Next() {
		return nil, it.iter.Error()
	}
	vv, err := decodeVersioned(it.iter.Value())
	if err != nil {
		return nil, err
	}
	return &state.KV{
		Key:     string(it.iter.Key()[1:]),
		Value:   vv.Value,
		Version: vv.Version,
	}, nil
}

func (it *rangeIterator) Close() error {
	it.iter.Release()
	it.snap.Release()
	return nil
}

// queryIterator walks one index prefix and yields the records that satisfy
// every condition.
type queryIterator struct {
	ctx    context.Context
	snap   *leveldb.Snapshot
	iter   iterator.Iterator
	prefix int
	conds  []queryir.Equals
}

func (it *queryIterator) Next() (*state.KV, error) {
	for {
		if err := it.ctx.Err(); err != nil {
			return nil, err
		}
		if !it.iter.Next() {
			return nil, it.iter.Error()
		}
		key := string(it.iter.Key()[it.prefix:])

		vv, err := getVersioned(it.snap, key)
		if err != nil {
			return nil, err
		}
		if vv == nil {
			continue
		}
		obj, err := ir.UnmarshalScalarFields(vv.Value)
		if err != nil || !queryir.Matches(obj, it.conds) {
			continue
		}
		return &state.KV{Key: key, Value: vv.Value, Version: vv.Version}, nil
	}
}

func (it *queryIterator) Close() error {
	it.iter.Release()
	it.snap.Release()
	return nil
}
