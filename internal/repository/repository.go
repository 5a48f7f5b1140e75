// Package repository gives typed get/put/exists/delete access to one entity
// kind over a transaction stub. It keeps no state between invocations.
package repository

import (
	"context"
	"fmt"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/record"
	"github.com/roach88/tdrive/internal/shim"
)

// Entity constrains PT to a pointer to a record type T.
type Entity[T any] interface {
	*T
	record.Record
	record.Decodable
}

// Repository reads and writes records of type T.
type Repository[T any, PT Entity[T]] struct {
	kind string
}

// New creates a repository; kind names the entity in failure messages.
func New[T any, PT Entity[T]](kind string) *Repository[T, PT] {
	return &Repository[T, PT]{kind: kind}
}

// Get loads the record at key. An absent or empty value is NOT_FOUND; a
// value that does not decode is CORRUPT.
func (r *Repository[T, PT]) Get(ctx context.Context, stub shim.Stub, key string) (*T, error) {
	data, err := stub.GetState(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", r.kind, key, err)
	}
	if len(data) == 0 {
		return nil, fault.NotFound(key, fmt.Sprintf("The %s %s does not exist", r.kind, key))
	}

	var v T
	if err := record.Decode(data, PT(&v)); err != nil {
		return nil, fault.Corrupt(key, err)
	}
	return &v, nil
}

// Put encodes v and writes it at key, replacing any existing value.
func (r *Repository[T, PT]) Put(ctx context.Context, stub shim.Stub, key string, v *T) error {
	data, err := record.Encode(PT(v))
	if err != nil {
		return fmt.Errorf("put %s %q: %w", r.kind, key, err)
	}
	if err := stub.PutState(ctx, key, data); err != nil {
		return fmt.Errorf("put %s %q: %w", r.kind, key, err)
	}
	return nil
}

// Exists reports whether a non-empty value is stored at key.
func (r *Repository[T, PT]) Exists(ctx context.Context, stub shim.Stub, key string) (bool, error) {
	data, err := stub.GetState(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %s %q: %w", r.kind, key, err)
	}
	return len(data) > 0, nil
}

// Delete removes key. Deleting an absent key is NOT_FOUND.
func (r *Repository[T, PT]) Delete(ctx context.Context, stub shim.Stub, key string) error {
	ok, err := r.Exists(ctx, stub, key)
	if err != nil {
		return err
	}
	if !ok {
		return fault.NotFound(key, fmt.Sprintf("The %s %s does not exist", r.kind, key))
	}
	if err := stub.DelState(ctx, key); err != nil {
		return fmt.Errorf("delete %s %q: %w", r.kind, key, err)
	}
	return nil
}
