package shim

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/state"
)

// Stub is the world-state handle a transaction handler works through.
//
// Reads see committed state only; writes are buffered and become visible
// when the runtime commits the transaction.
type Stub interface {
	GetTxID() string

	// GetState returns the committed value for key, or nil if absent.
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, key string, value []byte) error
	DelState(ctx context.Context, key string) error

	// GetQueryResult runs a rich query. The caller must Close the iterator.
	GetQueryResult(ctx context.Context, query string) (state.Iterator, error)

	// GetStateByRange iterates [start, end); "" leaves a side unbounded.
	// The caller must Close the iterator.
	GetStateByRange(ctx context.Context, start, end string) (state.Iterator, error)
}

// TxStub is the Stub for one transaction. It records the version of every
// key read so the commit can detect that the key changed underneath it.
// Query and range results are not tracked.
type TxStub struct {
	txID  string
	store state.Store
	batch *state.UpdateBatch
}

// NewTxStub creates a stub for transaction txID over store.
func NewTxStub(txID string, store state.Store) *TxStub {
	return &TxStub{
		txID:  txID,
		store: store,
		batch: state.NewUpdateBatch(),
	}
}

// GetTxID implements Stub.
func (s *TxStub) GetTxID() string {
	return s.txID
}

// GetState implements Stub.
func (s *TxStub) GetState(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	vv, err := s.store.GetState(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get state %q: %w", key, err)
	}
	if vv == nil {
		s.batch.Read(key, 0)
		return nil, nil
	}
	s.batch.Read(key, vv.Version)
	return vv.Value, nil
}

// PutState implements Stub.
func (s *TxStub) PutState(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.batch.Put(key, value)
	return nil
}

// DelState implements Stub.
func (s *TxStub) DelState(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.batch.Delete(key)
	return nil
}

// GetQueryResult implements Stub.
func (s *TxStub) GetQueryResult(ctx context.Context, query string) (state.Iterator, error) {
	it, err := s.store.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return it, nil
}

// GetStateByRange implements Stub.
func (s *TxStub) GetStateByRange(ctx context.Context, start, end string) (state.Iterator, error) {
	it, err := s.store.GetStateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("get state range: %w", err)
	}
	return it, nil
}

// Batch returns the transaction's read and write sets.
func (s *TxStub) Batch() *state.UpdateBatch {
	return s.batch
}

func validateKey(key string) error {
	if key == "" {
		return fault.InvalidArgument("key must not be empty")
	}
	if !utf8.ValidString(key) {
		return fault.InvalidArgument("key %q is not valid UTF-8", key)
	}
	return nil
}
