package shim

import "github.com/google/uuid"

// TxIDGenerator produces transaction ids.
type TxIDGenerator interface {
	Generate() string
}

// UUIDTxIDs generates time-sortable UUIDv7 transaction ids.
//
// Thread-safety: UUIDTxIDs is stateless and safe for concurrent use.
type UUIDTxIDs struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDTxIDs) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
