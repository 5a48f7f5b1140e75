package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for hashing. The version suffix leaves room for
// algorithm migration.
const (
	DomainResponse = "tdrive/response/v1"
	DomainState    = "tdrive/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ResponseHash identifies the outcome of one transaction execution: the
// function, its arguments and the response payload. Two nodes that executed
// the same invocation deterministically produce the same hash.
func ResponseHash(function string, args []string, payload string) (string, error) {
	arr := make(IRArray, len(args))
	for i, a := range args {
		arr[i] = IRString(a)
	}
	canonical, err := MarshalCanonical(IRObject{
		"function": IRString(function),
		"args":     arr,
		"payload":  IRString(payload),
	})
	if err != nil {
		return "", fmt.Errorf("ResponseHash: %w", err)
	}
	return hashWithDomain(DomainResponse, canonical), nil
}

// StateDigest folds an ordered sequence of key/value pairs into one hash.
// Each pair is length-prefixed so adjacent entries cannot alias.
type StateDigest struct {
	parts [][]byte
}

// Add appends one key/value pair. Callers must add pairs in key order.
func (d *StateDigest) Add(key string, value []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))
	d.parts = append(d.parts, append([]byte(nil), lenBuf[:n]...), []byte(key))
	n = binary.PutUvarint(lenBuf[:], uint64(len(value)))
	d.parts = append(d.parts, append([]byte(nil), lenBuf[:n]...), append([]byte(nil), value...))
}

// Sum returns the hex digest of everything added so far.
func (d *StateDigest) Sum() string {
	return hashWithDomain(DomainState, d.parts...)
}
