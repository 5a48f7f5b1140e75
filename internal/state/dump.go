package state

import (
	"context"
	"fmt"

	"github.com/roach88/tdrive/internal/ir"
)

// Dump returns every committed entry whose key starts with prefix, in key
// order. An empty prefix dumps the whole world state.
func Dump(ctx context.Context, s Store, prefix string) ([]KV, error) {
	it, err := s.GetStateRange(ctx, prefix, PrefixEnd(prefix))
	if err != nil {
		return nil, fmt.Errorf("scan world state: %w", err)
	}
	rows, err := Collect(it)
	if err != nil {
		return nil, fmt.Errorf("scan world state: %w", err)
	}
	return rows, nil
}

// Digest hashes the whole world state in key order. Two stores holding
// the same keys and values have the same digest regardless of backend or
// commit history.
func Digest(ctx context.Context, s Store) (string, error) {
	rows, err := Dump(ctx, s, "")
	if err != nil {
		return "", err
	}
	var d ir.StateDigest
	for _, kv := range rows {
		d.Add(kv.Key, kv.Value)
	}
	return d.Sum(), nil
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or "" (unbounded) when no such key exists.
func PrefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
