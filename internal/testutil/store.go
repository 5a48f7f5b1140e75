package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/state"
	"github.com/roach88/tdrive/internal/state/stateleveldb"
	"github.com/roach88/tdrive/internal/state/statesqlite"
)

// Backends names every store backend OpenStore accepts.
var Backends = []string{"leveldb", "sqlite"}

// OpenStore opens a private in-memory store of the named backend that is
// closed when the test ends.
func OpenStore(t testing.TB, backend string) state.Store {
	t.Helper()

	var (
		s   state.Store
		err error
	)
	switch backend {
	case "leveldb":
		s, err = stateleveldb.Open("")
	case "sqlite":
		s, err = statesqlite.Open("", nil)
	default:
		t.Fatalf("unknown backend %q", backend)
	}
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
