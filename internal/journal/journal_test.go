package journal_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/chaincode"
	"github.com/roach88/tdrive/internal/journal"
	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
	"github.com/roach88/tdrive/internal/testutil"
)

func openJournal(t *testing.T, path string) *journal.Journal {
	t.Helper()
	j, err := journal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func journaledRuntime(t *testing.T, backend string, j *journal.Journal) *shim.Runtime {
	t.Helper()
	return shim.NewRuntime(testutil.OpenStore(t, backend), chaincode.NewRouter(chaincode.New(nil)),
		shim.WithTxIDs(testutil.NewSequentialTxIDs("j")),
		shim.WithJournal(j))
}

func submit(t *testing.T, rt *shim.Runtime, fn string, args ...string) *shim.Result {
	t.Helper()
	res, err := rt.Submit(context.Background(), fn, args...)
	require.NoError(t, err, "%s%v", fn, args)
	return res
}

// fileLifecycle commits a user, a file, a rename and a delete, with a
// rejected submit and an evaluate in between.
func fileLifecycle(t *testing.T, rt *shim.Runtime) {
	t.Helper()
	ctx := context.Background()

	submit(t, rt, "CreateUser", "user_arif@gmail.com", "arif@gmail.com", "123456", "arif")
	submit(t, rt, "CreateFile", "file_1", "f1.txt", "https://cdn.example/f1", "h1", "arif@gmail.com")

	_, err := rt.Submit(ctx, "FindFile", "file_9")
	require.Error(t, err)
	_, err = rt.Evaluate(ctx, "FindUser", "arif@gmail.com", "123456")
	require.NoError(t, err)

	submit(t, rt, "ChangeFileName", "file_1", "renamed.txt")
	submit(t, rt, "DeleteFile", "file_1")
}

func TestEntriesRecordCommittedTransactionsOnly(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")
	fileLifecycle(t, journaledRuntime(t, "leveldb", j))

	entries, err := j.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var functions []string
	for i, e := range entries {
		functions = append(functions, e.Function)
		assert.Equal(t, uint64(i+1), e.Version)
		assert.Len(t, e.ResponseHash, 64)
	}
	assert.Equal(t, []string{"CreateUser", "CreateFile", "ChangeFileName", "DeleteFile"}, functions)

	// The rejected submit and the evaluate consumed tx ids but were not journaled.
	assert.Equal(t, "j-0001", entries[0].TxID)
	assert.Equal(t, "j-0002", entries[1].TxID)
	assert.Equal(t, "j-0005", entries[2].TxID)
	assert.Equal(t, "j-0006", entries[3].TxID)

	user := entries[0]
	assert.Equal(t, []string{"user_arif@gmail.com", "arif@gmail.com", "123456", "arif"}, user.Args)
	require.Len(t, user.Writes, 1)
	assert.Equal(t, "user_arif@gmail.com", user.Writes[0].Key)
	assert.JSONEq(t, user.Payload, string(user.Writes[0].Value))
	assert.False(t, user.Writes[0].IsDelete)

	del := entries[3]
	assert.Equal(t, `{"status":"File deleted"}`, del.Payload)
	require.Len(t, del.Writes, 1)
	assert.True(t, del.Writes[0].IsDelete)
	assert.Empty(t, del.Writes[0].Value)

	height, err := j.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), height)
}

func TestEmptyJournal(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")

	entries, err := j.Entries(ctx)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	height, err := j.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)

	e, err := j.Entry(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestAppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")

	batch := state.NewUpdateBatch()
	batch.Put("k", []byte(`"v"`))
	res := &shim.Result{TxID: "tx-1", Function: "put", Args: []string{"k"}, Payload: "ok", ResponseHash: "h", Committed: true, Version: 1}

	require.NoError(t, j.Append(ctx, res, batch))
	require.NoError(t, j.Append(ctx, res, batch))

	entries, err := j.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Writes, 1)
}

func TestAppendRejectsUncommitted(t *testing.T) {
	j := openJournal(t, "")

	err := j.Append(context.Background(), &shim.Result{TxID: "tx-1"}, state.NewUpdateBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not committed")
}

func TestArgsStoredVerbatim(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")
	rt := journaledRuntime(t, "sqlite", j)

	// Decomposed e-acute and an ampersand survive unchanged.
	res := submit(t, rt, "CreateAsset", "cafe\u0301", "a&b", "5", "<Tomoko>", "300")

	e, err := j.Entry(ctx, res.TxID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []string{"cafe\u0301", "a&b", "5", "<Tomoko>", "300"}, e.Args)
}

func TestKeyHistory(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")
	fileLifecycle(t, journaledRuntime(t, "sqlite", j))

	mods, err := j.KeyHistory(ctx, "file_1")
	require.NoError(t, err)
	require.Len(t, mods, 3)

	assert.Equal(t, "CreateFile", mods[0].Function)
	assert.Contains(t, string(mods[0].Value), `"Name":"f1.txt"`)
	assert.Equal(t, "ChangeFileName", mods[1].Function)
	assert.Contains(t, string(mods[1].Value), `"Name":"renamed.txt"`)
	assert.Equal(t, "DeleteFile", mods[2].Function)
	assert.True(t, mods[2].IsDelete)
	assert.Equal(t, []uint64{2, 3, 4}, []uint64{mods[0].Version, mods[1].Version, mods[2].Version})

	none, err := j.KeyHistory(ctx, "file_9")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(path)
	require.NoError(t, err)
	fileLifecycle(t, journaledRuntime(t, "leveldb", j))
	require.NoError(t, j.Close())

	reopened := openJournal(t, path)
	entries, err := reopened.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
