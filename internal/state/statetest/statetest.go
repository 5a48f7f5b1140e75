// Package statetest is the behavioural test suite every state.Store
// backend must pass.
package statetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/state"
)

// OpenFunc opens a fresh, empty store. The suite closes it.
type OpenFunc func(t *testing.T) state.Store

// Run executes the store contract suite against open.
func Run(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s state.Store)
	}{
		{"GetAbsent", testGetAbsent},
		{"CommitPutGet", testCommitPutGet},
		{"CommitDelete", testCommitDelete},
		{"HeightAdvances", testHeightAdvances},
		{"StaleReadConflicts", testStaleReadConflicts},
		{"PhantomCreateConflicts", testPhantomCreateConflicts},
		{"CurrentReadsCommit", testCurrentReadsCommit},
		{"RangeOrderAndBounds", testRangeOrderAndBounds},
		{"QueryByDocType", testQueryByDocType},
		{"QueryByField", testQueryByField},
		{"QueryFollowsUpdates", testQueryFollowsUpdates},
		{"QueryIgnoresNonRecords", testQueryIgnoresNonRecords},
		{"QueryMatchesLooseRecords", testQueryMatchesLooseRecords},
		{"QueryValueKinds", testQueryValueKinds},
		{"QueryRejectsInvalid", testQueryRejectsInvalid},
		{"CanceledContext", testCanceledContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func commit(t *testing.T, s state.Store, puts map[string]string, deletes ...string) uint64 {
	t.Helper()
	b := state.NewUpdateBatch()
	for k, v := range puts {
		b.Put(k, []byte(v))
	}
	for _, k := range deletes {
		b.Delete(k)
	}
	version, err := s.Commit(context.Background(), b)
	require.NoError(t, err)
	return version
}

func keys(t *testing.T, it state.Iterator, err error) []string {
	t.Helper()
	require.NoError(t, err)
	kvs, err := state.Collect(it)
	require.NoError(t, err)
	out := []string{}
	for _, kv := range kvs {
		out = append(out, kv.Key)
	}
	return out
}

func query(t *testing.T, s state.Store, q string) []string {
	t.Helper()
	it, err := s.ExecuteQuery(context.Background(), q)
	return keys(t, it, err)
}

func testGetAbsent(t *testing.T, s state.Store) {
	v, err := s.GetState(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func testCommitPutGet(t *testing.T, s state.Store) {
	version := commit(t, s, map[string]string{"asset1": `{"ID":"asset1"}`})

	v, err := s.GetState(context.Background(), "asset1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, `{"ID":"asset1"}`, string(v.Value))
	assert.Equal(t, version, v.Version)
}

func testCommitDelete(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{"a": "1", "b": "2"})
	commit(t, s, nil, "a", "never-existed")

	v, err := s.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = s.GetState(context.Background(), "b")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func testHeightAdvances(t *testing.T, s state.Store) {
	ctx := context.Background()
	h, err := s.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h)

	v1 := commit(t, s, map[string]string{"a": "1"})
	v2 := commit(t, s, map[string]string{"a": "2"})
	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)

	h, err = s.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, h)
}

func testStaleReadConflicts(t *testing.T, s state.Store) {
	ctx := context.Background()
	v1 := commit(t, s, map[string]string{"asset1": `{"Owner":"Tom"}`})
	commit(t, s, map[string]string{"asset1": `{"Owner":"Max"}`})

	b := state.NewUpdateBatch()
	b.Read("asset1", v1)
	b.Put("asset1", []byte(`{"Owner":"Ann"}`))
	b.Put("other", []byte("x"))

	_, err := s.Commit(ctx, b)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))

	v, err := s.GetState(ctx, "asset1")
	require.NoError(t, err)
	assert.Equal(t, `{"Owner":"Max"}`, string(v.Value))

	other, err := s.GetState(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, other, "a conflicting batch must not be partially applied")
}

func testPhantomCreateConflicts(t *testing.T, s state.Store) {
	ctx := context.Background()
	b := state.NewUpdateBatch()
	b.Read("asset1", 0)
	b.Put("asset1", []byte("mine"))

	commit(t, s, map[string]string{"asset1": "theirs"})

	_, err := s.Commit(ctx, b)
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
}

func testCurrentReadsCommit(t *testing.T, s state.Store) {
	ctx := context.Background()
	v1 := commit(t, s, map[string]string{"asset1": "a"})

	b := state.NewUpdateBatch()
	b.Read("asset1", v1)
	b.Read("absent", 0)
	b.Put("asset1", []byte("b"))

	v2, err := s.Commit(ctx, b)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)
}

func testRangeOrderAndBounds(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{"b": "2", "a": "1", "c": "3", "ab": "4", "B": "5"})
	ctx := context.Background()

	it, err := s.GetStateRange(ctx, "", "")
	assert.Equal(t, []string{"B", "a", "ab", "b", "c"}, keys(t, it, err))

	it, err = s.GetStateRange(ctx, "a", "b")
	assert.Equal(t, []string{"a", "ab"}, keys(t, it, err))

	it, err = s.GetStateRange(ctx, "ab", "")
	assert.Equal(t, []string{"ab", "b", "c"}, keys(t, it, err))

	it, err = s.GetStateRange(ctx, "", "a")
	assert.Equal(t, []string{"B"}, keys(t, it, err))

	it, err = s.GetStateRange(ctx, "x", "")
	assert.Equal(t, []string{}, keys(t, it, err))
}

func testQueryByDocType(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{
		"user_b": `{"DocType":"user","Email":"b"}`,
		"user_a": `{"DocType":"user","Email":"a"}`,
		"file_1": `{"DocType":"file","UploaderEmail":"a"}`,
		"asset1": `{"ID":"asset1","Owner":"a"}`,
	})

	assert.Equal(t, []string{"user_a", "user_b"}, query(t, s, `{"selector":{"DocType":"user"}}`))
	assert.Equal(t, []string{"file_1"}, query(t, s, `{"selector":{"DocType":"file"}}`))
	assert.Equal(t, []string{}, query(t, s, `{"selector":{"DocType":"fileShare"}}`))
}

func testQueryByField(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{
		"file_1":  `{"DocType":"file","UploaderEmail":"a@x","Name":"one"}`,
		"file_2":  `{"DocType":"file","UploaderEmail":"b@x","Name":"two"}`,
		"file_3":  `{"DocType":"file","UploaderEmail":"a@x","Name":"three"}`,
		"share_1": `{"DocType":"fileShare","SharedWithEmail":"a@x","FileKey":"file_2"}`,
	})

	assert.Equal(t, []string{"file_1", "file_3"},
		query(t, s, `{"selector":{"DocType":"file","UploaderEmail":"a@x"}}`))
	assert.Equal(t, []string{"file_3"},
		query(t, s, `{"selector":{"DocType":"file","Name":"three","UploaderEmail":"a@x"}}`))
	assert.Equal(t, []string{"share_1"},
		query(t, s, `{"selector":{"DocType":"fileShare","SharedWithEmail":"a@x"}}`))
	assert.Equal(t, []string{},
		query(t, s, `{"selector":{"DocType":"file","UploaderEmail":"nobody"}}`))
}

func testQueryFollowsUpdates(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{
		"file_1": `{"DocType":"file","Name":"old","UploaderEmail":"a@x"}`,
		"file_2": `{"DocType":"file","Name":"keep","UploaderEmail":"a@x"}`,
	})
	commit(t, s, map[string]string{"file_1": `{"DocType":"file","Name":"new","UploaderEmail":"a@x"}`})

	assert.Equal(t, []string{}, query(t, s, `{"selector":{"DocType":"file","Name":"old"}}`))
	assert.Equal(t, []string{"file_1"}, query(t, s, `{"selector":{"DocType":"file","Name":"new"}}`))

	commit(t, s, nil, "file_1")
	assert.Equal(t, []string{"file_2"}, query(t, s, `{"selector":{"DocType":"file","UploaderEmail":"a@x"}}`))

	// A record that changes kind leaves its old document type.
	commit(t, s, map[string]string{"file_2": `{"DocType":"fileShare","FileKey":"x"}`})
	assert.Equal(t, []string{}, query(t, s, `{"selector":{"DocType":"file"}}`))
	assert.Equal(t, []string{"file_2"}, query(t, s, `{"selector":{"DocType":"fileShare"}}`))
}

func testQueryIgnoresNonRecords(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{
		"raw":     `not json at all`,
		"array":   `[{"DocType":"user"}]`,
		"numeric": `{"DocType":7}`,
		"float":   `{"DocType":"user","Score":1.5}`,
		"user_1":  `{"DocType":"user","Email":"a"}`,
	})

	got := query(t, s, `{"selector":{"DocType":"user","Email":"a"}}`)
	assert.Equal(t, []string{"user_1"}, got)
}

// Records the strict value model rejects still match on their scalar
// fields; callers decide how to present them.
func testQueryMatchesLooseRecords(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{
		"file_float":  `{"DocType":"file","UploaderEmail":"u","X":1.5}`,
		"file_nested": `{"DocType":"file","UploaderEmail":"u","Meta":{"size":0.5,"tag":null}}`,
		"file_null":   `{"DocType":"file","UploaderEmail":null,"Name":"n"}`,
		"file_plain":  `{"DocType":"file","UploaderEmail":"u"}`,
	})

	assert.Equal(t, []string{"file_float", "file_nested", "file_plain"},
		query(t, s, `{"selector":{"DocType":"file","UploaderEmail":"u"}}`))
	assert.Equal(t, []string{"file_float", "file_nested", "file_null", "file_plain"},
		query(t, s, `{"selector":{"DocType":"file"}}`))
	assert.Equal(t, []string{"file_null"},
		query(t, s, `{"selector":{"DocType":"file","Name":"n"}}`))
}

func testQueryValueKinds(t *testing.T, s state.Store) {
	commit(t, s, map[string]string{
		"s": `{"DocType":"x","n":"1"}`,
		"i": `{"DocType":"x","n":1}`,
		"b": `{"DocType":"x","n":true}`,
	})

	assert.Equal(t, []string{"s"}, query(t, s, `{"selector":{"DocType":"x","n":"1"}}`))
	assert.Equal(t, []string{"i"}, query(t, s, `{"selector":{"DocType":"x","n":1}}`))
	assert.Equal(t, []string{"b"}, query(t, s, `{"selector":{"DocType":"x","n":true}}`))
}

func testQueryRejectsInvalid(t *testing.T, s state.Store) {
	ctx := context.Background()
	for _, q := range []string{
		`not json`,
		`{"selector":{"Email":"a"}}`,
		`{"selector":{"DocType":"user","Email":{"$gt":"a"}}}`,
	} {
		_, err := s.ExecuteQuery(ctx, q)
		assert.Error(t, err, q)
	}
}

func testCanceledContext(t *testing.T, s state.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetState(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Commit(ctx, state.NewUpdateBatch())
	assert.ErrorIs(t, err, context.Canceled)
}
