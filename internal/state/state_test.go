package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBatchPutDelete(t *testing.T) {
	b := NewUpdateBatch()
	assert.True(t, b.Empty())

	b.Put("a", []byte("1"))
	b.Delete("a")
	assert.NotContains(t, b.Puts, "a")
	assert.Contains(t, b.Deletes, "a")

	b.Put("a", []byte("2"))
	assert.NotContains(t, b.Deletes, "a")
	assert.Equal(t, []byte("2"), b.Puts["a"])

	b.Delete("b")
	assert.Equal(t, []string{"a", "b"}, b.WriteKeys())
	assert.False(t, b.Empty())
}

func TestUpdateBatchPutCopiesValue(t *testing.T) {
	b := NewUpdateBatch()
	v := []byte("abc")
	b.Put("k", v)
	v[0] = 'x'
	assert.Equal(t, []byte("abc"), b.Puts["k"])
}

func TestUpdateBatchFirstReadWins(t *testing.T) {
	b := NewUpdateBatch()
	b.Read("k", 3)
	b.Read("k", 5)
	b.Read("a", 0)
	assert.Equal(t, uint64(3), b.Reads["k"])
	assert.Equal(t, []string{"a", "k"}, b.ReadKeys())
}

func TestCollect(t *testing.T) {
	items := []KV{{Key: "a", Value: []byte("1"), Version: 1}, {Key: "b", Value: []byte("2"), Version: 2}}

	got, err := Collect(NewSliceIterator(items))
	require.NoError(t, err)
	assert.Equal(t, items, got)

	empty, err := Collect(NewSliceIterator(nil))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
