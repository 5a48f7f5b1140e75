package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCommand(t *testing.T) {
	opts, db := ledger(t)
	base := []string{"--db", db}

	_, err := execute(t, opts, append(base, "invoke", "CreateUser",
		"user_arif@gmail.com", "arif@gmail.com", "123456", "arif")...)
	require.NoError(t, err)
	_, err = execute(t, opts, append(base, "invoke", "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")...)
	require.NoError(t, err)

	out, err := execute(t, opts, append(base, "state")...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "height: 2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "digest: "))
	assert.Equal(t, `asset1 @2 {"AppraisedValue":"300","Color":"blue","ID":"asset1","Owner":"Tomoko","Size":"5"}`, lines[2])
	assert.Equal(t, "user_arif@gmail.com @1 "+arifUser, lines[3])

	out, err = execute(t, opts, append(base, "--format", "json", "state", "--prefix", "user_")...)
	require.NoError(t, err)

	var resp struct {
		Data StateData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, uint64(2), resp.Data.Height)
	assert.Equal(t, strings.TrimPrefix(lines[1], "digest: "), resp.Data.Digest, "prefix must not narrow the digest")
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, "user_arif@gmail.com", resp.Data.Rows[0].Key)
}

func TestStateDigestMatchesAcrossBackends(t *testing.T) {
	digests := map[string]string{}
	for _, backend := range []string{"leveldb", "sqlite"} {
		opts, db := ledger(t)
		base := []string{"--backend", backend, "--db", db}

		_, err := execute(t, opts, append(base, "invoke", "CreateFile",
			"file_1", "f1.txt", "https://cdn.example/f1", "h1", "arif@gmail.com")...)
		require.NoError(t, err)

		out, err := execute(t, opts, append(base, "--format", "json", "state")...)
		require.NoError(t, err)
		var resp struct {
			Data StateData `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		digests[backend] = resp.Data.Digest
	}
	assert.Equal(t, digests["leveldb"], digests["sqlite"])
}
