package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journaled returns root options and the global flags for a database
// with a journal.
func journaled(t *testing.T, backend string) (*RootOptions, []string) {
	t.Helper()
	opts, db := ledger(t)
	jpath := filepath.Join(t.TempDir(), "journal.db")
	return opts, []string{"--backend", backend, "--db", db, "--journal", jpath}
}

func run(t *testing.T, opts *RootOptions, base []string, args ...string) string {
	t.Helper()
	out, err := execute(t, opts, append(append([]string{}, base...), args...)...)
	require.NoError(t, err, out)
	return out
}

func TestHistoryCommand(t *testing.T) {
	opts, base := journaled(t, "leveldb")

	run(t, opts, base, "invoke", "CreateFile", "file_1", "f1.txt", "https://cdn.example/f1", "h1", "arif@gmail.com")
	run(t, opts, base, "query", "FindFile", "file_1")
	run(t, opts, base, "invoke", "ChangeFileName", "file_1", "renamed.txt")
	run(t, opts, base, "invoke", "DeleteFile", "file_1")

	out := run(t, opts, base, "history")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "1 cli-0001 CreateFile(file_1, f1.txt, "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2 cli-0003 ChangeFileName(file_1, renamed.txt) -> "), lines[1])
	assert.Equal(t, `3 cli-0004 DeleteFile(file_1) -> {"status":"File deleted"}`, lines[2])

	out = run(t, opts, base, "history", "--key", "file_1")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], `"Name":"renamed.txt"`)
	assert.Equal(t, "3 cli-0004 DeleteFile (deleted)", lines[2])

	out = run(t, opts, base, "--format", "json", "history", "--key", "file_1")
	var resp struct {
		Data []KeyChange `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.True(t, resp.Data[2].Deleted)
	assert.Empty(t, resp.Data[2].Value)
}

func TestHistoryJSON(t *testing.T) {
	opts, base := journaled(t, "sqlite")
	run(t, opts, base, "invoke", "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")

	out := run(t, opts, base, "--format", "json", "history")
	var resp struct {
		Status string         `json:"status"`
		Data   []HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "CreateAsset", resp.Data[0].Function)
	assert.Equal(t, uint64(1), resp.Data[0].Version)
	assert.Equal(t, []string{"asset1"}, resp.Data[0].Writes)
}

func TestHistoryRequiresJournal(t *testing.T) {
	_, err := execute(t, &RootOptions{}, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal")
}

func TestReplayCommand(t *testing.T) {
	for _, backend := range []string{"leveldb", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			opts, base := journaled(t, backend)
			run(t, opts, base, "invoke", "CreateUser", "user_arif@gmail.com", "arif@gmail.com", "123456", "arif")
			run(t, opts, base, "invoke", "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")
			run(t, opts, base, "invoke", "TransferAsset", "asset1", "Max")

			out := run(t, opts, base, "replay")
			assert.Contains(t, out, "replayed: 3\n")
			assert.Contains(t, out, "height: 3\n")
			assert.Contains(t, out, "live state: matches\n")
			assert.NotContains(t, out, "DIVERGED")

			out = run(t, opts, base, "--format", "json", "replay")
			var resp struct {
				Data ReplayData `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, resp.Data.StateDigest, resp.Data.LiveDigest)
			assert.Empty(t, resp.Data.Divergences)
		})
	}
}

func TestReplayDetectsUnjournaledCommits(t *testing.T) {
	opts, base := journaled(t, "leveldb")
	run(t, opts, base, "invoke", "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")

	// Commit without the journal: the live state moves on, the journal does not.
	run(t, opts, base[:4], "invoke", "DeleteAsset", "asset1")

	out, err := execute(t, opts, append(base, "replay")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "live state: differs")
}
