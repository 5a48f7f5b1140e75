package journal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/chaincode"
	"github.com/roach88/tdrive/internal/journal"
	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
	"github.com/roach88/tdrive/internal/testutil"
)

func TestReplayReproducesWorldState(t *testing.T) {
	ctx := context.Background()

	for _, source := range testutil.Backends {
		for _, target := range testutil.Backends {
			t.Run(source+"_to_"+target, func(t *testing.T) {
				j := openJournal(t, "")
				rt := journaledRuntime(t, source, j)
				fileLifecycle(t, rt)
				submit(t, rt, "ShareFile", "share_1", "file_1", "bob@gmail.com")
				submit(t, rt, "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")
				submit(t, rt, "TransferAsset", "asset1", "Max")

				want, err := state.Digest(ctx, rt.Store())
				require.NoError(t, err)

				result, err := journal.Replay(ctx, j, testutil.OpenStore(t, target),
					chaincode.NewRouter(chaincode.New(nil)), nil)
				require.NoError(t, err)
				assert.True(t, result.OK(), "%v", result.Divergences)
				assert.Equal(t, 7, result.Replayed)
				assert.Equal(t, uint64(7), result.Height)
				assert.Equal(t, want, result.StateDigest)
			})
		}
	}
}

func TestReplayReportsDivergence(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")
	rt := journaledRuntime(t, "leveldb", j)
	submit(t, rt, "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")
	submit(t, rt, "CreateAsset", "asset2", "red", "7", "Max", "100")

	// A handler that rejects asset1 and answers asset2 differently.
	changed := shim.HandlerFunc(func(ctx context.Context, stub shim.Stub, fn string, args []string) (string, error) {
		if args[0] == "asset1" {
			return chaincode.NewRouter(chaincode.New(nil)).Invoke(ctx, stub, "ReadAsset", args[:1])
		}
		return "changed", stub.PutState(ctx, args[0], []byte(`{"ID":"`+args[0]+`"}`))
	})

	result, err := journal.Replay(ctx, j, testutil.OpenStore(t, "sqlite"), changed, nil)
	require.NoError(t, err)
	assert.False(t, result.OK())
	require.Len(t, result.Divergences, 2)

	assert.Equal(t, "j-0001", result.Divergences[0].TxID)
	assert.Contains(t, result.Divergences[0].Reason, "rejected on replay")
	assert.Contains(t, result.Divergences[0].Reason, "The asset asset1 does not exist")

	// asset2 now commits first, under version 1 instead of 2.
	assert.Equal(t, "j-0002", result.Divergences[1].TxID)
	assert.Contains(t, result.Divergences[1].Reason, "committed at version 1, journaled 2")
	assert.Equal(t, uint64(1), result.Height)
}

func TestReplayRequiresEmptyTarget(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, "")
	rt := journaledRuntime(t, "leveldb", j)
	submit(t, rt, "CreateAsset", "asset1", "blue", "5", "Tomoko", "300")

	_, err := journal.Replay(ctx, j, rt.Store(), chaincode.NewRouter(chaincode.New(nil)), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")
}
