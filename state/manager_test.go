package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Winnrdotfun/protocol/core/types"
	"github.com/Winnrdotfun/protocol/native/contest"
	"github.com/Winnrdotfun/protocol/storage"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestManagerRoundTrips(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	cfg := &contest.Config{Admin: testAddr(0xAA), Mint: "WINNR", FeePercent: 5}
	require.NoError(t, manager.ConfigPut(cfg))
	loaded, ok, err := manager.ConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg, loaded)

	meta := &contest.ContestMetadata{ContestCount: 2, FeePercent: 5, FeeAmount: big.NewInt(17)}
	require.NoError(t, manager.MetadataPut(meta))
	loadedMeta, ok, err := manager.MetadataGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), loadedMeta.ContestCount)
	require.Zero(t, loadedMeta.FeeAmount.Cmp(big.NewInt(17)))

	key := contest.DeriveContestKey(0, testAddr(0x01))
	c := &contest.Contest{
		ID:                     0,
		Key:                    key,
		Creator:                testAddr(0x01),
		StartTime:              1000,
		EndTime:                2000,
		EntryFee:               10,
		MaxEntries:             100,
		TokenFeedIDs:           []string{"aa", "bb"},
		WinnerRewardAllocation: []uint8{75, 25},
	}
	require.NoError(t, manager.ContestPut(c))
	loadedContest, ok, err := manager.ContestGet(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c.ID, loadedContest.ID)
	require.Equal(t, c.TokenFeedIDs, loadedContest.TokenFeedIDs)

	credits := &contest.ContestCredits{ContestKey: key, CreditAllocations: []uint8{25, 75, 50, 50}}
	require.NoError(t, manager.CreditsPut(credits))
	loadedCredits, ok, err := manager.CreditsGet(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, credits.CreditAllocations, loadedCredits.CreditAllocations)

	entry := &contest.ContestEntry{ID: 1, User: testAddr(0x10), ContestKey: key, CreditAllocation: []uint8{50, 50}}
	require.NoError(t, manager.EntryPut(entry))
	loadedEntry, ok, err := manager.EntryGet(key, testAddr(0x10))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.ID, loadedEntry.ID)

	_, ok, err = manager.EntryGet(key, testAddr(0x11))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerAccounts(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x10)

	acc, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, acc)

	require.NoError(t, manager.PutAccount(addr, &types.Account{Nonce: 3, Balance: big.NewInt(90)}))
	acc, err = manager.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, acc)
	require.Equal(t, uint64(3), acc.Nonce)
	require.Zero(t, acc.Balance.Cmp(big.NewInt(90)))

	require.Error(t, manager.PutAccount(addr, nil))
}

func TestSnapshotRevertRestoresPriorBytes(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	require.NoError(t, manager.MetadataPut(&contest.ContestMetadata{ContestCount: 1, FeePercent: 5, FeeAmount: big.NewInt(10)}))
	before, err := db.Get(contest.MetadataStoreKey())
	require.NoError(t, err)

	snapshot := manager.Snapshot()

	// Overwrite an existing key and create a fresh one.
	require.NoError(t, manager.MetadataPut(&contest.ContestMetadata{ContestCount: 2, FeePercent: 5, FeeAmount: big.NewInt(99)}))
	require.NoError(t, manager.PutAccount(testAddr(0x10), &types.Account{Balance: big.NewInt(1)}))

	require.NoError(t, manager.RevertToSnapshot(snapshot))

	after, err := db.Get(contest.MetadataStoreKey())
	require.NoError(t, err)
	require.Equal(t, before, after)

	_, err = db.Get(contest.AccountStoreKey(testAddr(0x10)))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotDiscardKeepsWrites(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	snapshot := manager.Snapshot()
	require.NoError(t, manager.MetadataPut(&contest.ContestMetadata{ContestCount: 1, FeePercent: 5, FeeAmount: big.NewInt(0)}))
	manager.DiscardSnapshot(snapshot)

	meta, ok, err := manager.MetadataGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), meta.ContestCount)

	// Discarded history must not be revertable.
	require.NoError(t, manager.RevertToSnapshot(0))
	meta, ok, err = manager.MetadataGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), meta.ContestCount)
}

func TestNestedSnapshots(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	outer := manager.Snapshot()
	require.NoError(t, manager.MetadataPut(&contest.ContestMetadata{ContestCount: 1, FeePercent: 5, FeeAmount: big.NewInt(0)}))

	inner := manager.Snapshot()
	require.NoError(t, manager.MetadataPut(&contest.ContestMetadata{ContestCount: 2, FeePercent: 5, FeeAmount: big.NewInt(0)}))

	require.NoError(t, manager.RevertToSnapshot(inner))
	meta, ok, err := manager.MetadataGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), meta.ContestCount)

	require.NoError(t, manager.RevertToSnapshot(outer))
	_, ok, err = manager.MetadataGet()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevertInvalidSnapshot(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.Error(t, manager.RevertToSnapshot(-1))
	require.Error(t, manager.RevertToSnapshot(5))
}
