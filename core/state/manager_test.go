package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakeledger/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := Open(db)
	require.NoError(t, err)
	return mgr
}

func TestKVRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	key := StakingTotalKey()
	ok, err := mgr.KVGet(key, new(big.Int))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVPut(key, big.NewInt(42)))
	got := new(big.Int)
	ok, err = mgr.KVGet(key, got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), got.Int64())

	require.NoError(t, mgr.KVDelete(key))
	ok, err = mgr.KVGet(key, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := newTestManager(t)
	key := StakingAccountIndexKey()

	var empty [][]byte
	require.NoError(t, mgr.KVGetList(key, &empty))
	require.NotNil(t, empty)
	require.Len(t, empty, 0)

	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	require.NoError(t, mgr.KVAppend(key, a.Bytes()))
	require.NoError(t, mgr.KVAppend(key, b.Bytes()))
	require.NoError(t, mgr.KVAppend(key, a.Bytes()))

	var list [][]byte
	require.NoError(t, mgr.KVGetList(key, &list))
	require.Equal(t, [][]byte{a.Bytes(), b.Bytes()}, list)
}

func TestCheckpointRevertRestoresRoot(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.KVPut(StakingTotalKey(), big.NewInt(1)))
	before := mgr.Hash()

	cp := mgr.Checkpoint()
	require.NoError(t, mgr.KVPut(StakingTotalKey(), big.NewInt(2)))
	require.NoError(t, mgr.KVPut(StakingAuthorityKey(), common.HexToAddress("0xaa")))
	require.NotEqual(t, before, mgr.Hash())

	mgr.Revert(cp)
	require.Equal(t, before, mgr.Hash())

	// Reverting twice to the same checkpoint is allowed.
	require.NoError(t, mgr.KVPut(StakingTotalKey(), big.NewInt(3)))
	mgr.Revert(cp)
	require.Equal(t, before, mgr.Hash())
}

func TestNestedCheckpoints(t *testing.T) {
	mgr := newTestManager(t)
	outer := mgr.Checkpoint()
	require.NoError(t, mgr.KVPut(StakingTotalKey(), big.NewInt(5)))
	afterOuterWrite := mgr.Hash()

	inner := mgr.Checkpoint()
	require.NoError(t, mgr.KVPut(StakingTotalKey(), big.NewInt(6)))
	mgr.Revert(inner)
	require.Equal(t, afterOuterWrite, mgr.Hash())

	mgr.Revert(outer)
	got := new(big.Int)
	ok, err := mgr.KVGet(StakingTotalKey(), got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommitPersistsHead(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	mgr, err := Open(db)
	require.NoError(t, err)
	require.Equal(t, uint64(0), mgr.Height())

	owner := common.HexToAddress("0xbeef")
	require.NoError(t, mgr.SetRoleHolder("owner", owner))
	require.NoError(t, mgr.KVPut(StakingTotalKey(), big.NewInt(77)))
	root, err := mgr.Commit()
	require.NoError(t, err)
	require.Equal(t, uint64(1), mgr.Height())
	require.Equal(t, root, mgr.Root())
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := Open(db)
	require.NoError(t, err)
	require.Equal(t, uint64(1), reopened.Height())
	require.Equal(t, root, reopened.Root())
	require.True(t, reopened.HasRole("owner", owner))

	total := new(big.Int)
	ok, err := reopened.KVGet(StakingTotalKey(), total)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(77), total.Int64())
}

func TestRoleHolderReplacesPrevious(t *testing.T) {
	mgr := newTestManager(t)
	first := common.HexToAddress("0x10")
	second := common.HexToAddress("0x20")

	require.False(t, mgr.HasRole("owner", first))
	require.NoError(t, mgr.SetRoleHolder("owner", first))
	require.True(t, mgr.HasRole("owner", first))

	require.NoError(t, mgr.SetRoleHolder("owner", second))
	require.False(t, mgr.HasRole("owner", first))
	require.True(t, mgr.HasRole("owner", second))
	require.False(t, mgr.HasRole("owner", common.Address{}))
	require.Error(t, mgr.SetRoleHolder("  ", first))
}
