package txn

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakeledger/core/events"
	"stakeledger/core/state"
	"stakeledger/storage"
)

type capture struct {
	events []events.Event
}

func (c *capture) Emit(evt events.Event) { c.events = append(c.events, evt) }

func newExecutor(t *testing.T) (*Executor, *capture) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := state.Open(db)
	require.NoError(t, err)
	exec := NewExecutor(mgr)
	sink := &capture{}
	exec.SetEmitter(sink)
	return exec, sink
}

func putTotal(ctx context.Context, m *state.Manager, v int64) error {
	return m.KVPut(state.StakingTotalKey(), big.NewInt(v))
}

func readTotal(t *testing.T, m *state.Manager) (int64, bool) {
	t.Helper()
	out := new(big.Int)
	ok, err := m.KVGet(state.StakingTotalKey(), out)
	require.NoError(t, err)
	return out.Int64(), ok
}

func TestRunCommitsAndDeliversEnvelopes(t *testing.T) {
	exec, sink := newExecutor(t)
	ctx := context.Background()

	receipt, err := exec.Run(ctx, func(ctx context.Context) error {
		require.Equal(t, 1, Depth(ctx))
		Emit(ctx, events.Staked{Account: common.HexToAddress("0x01"), Amount: big.NewInt(7)})
		return putTotal(ctx, exec.State(), 7)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Height)
	require.Equal(t, exec.State().Root(), receipt.Root)
	require.Equal(t, 1, receipt.Events)

	require.Len(t, sink.events, 1)
	env, ok := sink.events[0].(Envelope)
	require.True(t, ok)
	require.Equal(t, events.TypeStaked, env.EventType())
	require.Equal(t, receipt.Height, env.Height)
}

func TestRunRevertsOnError(t *testing.T) {
	exec, sink := newExecutor(t)
	ctx := context.Background()
	before := exec.State().Hash()
	boom := errors.New("boom")

	_, err := exec.Run(ctx, func(ctx context.Context) error {
		Emit(ctx, events.Staked{Account: common.HexToAddress("0x01"), Amount: big.NewInt(1)})
		require.NoError(t, putTotal(ctx, exec.State(), 9))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, exec.State().Hash())
	require.Equal(t, uint64(0), exec.State().Height())
	require.Empty(t, sink.events)
}

func TestNestedFailureOnlyRevertsInnerWrites(t *testing.T) {
	exec, sink := newExecutor(t)
	ctx := context.Background()
	inner := errors.New("inner failed")

	_, err := exec.Run(ctx, func(ctx context.Context) error {
		require.NoError(t, putTotal(ctx, exec.State(), 1))
		Emit(ctx, events.Staked{Account: common.HexToAddress("0x01"), Amount: big.NewInt(1)})

		_, nestedErr := exec.Run(ctx, func(ctx context.Context) error {
			require.Equal(t, 2, Depth(ctx))
			Emit(ctx, events.Staked{Account: common.HexToAddress("0x02"), Amount: big.NewInt(2)})
			require.NoError(t, putTotal(ctx, exec.State(), 2))
			return inner
		})
		require.ErrorIs(t, nestedErr, inner)

		got, ok := readTotal(t, exec.State())
		require.True(t, ok)
		require.Equal(t, int64(1), got)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	require.Equal(t, uint64(1), exec.State().Height())
}

func TestNestedSuccessCommitsWithParent(t *testing.T) {
	exec, _ := newExecutor(t)
	ctx := context.Background()

	receipt, err := exec.Run(ctx, func(ctx context.Context) error {
		nested, err := exec.Run(ctx, func(ctx context.Context) error {
			return putTotal(ctx, exec.State(), 3)
		})
		require.Equal(t, Receipt{}, nested)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Height)

	got, ok := readTotal(t, exec.State())
	require.True(t, ok)
	require.Equal(t, int64(3), got)
}

func TestEmitOutsideTransactionIsDropped(t *testing.T) {
	require.False(t, InTransaction(context.Background()))
	require.Equal(t, 0, Depth(context.Background()))
	Emit(context.Background(), events.Staked{})
}

func TestRunHonoursCancelledContext(t *testing.T) {
	exec, _ := newExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := exec.Run(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestWithReceiptCapturesOutermostCommit(t *testing.T) {
	exec, _ := newExecutor(t)
	var got Receipt
	ctx := WithReceipt(context.Background(), &got)

	receipt, err := exec.Run(ctx, func(ctx context.Context) error {
		_, err := exec.Run(ctx, func(ctx context.Context) error {
			return putTotal(ctx, exec.State(), 3)
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, receipt, got)
	require.Equal(t, uint64(1), got.Height)

	// A later commit without the sink leaves the captured receipt alone.
	_, err = exec.Run(context.Background(), func(ctx context.Context) error {
		return putTotal(ctx, exec.State(), 4)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Height)

	var failed Receipt
	_, err = exec.Run(WithReceipt(context.Background(), &failed), func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Zero(t, failed.Height)
}
