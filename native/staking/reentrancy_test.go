package staking

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/core/events"
)

func TestReceiverObservesSettledLedgerDuringUnstake(t *testing.T) {
	h := newHarness(t)
	h.mustStake(alice, 100)

	var observed int64 = -1
	var reentryErr error
	h.bank.RegisterReceiver(alice, func(ctx context.Context, asset, from common.Address, amount *big.Int) error {
		acc, err := h.engine.Read(ctx, alice)
		if err != nil {
			return err
		}
		observed = acc.Staked.Int64()
		// A second withdrawal of the same size cannot be funded by the
		// already-debited balance.
		reentryErr = h.engine.Unstake(ctx, testAdmin, alice, big.NewInt(60), nil)
		return nil
	})

	if err := h.engine.Unstake(h.ctx, testAdmin, alice, big.NewInt(60), nil); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if observed != 40 {
		t.Fatalf("receiver observed stake %d during transfer, want 40", observed)
	}
	if !errors.Is(reentryErr, stakeerrors.ErrInsufficientBalance) {
		t.Fatalf("expected re-entrant unstake to fail with ErrInsufficientBalance, got %v", reentryErr)
	}
	if h.staked(alice) != 40 || h.balance(testAsset, alice) != 960 {
		t.Fatalf("unexpected balances: staked=%d wallet=%d", h.staked(alice), h.balance(testAsset, alice))
	}
	if got := len(h.events.ofType(events.TypeUnstaked)); got != 1 {
		t.Fatalf("unstaked events = %d, want 1", got)
	}
	h.checkInvariants()
}

func TestReentrantUnstakeCommitsWithOuterCall(t *testing.T) {
	h := newHarness(t)
	h.mustStake(alice, 100)
	heightBefore, _ := h.engine.Height(h.ctx)

	reentered := false
	h.bank.RegisterReceiver(alice, func(ctx context.Context, asset, from common.Address, amount *big.Int) error {
		if reentered {
			return nil
		}
		reentered = true
		return h.engine.Unstake(ctx, testAdmin, alice, big.NewInt(40), nil)
	})

	if err := h.engine.Unstake(h.ctx, testAdmin, alice, big.NewInt(60), nil); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if h.total() != 0 || h.balance(testAsset, alice) != 1000 {
		t.Fatalf("unexpected state: total=%d wallet=%d", h.total(), h.balance(testAsset, alice))
	}
	heightAfter, _ := h.engine.Height(h.ctx)
	if heightAfter != heightBefore+1 {
		t.Fatalf("nested call must not commit separately: height %d -> %d", heightBefore, heightAfter)
	}
	unstaked := h.events.ofType(events.TypeUnstaked)
	if len(unstaked) != 2 {
		t.Fatalf("unstaked events = %d, want 2", len(unstaked))
	}
	// The inner call finishes first, so its event is buffered first.
	if unstaked[0].(events.Unstaked).Amount.Int64() != 40 || unstaked[1].(events.Unstaked).Amount.Int64() != 60 {
		t.Fatalf("unexpected event order")
	}
	h.checkInvariants()
}

func TestReceiverRejectionRollsBackUnstake(t *testing.T) {
	h := newHarness(t)
	h.mustStake(alice, 100)
	h.events.reset()
	root := h.exec.State().Hash()

	refuse := errors.New("receiver refuses funds")
	h.bank.RegisterReceiver(alice, func(ctx context.Context, asset, from common.Address, amount *big.Int) error {
		// Writes made before the refusal disappear with the outer call.
		if err := h.engine.Stake(ctx, bob, big.NewInt(1)); err != nil {
			return err
		}
		return refuse
	})

	err := h.engine.Unstake(h.ctx, testAdmin, alice, big.NewInt(10), nil)
	if !errors.Is(err, refuse) {
		t.Fatalf("expected receiver error, got %v", err)
	}
	if h.exec.State().Hash() != root {
		t.Fatalf("state changed after refused transfer")
	}
	if _, err := h.engine.Read(h.ctx, bob); !errors.Is(err, stakeerrors.ErrUnknownAccount) {
		t.Fatalf("nested stake survived the rollback: %v", err)
	}
	if len(h.events.events) != 0 {
		t.Fatalf("rolled back call emitted %d events", len(h.events.events))
	}
}

func TestReentrantRewardCannotOverdrawTreasury(t *testing.T) {
	h := newHarness(t)
	h.mustAddToTreasury(10)

	var inner error
	h.bank.RegisterReceiver(bob, func(ctx context.Context, asset, from common.Address, amount *big.Int) error {
		inner = h.engine.Reward(ctx, testAdmin, bob, big.NewInt(10), h.sign(KindReward, bob, 10))
		return nil
	})
	if err := h.engine.Reward(h.ctx, testAdmin, bob, big.NewInt(10), h.sign(KindReward, bob, 10)); err != nil {
		t.Fatalf("reward: %v", err)
	}
	if !errors.Is(inner, stakeerrors.ErrInsufficientTreasuryFunds) {
		t.Fatalf("expected re-entrant reward to fail, got %v", inner)
	}
	if h.pool(testAsset) != 0 || h.balance(testAsset, bob) != 1010 {
		t.Fatalf("unexpected balances: pool=%d bob=%d", h.pool(testAsset), h.balance(testAsset, bob))
	}
	h.checkInvariants()
}
