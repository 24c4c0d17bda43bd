package bank

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/core/events"
	"stakeledger/core/state"
	"stakeledger/core/txn"
	"stakeledger/storage"
)

var (
	asset   = common.HexToAddress("0x00000000000000000000000000000000000000a5")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c0")
)

type recorder struct{ events []events.Event }

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func newTestLedger(t *testing.T) (*Ledger, *txn.Executor, *recorder) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := state.Open(db)
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	exec := txn.NewExecutor(mgr)
	rec := &recorder{}
	exec.SetEmitter(rec)
	return NewLedger(mgr), exec, rec
}

func run(t *testing.T, exec *txn.Executor, fn func(ctx context.Context) error) error {
	t.Helper()
	_, err := exec.Run(context.Background(), fn)
	return err
}

func mustBalance(t *testing.T, l *Ledger, holder common.Address) int64 {
	t.Helper()
	bal, err := l.BalanceOf(asset, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestMintAndTransfer(t *testing.T) {
	l, exec, rec := newTestLedger(t)
	if err := run(t, exec, func(ctx context.Context) error {
		if err := l.Mint(ctx, asset, alice, big.NewInt(100)); err != nil {
			return err
		}
		return l.Transfer(ctx, asset, alice, bob, big.NewInt(30))
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := mustBalance(t, l, alice); got != 70 {
		t.Fatalf("alice balance = %d, want 70", got)
	}
	if got := mustBalance(t, l, bob); got != 30 {
		t.Fatalf("bob balance = %d, want 30", got)
	}
	supply, _ := l.TotalSupply(asset)
	if supply.Int64() != 100 {
		t.Fatalf("supply = %s, want 100", supply)
	}
	if len(rec.events) != 2 {
		t.Fatalf("expected mint and transfer events, got %d", len(rec.events))
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l, exec, _ := newTestLedger(t)
	if err := run(t, exec, func(ctx context.Context) error {
		if err := l.Mint(ctx, asset, alice, big.NewInt(100)); err != nil {
			return err
		}
		return l.Approve(ctx, asset, alice, custody, big.NewInt(60))
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	err := run(t, exec, func(ctx context.Context) error {
		return l.TransferFrom(ctx, asset, custody, alice, custody, big.NewInt(61))
	})
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := run(t, exec, func(ctx context.Context) error {
		return l.TransferFrom(ctx, asset, custody, alice, custody, big.NewInt(60))
	}); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, _ := l.Allowance(asset, alice, custody)
	if allowance.Sign() != 0 {
		t.Fatalf("allowance = %s, want 0", allowance)
	}
	if got := mustBalance(t, l, custody); got != 60 {
		t.Fatalf("custody balance = %d, want 60", got)
	}
}

func TestTransferValidation(t *testing.T) {
	l, exec, _ := newTestLedger(t)
	cases := []struct {
		name   string
		amount *big.Int
		want   error
	}{
		{name: "nil", amount: nil, want: ErrInvalidAmount},
		{name: "zero", amount: big.NewInt(0), want: ErrInvalidAmount},
		{name: "negative", amount: big.NewInt(-1), want: ErrInvalidAmount},
		{name: "too wide", amount: new(big.Int).Lsh(big.NewInt(1), 256), want: ErrInvalidAmount},
		{name: "unfunded", amount: big.NewInt(1), want: ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(t, exec, func(ctx context.Context) error {
				return l.Transfer(ctx, asset, alice, bob, tc.amount)
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMintRejectsSupplyOverflow(t *testing.T) {
	l, exec, _ := newTestLedger(t)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := run(t, exec, func(ctx context.Context) error {
		return l.Mint(ctx, asset, alice, max)
	}); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	err := run(t, exec, func(ctx context.Context) error {
		return l.Mint(ctx, asset, bob, big.NewInt(1))
	})
	if !errors.Is(err, ErrSupplyOverflow) {
		t.Fatalf("expected ErrSupplyOverflow, got %v", err)
	}
}

func TestReceiverHookFailureRollsBack(t *testing.T) {
	l, exec, rec := newTestLedger(t)
	if err := run(t, exec, func(ctx context.Context) error {
		return l.Mint(ctx, asset, alice, big.NewInt(10))
	}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	rec.events = nil
	rejected := errors.New("no thanks")
	var seen *big.Int
	l.RegisterReceiver(bob, func(ctx context.Context, gotAsset, from common.Address, amount *big.Int) error {
		if gotAsset != asset || from != alice {
			t.Fatalf("unexpected hook arguments: %s %s", gotAsset.Hex(), from.Hex())
		}
		seen = amount
		return rejected
	})
	root := exec.State().Hash()

	err := run(t, exec, func(ctx context.Context) error {
		return l.Transfer(ctx, asset, alice, bob, big.NewInt(4))
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if seen == nil || seen.Int64() != 4 {
		t.Fatalf("hook did not observe the transfer")
	}
	if exec.State().Hash() != root {
		t.Fatalf("state changed after rejected transfer")
	}
	if len(rec.events) != 0 {
		t.Fatalf("rejected transfer must not emit events")
	}

	l.RegisterReceiver(bob, nil)
	if err := run(t, exec, func(ctx context.Context) error {
		return l.Transfer(ctx, asset, alice, bob, big.NewInt(4))
	}); err != nil {
		t.Fatalf("transfer after hook removal: %v", err)
	}
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	l, exec, _ := newTestLedger(t)
	if err := run(t, exec, func(ctx context.Context) error {
		if err := l.Mint(ctx, asset, alice, big.NewInt(5)); err != nil {
			return err
		}
		return l.Transfer(ctx, asset, alice, alice, big.NewInt(5))
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := mustBalance(t, l, alice); got != 5 {
		t.Fatalf("alice balance = %d, want 5", got)
	}
}
