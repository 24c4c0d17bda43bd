package common

import (
	"context"
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/core/events"
	"stakeledger/core/state"
	"stakeledger/core/txn"
	"stakeledger/storage"
)

type recorder struct{ events []events.Event }

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func TestRequireOwnerNilView(t *testing.T) {
	if err := RequireOwner(nil, ethcommon.HexToAddress("0x01")); !errors.Is(err, stakeerrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestOwnershipLifecycle(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr, err := state.Open(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exec := txn.NewExecutor(mgr)
	rec := &recorder{}
	exec.SetEmitter(rec)
	own := NewOwnership(mgr)

	admin := ethcommon.HexToAddress("0xad")
	next := ethcommon.HexToAddress("0xbe")
	ctx := context.Background()

	if _, err := exec.Run(ctx, func(ctx context.Context) error {
		if err := own.Initialize(ctx, admin); err != nil {
			return err
		}
		// Second initialisation keeps the first owner.
		return own.Initialize(ctx, next)
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !own.IsOwner(admin) || own.IsOwner(next) {
		t.Fatalf("unexpected owner after initialize")
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one ownership event, got %d", len(rec.events))
	}

	_, err = exec.Run(ctx, func(ctx context.Context) error {
		return own.TransferOwnership(ctx, next, next)
	})
	if !errors.Is(err, stakeerrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	_, err = exec.Run(ctx, func(ctx context.Context) error {
		return own.TransferOwnership(ctx, admin, ethcommon.Address{})
	})
	if !errors.Is(err, stakeerrors.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}

	if _, err := exec.Run(ctx, func(ctx context.Context) error {
		return own.TransferOwnership(ctx, admin, next)
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := own.Owner()
	if err != nil || owner != next {
		t.Fatalf("owner = %s (%v), want %s", owner.Hex(), err, next.Hex())
	}
	if err := RequireOwner(own, admin); !errors.Is(err, stakeerrors.ErrNotAuthorized) {
		t.Fatalf("previous owner kept privileges")
	}
}
