package staking

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/core/events"
	"stakeledger/core/state"
	"stakeledger/core/txn"
	"stakeledger/crypto"
	"stakeledger/native/bank"
	nativecommon "stakeledger/native/common"
	"stakeledger/native/multisig"
	"stakeledger/storage"
)

var (
	testAsset   = common.HexToAddress("0x00000000000000000000000000000000000a55e7")
	otherAsset  = common.HexToAddress("0x00000000000000000000000000000000000b0b0b")
	testCustody = common.HexToAddress("0x000000000000000000000000000000000000c057")
	testAdmin   = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob         = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

const fixedNow = int64(1_700_000_000)

type recorder struct{ events []events.Event }

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) reset() { r.events = nil }

// ofType unwraps committed envelopes and returns the payloads of typ.
func (r *recorder) ofType(typ string) []events.Event {
	var out []events.Event
	for _, evt := range r.events {
		payload := evt
		if env, ok := evt.(txn.Envelope); ok {
			payload = env.Payload
		}
		if payload.EventType() == typ {
			out = append(out, payload)
		}
	}
	return out
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	exec      *txn.Executor
	bank      *bank.Ledger
	owners    *nativecommon.Ownership
	contracts *multisig.Registry
	engine    *Engine
	authority *crypto.PrivateKey
	events    *recorder
}

func testDomain() Domain {
	return Domain{Name: "StakeLedger", Version: "1", ChainID: big.NewInt(1337), VerifyingContract: testCustody}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := state.Open(db)
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	return newHarnessWithState(t, mgr)
}

func newHarnessWithState(t *testing.T, mgr *state.Manager) *harness {
	t.Helper()
	authority, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate authority: %v", err)
	}
	exec := txn.NewExecutor(mgr)
	rec := &recorder{}
	exec.SetEmitter(rec)
	ledger := bank.NewLedger(mgr)
	owners := nativecommon.NewOwnership(mgr)
	registry := multisig.NewRegistry()
	cfg := Config{Domain: testDomain(), StakingAsset: testAsset, Authority: authority.PubKey().Address()}
	engine, err := NewEngine(cfg, exec, ledger, owners, registry)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetNowFunc(func() int64 { return fixedNow })

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		exec:      exec,
		bank:      ledger,
		owners:    owners,
		contracts: registry,
		engine:    engine,
		authority: authority,
		events:    rec,
	}
	h.setup(func(ctx context.Context) error {
		if err := owners.Initialize(ctx, testAdmin); err != nil {
			return err
		}
		return engine.Bootstrap(ctx)
	})
	h.fund(alice, 1_000)
	h.fund(bob, 1_000)
	h.fund(testAdmin, 10_000)
	rec.reset()
	return h
}

func (h *harness) setup(fn func(ctx context.Context) error) {
	h.t.Helper()
	if _, err := h.exec.Run(h.ctx, fn); err != nil {
		h.t.Fatalf("setup: %v", err)
	}
}

// fund mints the staking asset and the secondary asset to holder and
// approves custody for all of it.
func (h *harness) fund(holder common.Address, amount int64) {
	h.t.Helper()
	h.setup(func(ctx context.Context) error {
		for _, asset := range []common.Address{testAsset, otherAsset} {
			if err := h.bank.Mint(ctx, asset, holder, big.NewInt(amount)); err != nil {
				return err
			}
			if err := h.bank.Approve(ctx, asset, holder, testCustody, big.NewInt(amount)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *harness) sign(kind Kind, account common.Address, amount int64) []byte {
	h.t.Helper()
	sig, err := Sign(h.authority, testDomain(), kind, account, big.NewInt(amount))
	if err != nil {
		h.t.Fatalf("sign: %v", err)
	}
	return sig
}

func (h *harness) staked(account common.Address) int64 {
	h.t.Helper()
	acc, err := h.engine.Read(h.ctx, account)
	if err != nil {
		h.t.Fatalf("read %s: %v", account.Hex(), err)
	}
	return acc.Staked.Int64()
}

func (h *harness) total() int64 {
	h.t.Helper()
	total, err := h.engine.TotalStaked(h.ctx)
	if err != nil {
		h.t.Fatalf("total: %v", err)
	}
	return total.Int64()
}

func (h *harness) pool(asset common.Address) int64 {
	h.t.Helper()
	pool, err := h.engine.TreasuryBalance(h.ctx, asset)
	if err != nil {
		h.t.Fatalf("treasury: %v", err)
	}
	return pool.Int64()
}

func (h *harness) balance(asset, holder common.Address) int64 {
	h.t.Helper()
	bal, err := h.bank.BalanceOf(asset, holder)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func (h *harness) checkInvariants() {
	h.t.Helper()
	if err := h.engine.CheckInvariants(h.ctx); err != nil {
		h.t.Fatalf("invariants: %v", err)
	}
}

func (h *harness) mustStake(account common.Address, amount int64) {
	h.t.Helper()
	if err := h.engine.Stake(h.ctx, account, big.NewInt(amount)); err != nil {
		h.t.Fatalf("stake %d for %s: %v", amount, account.Hex(), err)
	}
}

func (h *harness) mustAddToTreasury(amount int64) {
	h.t.Helper()
	if err := h.engine.AddToTreasury(h.ctx, testAdmin, big.NewInt(amount), testAsset); err != nil {
		h.t.Fatalf("add to treasury: %v", err)
	}
}

func newExecutorFor(mgr *state.Manager) *txn.Executor {
	return txn.NewExecutor(mgr)
}

func newAuthorityKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// fixedOwner is an ownership view with a single hard-wired administrator.
type fixedOwner common.Address

func (o fixedOwner) IsOwner(addr common.Address) bool { return addr == common.Address(o) }

func (o fixedOwner) Owner() (common.Address, error) { return common.Address(o), nil }

func (fixedOwner) TransferOwnership(context.Context, common.Address, common.Address) error {
	return errFixedOwner
}

var errFixedOwner = errors.New("fixed owner: cannot transfer")

// nilBank holds no funds and refuses every transfer.
type nilBank struct{}

var errNoFunds = errors.New("nil bank: no funds")

func (nilBank) TransferFrom(context.Context, common.Address, common.Address, common.Address, common.Address, *big.Int) error {
	return errNoFunds
}

func (nilBank) Transfer(context.Context, common.Address, common.Address, common.Address, *big.Int) error {
	return errNoFunds
}

func (nilBank) BalanceOf(common.Address, common.Address) (*big.Int, error) { return new(big.Int), nil }
