package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/core/events"
	ledgerstate "stakeledger/core/state"
	"stakeledger/core/txn"
	"stakeledger/core/types"
	nativecommon "stakeledger/native/common"
)

var errNilEngine = errors.New("staking engine: not configured")

// Operation names used in logs and metrics.
const (
	OpStake              = "stake"
	OpUnstake            = "unstake"
	OpReward             = "reward"
	OpSlash              = "slash"
	OpAddToTreasury      = "add_to_treasury"
	OpRemoveFromTreasury = "remove_from_treasury"
	OpRotateAuthority    = "rotate_authority"
	OpTransferOwnership  = "transfer_ownership"
	OpBootstrap          = "bootstrap"
)

// assetBank is the subset of the asset ledger the engine moves funds with.
type assetBank interface {
	TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error
	Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
	BalanceOf(asset, holder common.Address) (*big.Int, error)
}

type ownerSource interface {
	nativecommon.OwnerView
	Owner() (common.Address, error)
	TransferOwnership(ctx context.Context, caller, next common.Address) error
}

// Observer receives the outcome of every top-level operation.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveTotals(staked, treasury *big.Int)
}

// custody binds the bank to the staking asset's custody address.
type custody struct {
	bank    assetBank
	address common.Address
}

func (c custody) pull(ctx context.Context, asset, from common.Address, amount *big.Int) error {
	return c.bank.TransferFrom(ctx, asset, c.address, from, c.address, amount)
}

// counterparty rejects transfers where custody would pay or pull from
// itself; such a move leaves custody balances untouched.
func (c custody) counterparty(addr common.Address) error {
	if addr == (common.Address{}) || addr == c.address {
		return stakeerrors.ErrInvalidIdentity
	}
	return nil
}

func (c custody) push(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	return c.bank.Transfer(ctx, asset, c.address, to, amount)
}

// Engine sequences the staking ledger, the treasury and custody transfers.
// Every mutating call runs as one txn.Executor transaction: authorization,
// then internal bookkeeping, then the asset transfer, then notification.
// Any error reverts the whole call.
type Engine struct {
	config     Config
	exec       *txn.Executor
	state      *ledgerstate.Manager
	ledger     *Ledger
	treasury   *Treasury
	authorizer *Authorizer
	owners     ownerSource
	custody    custody
	logger     *slog.Logger
	observer   Observer
	nowFn      func() int64
}

// NewEngine wires an engine over exec's state. contracts may be nil.
func NewEngine(cfg Config, exec *txn.Executor, bank assetBank, owners ownerSource, contracts contractResolver) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("staking engine: %w", err)
	}
	if exec == nil || exec.State() == nil || bank == nil || owners == nil {
		return nil, errNilEngine
	}
	authorizer, err := NewAuthorizer(cfg.Domain, contracts)
	if err != nil {
		return nil, err
	}
	manager := exec.State()
	return &Engine{
		config:     cfg,
		exec:       exec,
		state:      manager,
		ledger:     NewLedger(manager),
		treasury:   NewTreasury(manager),
		authorizer: authorizer,
		owners:     owners,
		custody:    custody{bank: bank, address: cfg.Custody()},
		logger:     slog.Default(),
		nowFn:      func() int64 { return time.Now().Unix() },
	}, nil
}

// SetLogger replaces the engine logger. Passing nil restores slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

func (e *Engine) SetObserver(observer Observer) { e.observer = observer }

// SetNowFunc overrides the time source used for account timestamps.
// Primarily intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts <= 0 {
		// Zero marks "never existed"; clamp clocks that report the epoch.
		return 1
	}
	return uint64(ts)
}

// Bootstrap stores the configured authority when none is recorded yet.
func (e *Engine) Bootstrap(ctx context.Context) error {
	return e.execute(ctx, OpBootstrap, common.Address{}, func(ctx context.Context) error {
		current, ok, err := e.readAuthority()
		if err != nil {
			return err
		}
		if ok && current != (common.Address{}) {
			return nil
		}
		if e.config.Authority == (common.Address{}) {
			return stakeerrors.ErrInvalidIdentity
		}
		if err := e.writeAuthority(e.config.Authority); err != nil {
			return err
		}
		txn.Emit(ctx, events.AuthorityRotated{Next: e.config.Authority})
		return nil
	})
}

// Stake credits caller with amount and pulls the funds into custody. The
// caller must have approved the custody address beforehand.
func (e *Engine) Stake(ctx context.Context, caller common.Address, amount *big.Int) error {
	return e.execute(ctx, OpStake, caller, func(ctx context.Context) error {
		if err := validateAmount(amount); err != nil {
			return err
		}
		if err := e.custody.counterparty(caller); err != nil {
			return err
		}
		if err := e.ledger.Credit(caller, amount, e.now()); err != nil {
			return err
		}
		if err := e.custody.pull(ctx, e.config.StakingAsset, caller, amount); err != nil {
			return fmt.Errorf("stake: pull funds: %w", err)
		}
		txn.Emit(ctx, events.Staked{Account: caller, Amount: cloneBigInt(amount)})
		return nil
	})
}

// Unstake debits subject and pays the funds out of custody. The
// administrator may unstake for anyone without a signature; everyone else
// may only unstake their own balance with an authority signature.
func (e *Engine) Unstake(ctx context.Context, caller, subject common.Address, amount *big.Int, sig []byte) error {
	return e.execute(ctx, OpUnstake, caller, func(ctx context.Context) error {
		if err := validateAmount(amount); err != nil {
			return err
		}
		decision, err := e.authorizeUnstake(caller, subject, amount, sig)
		if err != nil {
			return err
		}
		if err := e.ledger.Debit(subject, amount, e.now()); err != nil {
			return err
		}
		if err := e.custody.push(ctx, e.config.StakingAsset, subject, amount); err != nil {
			return fmt.Errorf("unstake: release funds: %w", err)
		}
		txn.Emit(ctx, events.Unstaked{Account: subject, Amount: cloneBigInt(amount), Via: decision.Via(), Digest: decision.Digest()})
		return nil
	})
}

// Reward pays amount from the staking asset's treasury pool to subject.
func (e *Engine) Reward(ctx context.Context, caller, subject common.Address, amount *big.Int, sig []byte) error {
	return e.execute(ctx, OpReward, caller, func(ctx context.Context) error {
		if err := nativecommon.RequireOwner(e.owners, caller); err != nil {
			return err
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		if err := e.custody.counterparty(subject); err != nil {
			return err
		}
		decision, err := e.authorizeSigned(KindReward, subject, amount, sig)
		if err != nil {
			return err
		}
		if err := e.treasury.Withdraw(e.config.StakingAsset, amount); err != nil {
			return err
		}
		if err := e.custody.push(ctx, e.config.StakingAsset, subject, amount); err != nil {
			return fmt.Errorf("reward: pay out: %w", err)
		}
		txn.Emit(ctx, events.Rewarded{Account: subject, Amount: cloneBigInt(amount), Digest: decision.Digest()})
		return nil
	})
}

// Slash moves penalty from subject's stake into the treasury. No funds leave
// custody.
func (e *Engine) Slash(ctx context.Context, caller, subject common.Address, penalty *big.Int, sig []byte) error {
	return e.execute(ctx, OpSlash, caller, func(ctx context.Context) error {
		if err := nativecommon.RequireOwner(e.owners, caller); err != nil {
			return err
		}
		if err := validateAmount(penalty); err != nil {
			return err
		}
		decision, err := e.authorizeSigned(KindPenalty, subject, penalty, sig)
		if err != nil {
			return err
		}
		if err := e.ledger.Debit(subject, penalty, e.now()); err != nil {
			return err
		}
		if err := e.treasury.Deposit(e.config.StakingAsset, penalty); err != nil {
			return err
		}
		txn.Emit(ctx, events.Slashed{Account: subject, Penalty: cloneBigInt(penalty), Digest: decision.Digest()})
		return nil
	})
}

// AddToTreasury credits asset's pool and pulls the funds from the
// administrator into custody.
func (e *Engine) AddToTreasury(ctx context.Context, caller common.Address, amount *big.Int, asset common.Address) error {
	return e.execute(ctx, OpAddToTreasury, caller, func(ctx context.Context) error {
		if err := nativecommon.RequireOwner(e.owners, caller); err != nil {
			return err
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		if err := e.custody.counterparty(caller); err != nil {
			return err
		}
		if err := e.treasury.Deposit(asset, amount); err != nil {
			return err
		}
		if err := e.custody.pull(ctx, asset, caller, amount); err != nil {
			return fmt.Errorf("treasury deposit: pull funds: %w", err)
		}
		txn.Emit(ctx, events.TreasuryDeposit{Asset: asset, Amount: cloneBigInt(amount), From: caller})
		return nil
	})
}

// RemoveFromTreasury debits asset's pool and pays recipient from custody.
func (e *Engine) RemoveFromTreasury(ctx context.Context, caller common.Address, amount *big.Int, asset, recipient common.Address) error {
	return e.execute(ctx, OpRemoveFromTreasury, caller, func(ctx context.Context) error {
		if err := nativecommon.RequireOwner(e.owners, caller); err != nil {
			return err
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		if err := e.custody.counterparty(recipient); err != nil {
			return err
		}
		if err := e.treasury.Withdraw(asset, amount); err != nil {
			return err
		}
		if err := e.custody.push(ctx, asset, recipient, amount); err != nil {
			return fmt.Errorf("treasury withdrawal: pay out: %w", err)
		}
		txn.Emit(ctx, events.TreasuryWithdrawal{Asset: asset, Amount: cloneBigInt(amount), Recipient: recipient})
		return nil
	})
}

// RotateAuthority replaces the identity whose signatures are honoured.
func (e *Engine) RotateAuthority(ctx context.Context, caller, next common.Address) error {
	return e.execute(ctx, OpRotateAuthority, caller, func(ctx context.Context) error {
		if err := nativecommon.RequireOwner(e.owners, caller); err != nil {
			return err
		}
		if next == (common.Address{}) {
			return stakeerrors.ErrInvalidIdentity
		}
		previous, _, err := e.readAuthority()
		if err != nil {
			return err
		}
		if err := e.writeAuthority(next); err != nil {
			return err
		}
		txn.Emit(ctx, events.AuthorityRotated{Previous: previous, Next: next})
		return nil
	})
}

// TransferOwnership hands the administrator role to next.
func (e *Engine) TransferOwnership(ctx context.Context, caller, next common.Address) error {
	return e.execute(ctx, OpTransferOwnership, caller, func(ctx context.Context) error {
		return e.owners.TransferOwnership(ctx, caller, next)
	})
}

func (e *Engine) authorizeUnstake(caller, subject common.Address, amount *big.Int, sig []byte) (Decision, error) {
	if e.owners.IsOwner(caller) {
		return administratorDecision(), nil
	}
	if caller != subject {
		return Decision{}, stakeerrors.ErrInvalidAuthorization
	}
	return e.authorizeSigned(KindUnstake, subject, amount, sig)
}

func (e *Engine) authorizeSigned(kind Kind, subject common.Address, amount *big.Int, sig []byte) (Decision, error) {
	authority, _, err := e.readAuthority()
	if err != nil {
		return Decision{}, err
	}
	digest, err := e.authorizer.Verify(authority, kind, subject, amount, sig)
	if err != nil {
		return Decision{}, err
	}
	return signedDecision(digest), nil
}

func (e *Engine) readAuthority() (common.Address, bool, error) {
	var authority common.Address
	ok, err := e.state.KVGet(ledgerstate.StakingAuthorityKey(), &authority)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("staking: read authority: %w", err)
	}
	return authority, ok, nil
}

func (e *Engine) writeAuthority(authority common.Address) error {
	if err := e.state.KVPut(ledgerstate.StakingAuthorityKey(), authority); err != nil {
		return fmt.Errorf("staking: write authority: %w", err)
	}
	return nil
}

// execute runs fn as one transaction and reports the outcome of top-level
// calls to the logger and observer.
func (e *Engine) execute(ctx context.Context, op string, caller common.Address, fn func(ctx context.Context) error) error {
	if e == nil || e.exec == nil {
		return errNilEngine
	}
	if ctx == nil {
		ctx = context.Background()
	}
	nested := txn.InTransaction(ctx)
	start := time.Now()
	receipt, err := e.exec.Run(ctx, fn)
	elapsed := time.Since(start)

	attrs := []any{slog.String("op", op), slog.String("caller", caller.Hex())}
	if nested {
		attrs = append(attrs, slog.Int("depth", txn.Depth(ctx)+1))
	}
	if err != nil {
		e.logger.Warn("staking operation rejected", append(attrs, slog.Any("error", err))...)
	} else if !nested {
		e.logger.Info("staking operation committed", append(attrs,
			slog.Uint64("height", receipt.Height),
			slog.String("root", receipt.Root.Hex()),
			slog.Duration("elapsed", elapsed))...)
	}
	if e.observer != nil && !nested {
		e.observer.ObserveOperation(op, err, elapsed)
		if err == nil {
			e.observeTotals()
		}
	}
	return err
}

func (e *Engine) observeTotals() {
	var staked, pool *big.Int
	err := e.exec.View(context.Background(), func(*ledgerstate.Manager) error {
		var err error
		if staked, err = e.ledger.Total(); err != nil {
			return err
		}
		pool, err = e.treasury.Balance(e.config.StakingAsset)
		return err
	})
	if err != nil {
		e.logger.Warn("staking totals unavailable", slog.Any("error", err))
		return
	}
	e.observer.ObserveTotals(staked, pool)
}

// view runs a read-only query, nested when ctx carries a transaction.
func (e *Engine) view(ctx context.Context, fn func() error) error {
	if e == nil || e.exec == nil {
		return errNilEngine
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return e.exec.View(ctx, func(*ledgerstate.Manager) error { return fn() })
}

// Read returns account's ledger record.
func (e *Engine) Read(ctx context.Context, account common.Address) (*types.Account, error) {
	var out *types.Account
	err := e.view(ctx, func() error {
		acc, err := e.ledger.Read(account)
		out = acc
		return err
	})
	return out, err
}

// Liquidity reports custody holdings of the staking asset against the
// treasury pool and the staked total.
func (e *Engine) Liquidity(ctx context.Context) (types.Liquidity, error) {
	var out types.Liquidity
	err := e.view(ctx, func() error {
		custodyBalance, err := e.custody.bank.BalanceOf(e.config.StakingAsset, e.custody.address)
		if err != nil {
			return err
		}
		pool, err := e.treasury.Balance(e.config.StakingAsset)
		if err != nil {
			return err
		}
		total, err := e.ledger.Total()
		if err != nil {
			return err
		}
		out = types.Liquidity{Custody: custodyBalance, Treasury: pool, Staked: total}
		return nil
	})
	return out, err
}

// Authority returns the identity whose signatures are currently honoured.
func (e *Engine) Authority(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := e.view(ctx, func() error {
		authority, _, err := e.readAuthority()
		out = authority
		return err
	})
	return out, err
}

// Owner returns the administrator.
func (e *Engine) Owner(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := e.view(ctx, func() error {
		owner, err := e.owners.Owner()
		out = owner
		return err
	})
	return out, err
}

func (e *Engine) TotalStaked(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := e.view(ctx, func() error {
		total, err := e.ledger.Total()
		out = total
		return err
	})
	return out, err
}

func (e *Engine) TreasuryBalance(ctx context.Context, asset common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(ctx, func() error {
		pool, err := e.treasury.Balance(asset)
		out = pool
		return err
	})
	return out, err
}

// StateRoot returns the root of the last committed state.
func (e *Engine) StateRoot(ctx context.Context) (common.Hash, error) {
	var out common.Hash
	err := e.view(ctx, func() error {
		out = e.state.Root()
		return nil
	})
	return out, err
}

// Height returns the number of committed transactions.
func (e *Engine) Height(ctx context.Context) (uint64, error) {
	var out uint64
	err := e.view(ctx, func() error {
		out = e.state.Height()
		return nil
	})
	return out, err
}

func (e *Engine) StakingAsset() common.Address { return e.config.StakingAsset }

func (e *Engine) CustodyAddress() common.Address { return e.custody.address }

func (e *Engine) Domain() Domain { return e.authorizer.Domain() }

func (e *Engine) DomainSeparator() common.Hash { return e.authorizer.DomainSeparator() }

// Digest returns the hash the authority must sign to authorize
// (kind, account, amount).
func (e *Engine) Digest(kind Kind, account common.Address, amount *big.Int) (common.Hash, error) {
	return e.authorizer.Digest(kind, account, amount)
}
