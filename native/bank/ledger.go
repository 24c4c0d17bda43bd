// Package bank keeps fungible asset balances in ledger state so transfers
// commit or roll back with the transaction that caused them.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"stakeledger/core/events"
	ledgerstate "stakeledger/core/state"
	"stakeledger/core/txn"
)

var (
	ErrInvalidAmount         = errors.New("bank: amount must be positive and fit in 256 bits")
	ErrInsufficientFunds     = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrSupplyOverflow        = errors.New("bank: supply overflow")
	errNilState              = errors.New("bank: state not configured")
)

type bankState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// ReceiverHook is invoked after funds land on a registered address. Returning
// an error fails the transfer. Hooks receive the context of the transfer and
// may call back into the ledger through it.
type ReceiverHook func(ctx context.Context, asset, from common.Address, amount *big.Int) error

// Ledger moves balances of any number of assets. It must be driven from
// inside a txn.Executor transaction: it writes straight into state and leaves
// rollback to the surrounding checkpoint.
type Ledger struct {
	state bankState

	mu        sync.RWMutex
	receivers map[common.Address]ReceiverHook
}

func NewLedger(state bankState) *Ledger {
	return &Ledger{state: state, receivers: make(map[common.Address]ReceiverHook)}
}

// RegisterReceiver installs hook for addr, replacing any earlier hook. A nil
// hook removes the registration.
func (l *Ledger) RegisterReceiver(addr common.Address, hook ReceiverHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.receivers, addr)
		return
	}
	l.receivers[addr] = hook
}

func (l *Ledger) receiver(addr common.Address) ReceiverHook {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.receivers[addr]
}

func (l *Ledger) BalanceOf(asset, holder common.Address) (*big.Int, error) {
	return l.read(ledgerstate.BankBalanceKey(asset, holder))
}

func (l *Ledger) Allowance(asset, owner, spender common.Address) (*big.Int, error) {
	return l.read(ledgerstate.BankAllowanceKey(asset, owner, spender))
}

// TotalSupply returns the amount of asset minted so far.
func (l *Ledger) TotalSupply(asset common.Address) (*big.Int, error) {
	return l.read(ledgerstate.BankSupplyKey(asset))
}

// Approve sets the amount spender may pull from owner's balance of asset.
// A zero amount clears the allowance.
func (l *Ledger) Approve(ctx context.Context, asset, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || !fits256(amount) {
		return ErrInvalidAmount
	}
	if err := l.write(ledgerstate.BankAllowanceKey(asset, owner, spender), amount); err != nil {
		return err
	}
	txn.Emit(ctx, events.Approval{Asset: asset, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint creates new units of asset for to.
func (l *Ledger) Mint(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	supply, err := l.TotalSupply(asset)
	if err != nil {
		return err
	}
	supply.Add(supply, amount)
	if !fits256(supply) {
		return ErrSupplyOverflow
	}
	balance, err := l.BalanceOf(asset, to)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	if err := l.write(ledgerstate.BankSupplyKey(asset), supply); err != nil {
		return err
	}
	if err := l.write(ledgerstate.BankBalanceKey(asset, to), balance); err != nil {
		return err
	}
	txn.Emit(ctx, events.Mint{Asset: asset, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount of asset from from to to.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	return l.move(ctx, asset, from, to, amount)
}

// TransferFrom moves amount of asset from from to to on behalf of spender,
// consuming allowance.
func (l *Ledger) TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if spender != from {
		allowance, err := l.Allowance(asset, from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
		}
		allowance.Sub(allowance, amount)
		if err := l.write(ledgerstate.BankAllowanceKey(asset, from, spender), allowance); err != nil {
			return err
		}
	}
	return l.move(ctx, asset, from, to, amount)
}

func (l *Ledger) move(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	fromBal, err := l.BalanceOf(asset, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBal, amount)
	}
	if from != to {
		toBal, err := l.BalanceOf(asset, to)
		if err != nil {
			return err
		}
		fromBal.Sub(fromBal, amount)
		toBal.Add(toBal, amount)
		if err := l.write(ledgerstate.BankBalanceKey(asset, from), fromBal); err != nil {
			return err
		}
		if err := l.write(ledgerstate.BankBalanceKey(asset, to), toBal); err != nil {
			return err
		}
	}
	txn.Emit(ctx, events.Transfer{Asset: asset, From: from, To: to, Amount: new(big.Int).Set(amount)})
	if hook := l.receiver(to); hook != nil {
		if err := hook(ctx, asset, from, new(big.Int).Set(amount)); err != nil {
			return fmt.Errorf("bank: receiver %s rejected transfer: %w", to.Hex(), err)
		}
	}
	return nil
}

func (l *Ledger) read(key []byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	out := new(big.Int)
	if _, err := l.state.KVGet(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) write(key []byte, value *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.KVPut(key, value)
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0 && fits256(amount)
}

func fits256(v *big.Int) bool {
	_, overflow := uint256.FromBig(v)
	return !overflow
}
