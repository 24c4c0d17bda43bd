package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	ledgerstate "stakeledger/core/state"
	"stakeledger/core/types"
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Ledger tracks per-account stake and the running total. Credit and Debit
// are its only mutators and always update both figures together.
type Ledger struct {
	state ledgerState
}

func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

// Credit adds amount to account's stake and the total. now becomes the
// account's last update and must be non-zero.
func (l *Ledger) Credit(account common.Address, amount *big.Int, now uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	acc, err := l.load(account)
	if err != nil {
		return err
	}
	total, err := l.Total()
	if err != nil {
		return err
	}
	acc.Staked.Add(acc.Staked, amount)
	total.Add(total, amount)
	if !fits256(acc.Staked) || !fits256(total) {
		return stakeerrors.ErrInvalidAmount
	}
	if acc.LastUpdate == 0 {
		if err := l.state.KVAppend(ledgerstate.StakingAccountIndexKey(), account.Bytes()); err != nil {
			return fmt.Errorf("staking: index account: %w", err)
		}
	}
	acc.LastUpdate = now
	return l.store(account, acc, total)
}

// Debit removes amount from account's stake and the total.
func (l *Ledger) Debit(account common.Address, amount *big.Int, now uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	acc, err := l.load(account)
	if err != nil {
		return err
	}
	if acc.Staked.Cmp(amount) < 0 {
		return stakeerrors.ErrInsufficientBalance
	}
	total, err := l.Total()
	if err != nil {
		return err
	}
	if total.Cmp(amount) < 0 {
		return fmt.Errorf("staking: total %s below account stake %s", total, acc.Staked)
	}
	acc.Staked.Sub(acc.Staked, amount)
	total.Sub(total, amount)
	acc.LastUpdate = now
	return l.store(account, acc, total)
}

// Read returns a copy of account's record, or ErrUnknownAccount when the
// account never staked.
func (l *Ledger) Read(account common.Address) (*types.Account, error) {
	acc, err := l.load(account)
	if err != nil {
		return nil, err
	}
	if !acc.Exists() {
		return nil, stakeerrors.ErrUnknownAccount
	}
	return acc, nil
}

// Total returns the sum of every account's stake.
func (l *Ledger) Total() (*big.Int, error) {
	total := new(big.Int)
	if _, err := l.state.KVGet(ledgerstate.StakingTotalKey(), total); err != nil {
		return nil, fmt.Errorf("staking: read total: %w", err)
	}
	return total, nil
}

// Accounts lists every account that has ever staked, in first-stake order.
func (l *Ledger) Accounts() ([]common.Address, error) {
	var raw [][]byte
	if err := l.state.KVGetList(ledgerstate.StakingAccountIndexKey(), &raw); err != nil {
		return nil, fmt.Errorf("staking: read account index: %w", err)
	}
	out := make([]common.Address, len(raw))
	for i, b := range raw {
		out[i] = common.BytesToAddress(b)
	}
	return out, nil
}

func (l *Ledger) load(account common.Address) (*types.Account, error) {
	acc := &types.Account{Staked: new(big.Int)}
	if _, err := l.state.KVGet(ledgerstate.StakingAccountKey(account), acc); err != nil {
		return nil, fmt.Errorf("staking: read account: %w", err)
	}
	if acc.Staked == nil {
		acc.Staked = new(big.Int)
	}
	return acc, nil
}

func (l *Ledger) store(account common.Address, acc *types.Account, total *big.Int) error {
	if err := l.state.KVPut(ledgerstate.StakingAccountKey(account), acc); err != nil {
		return fmt.Errorf("staking: write account: %w", err)
	}
	if err := l.state.KVPut(ledgerstate.StakingTotalKey(), total); err != nil {
		return fmt.Errorf("staking: write total: %w", err)
	}
	return nil
}
