package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	ledgerstate "stakeledger/core/state"
)

// Treasury holds one pool per asset. Pools never go negative.
type Treasury struct {
	state ledgerState
}

func NewTreasury(state ledgerState) *Treasury {
	return &Treasury{state: state}
}

func (t *Treasury) Deposit(asset common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	pool, err := t.Balance(asset)
	if err != nil {
		return err
	}
	pool.Add(pool, amount)
	if !fits256(pool) {
		return stakeerrors.ErrInvalidAmount
	}
	if err := t.state.KVAppend(ledgerstate.StakingTreasuryIndexKey(), asset.Bytes()); err != nil {
		return fmt.Errorf("staking: index treasury asset: %w", err)
	}
	return t.write(asset, pool)
}

func (t *Treasury) Withdraw(asset common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	pool, err := t.Balance(asset)
	if err != nil {
		return err
	}
	if pool.Cmp(amount) < 0 {
		return stakeerrors.ErrInsufficientTreasuryFunds
	}
	pool.Sub(pool, amount)
	return t.write(asset, pool)
}

// Balance returns the pool for asset; assets never deposited read as zero.
func (t *Treasury) Balance(asset common.Address) (*big.Int, error) {
	pool := new(big.Int)
	if _, err := t.state.KVGet(ledgerstate.StakingTreasuryKey(asset), pool); err != nil {
		return nil, fmt.Errorf("staking: read treasury: %w", err)
	}
	return pool, nil
}

// Assets lists every asset that has received a deposit.
func (t *Treasury) Assets() ([]common.Address, error) {
	var raw [][]byte
	if err := t.state.KVGetList(ledgerstate.StakingTreasuryIndexKey(), &raw); err != nil {
		return nil, fmt.Errorf("staking: read treasury index: %w", err)
	}
	out := make([]common.Address, len(raw))
	for i, b := range raw {
		out[i] = common.BytesToAddress(b)
	}
	return out, nil
}

func (t *Treasury) write(asset common.Address, pool *big.Int) error {
	if err := t.state.KVPut(ledgerstate.StakingTreasuryKey(asset), pool); err != nil {
		return fmt.Errorf("staking: write treasury: %w", err)
	}
	return nil
}
