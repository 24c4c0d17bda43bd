package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvariantViolation wraps every failure reported by CheckInvariants.
var ErrInvariantViolation = errors.New("staking: invariant violated")

// CheckInvariants verifies the conservation rules of the ledger:
//   - the staked total equals the sum of every account's stake;
//   - no treasury pool is negative;
//   - custody holds at least the staked total plus the staking asset's pool.
func (e *Engine) CheckInvariants(ctx context.Context) error {
	return e.view(ctx, func() error {
		accounts, err := e.ledger.Accounts()
		if err != nil {
			return err
		}
		sum := new(big.Int)
		for _, addr := range accounts {
			acc, err := e.ledger.load(addr)
			if err != nil {
				return err
			}
			if acc.Staked.Sign() < 0 {
				return fmt.Errorf("%w: account %s has negative stake", ErrInvariantViolation, addr.Hex())
			}
			sum.Add(sum, acc.Staked)
		}
		total, err := e.ledger.Total()
		if err != nil {
			return err
		}
		if sum.Cmp(total) != 0 {
			return fmt.Errorf("%w: total %s != sum of accounts %s", ErrInvariantViolation, total, sum)
		}

		assets, err := e.treasury.Assets()
		if err != nil {
			return err
		}
		seen := make(map[common.Address]struct{}, len(assets))
		for _, asset := range assets {
			seen[asset] = struct{}{}
			pool, err := e.treasury.Balance(asset)
			if err != nil {
				return err
			}
			if pool.Sign() < 0 {
				return fmt.Errorf("%w: treasury pool for %s is negative", ErrInvariantViolation, asset.Hex())
			}
		}

		pool, err := e.treasury.Balance(e.config.StakingAsset)
		if err != nil {
			return err
		}
		if _, ok := seen[e.config.StakingAsset]; !ok && pool.Sign() != 0 {
			return fmt.Errorf("%w: staking asset pool missing from index", ErrInvariantViolation)
		}
		held, err := e.custody.bank.BalanceOf(e.config.StakingAsset, e.custody.address)
		if err != nil {
			return err
		}
		owed := new(big.Int).Add(total, pool)
		if held.Cmp(owed) < 0 {
			return fmt.Errorf("%w: custody holds %s, owes %s", ErrInvariantViolation, held, owed)
		}
		return nil
	})
}
