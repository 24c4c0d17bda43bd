package state

import (
	"github.com/ethereum/go-ethereum/common"
)

var (
	rolePrefix = []byte("role/")

	stakingAccountPrefix  = []byte("staking/account/")
	stakingAccountIndex   = []byte("staking/accounts")
	stakingTotalKey       = []byte("staking/total")
	stakingTreasuryPrefix = []byte("staking/treasury/")
	stakingTreasuryIndex  = []byte("staking/treasury-assets")
	stakingAuthorityKey   = []byte("staking/authority")

	bankBalancePrefix   = []byte("bank/balance/")
	bankAllowancePrefix = []byte("bank/allowance/")
	bankSupplyPrefix    = []byte("bank/supply/")
)

func join(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}

// StakingAccountKey returns the key of the staking record for addr.
func StakingAccountKey(addr common.Address) []byte {
	return join(stakingAccountPrefix, addr.Bytes())
}

// StakingAccountIndexKey returns the key of the list of every account that
// has ever staked.
func StakingAccountIndexKey() []byte {
	return append([]byte(nil), stakingAccountIndex...)
}

// StakingTotalKey returns the key of the global staked total.
func StakingTotalKey() []byte {
	return append([]byte(nil), stakingTotalKey...)
}

// StakingTreasuryKey returns the key of the treasury pool for asset.
func StakingTreasuryKey(asset common.Address) []byte {
	return join(stakingTreasuryPrefix, asset.Bytes())
}

// StakingTreasuryIndexKey returns the key of the list of assets that have
// ever held a treasury pool.
func StakingTreasuryIndexKey() []byte {
	return append([]byte(nil), stakingTreasuryIndex...)
}

// StakingAuthorityKey returns the key of the co-signing authority identity.
func StakingAuthorityKey() []byte {
	return append([]byte(nil), stakingAuthorityKey...)
}

// BankBalanceKey returns the key of holder's balance of asset.
func BankBalanceKey(asset, holder common.Address) []byte {
	return join(bankBalancePrefix, asset.Bytes(), holder.Bytes())
}

// BankAllowanceKey returns the key of the amount spender may move out of
// owner's balance of asset.
func BankAllowanceKey(asset, owner, spender common.Address) []byte {
	return join(bankAllowancePrefix, asset.Bytes(), owner.Bytes(), spender.Bytes())
}

// BankSupplyKey returns the key of the minted supply of asset.
func BankSupplyKey(asset common.Address) []byte {
	return join(bankSupplyPrefix, asset.Bytes())
}
