package types

import "math/big"

// Account is the ledger record of a single staker. A zero LastUpdate means the
// account has never staked; records are never deleted once created.
type Account struct {
	Staked     *big.Int `json:"staked"`
	LastUpdate uint64   `json:"lastUpdate"`
}

// Exists reports whether the account has ever been written.
func (a *Account) Exists() bool {
	return a != nil && a.LastUpdate != 0
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := &Account{LastUpdate: a.LastUpdate, Staked: new(big.Int)}
	if a.Staked != nil {
		out.Staked.Set(a.Staked)
	}
	return out
}

// Liquidity summarises the funds held in custody against the ledger's
// obligations.
type Liquidity struct {
	Custody  *big.Int `json:"custody"`
	Treasury *big.Int `json:"treasury"`
	Staked   *big.Int `json:"staked"`
}
