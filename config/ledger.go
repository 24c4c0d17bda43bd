package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/crypto"
	"stakeledger/native/multisig"
	"stakeledger/native/staking"
)

// Ledger is the validated, typed form of Config.
type Ledger struct {
	Staking staking.Config
	Owner   common.Address
	// Wallet is set when the authority is a multisig contract identity.
	Wallet  *multisig.Wallet
	Genesis []Grant
}

type Grant struct {
	Asset          common.Address
	Holder         common.Address
	Amount         *big.Int
	ApproveCustody bool
}

// Resolve parses and validates every field.
func (c *Config) Resolve() (*Ledger, error) {
	if c == nil {
		return nil, errors.New("config: nil")
	}
	chainID, ok := new(big.Int).SetString(strings.TrimSpace(c.Domain.ChainID), 10)
	if !ok {
		return nil, fmt.Errorf("domain.ChainID: invalid integer %q", c.Domain.ChainID)
	}
	custody, err := requireAddress("domain.Custody", c.Domain.Custody)
	if err != nil {
		return nil, err
	}
	asset, err := requireAddress("StakingAsset", c.StakingAsset)
	if err != nil {
		return nil, err
	}
	owner, err := requireAddress("Owner", c.Owner)
	if err != nil {
		return nil, err
	}

	out := &Ledger{Owner: owner}
	var authority common.Address
	if c.Multisig != nil {
		wallet, err := c.Multisig.wallet()
		if err != nil {
			return nil, err
		}
		out.Wallet = wallet
		authority = wallet.Address()
	}
	switch {
	case strings.TrimSpace(c.Authority) != "":
		explicit, err := requireAddress("Authority", c.Authority)
		if err != nil {
			return nil, err
		}
		if out.Wallet != nil && explicit != authority {
			return nil, fmt.Errorf("Authority %s does not match the multisig identity %s", explicit.Hex(), authority.Hex())
		}
		authority = explicit
	case out.Wallet == nil && c.AuthorityKeystorePath != "":
		authority, err = crypto.KeystoreAddress(c.AuthorityKeystorePath)
		if err != nil {
			return nil, fmt.Errorf("AuthorityKeystorePath: %w", err)
		}
	case out.Wallet == nil:
		return nil, errors.New("one of Authority, multisig or AuthorityKeystorePath is required")
	}

	out.Staking = staking.Config{
		Domain: staking.Domain{
			Name:              c.Domain.Name,
			Version:           c.Domain.Version,
			ChainID:           chainID,
			VerifyingContract: custody,
		},
		StakingAsset: asset,
		Authority:    authority,
	}
	if err := out.Staking.Validate(); err != nil {
		return nil, err
	}

	for i, alloc := range c.Genesis {
		grant, err := alloc.grant()
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		out.Genesis = append(out.Genesis, grant)
	}
	return out, nil
}

// Validate reports whether the configuration resolves.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

func (m *MultisigConfig) wallet() (*multisig.Wallet, error) {
	owners := make([]common.Address, 0, len(m.Owners))
	for i, raw := range m.Owners {
		addr, err := requireAddress(fmt.Sprintf("multisig.Owners[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		owners = append(owners, addr)
	}
	wallet, err := multisig.NewWallet(owners, m.Threshold)
	if err != nil {
		return nil, fmt.Errorf("multisig: %w", err)
	}
	return wallet, nil
}

func (a Allocation) grant() (Grant, error) {
	asset, err := requireAddress("Asset", a.Asset)
	if err != nil {
		return Grant{}, err
	}
	holder, err := requireAddress("Holder", a.Holder)
	if err != nil {
		return Grant{}, err
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(a.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return Grant{}, fmt.Errorf("Amount: must be a positive integer, got %q", a.Amount)
	}
	return Grant{Asset: asset, Holder: holder, Amount: amount, ApproveCustody: a.ApproveCustody}, nil
}

func requireAddress(field, raw string) (common.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s: zero address", field)
	}
	return addr, nil
}
