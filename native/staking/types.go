package staking

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	stakeerrors "stakeledger/core/errors"
)

// Kind identifies the action an authority signature covers.
type Kind uint8

const (
	KindUnstake Kind = iota + 1
	KindReward
	KindPenalty
)

func (k Kind) String() string {
	switch k {
	case KindUnstake:
		return "unstake"
	case KindReward:
		return "reward"
	case KindPenalty:
		return "penalty"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the three signable kinds.
func (k Kind) Valid() bool {
	return k >= KindUnstake && k <= KindPenalty
}

// ParseKind accepts the lower-case kind names, plus "slash" for penalties.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "unstake":
		return KindUnstake, nil
	case "reward":
		return KindReward, nil
	case "penalty", "slash":
		return KindPenalty, nil
	default:
		return 0, fmt.Errorf("unknown authorization kind %q", raw)
	}
}

// Domain binds signatures to one deployment of the ledger.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Validate checks that the domain can be hashed.
func (d Domain) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("domain name required")
	}
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("domain version required")
	}
	if d.ChainID == nil || d.ChainID.Sign() < 0 || !fits256(d.ChainID) {
		return fmt.Errorf("domain chain id must be a non-negative 256-bit integer")
	}
	if d.VerifyingContract == (common.Address{}) {
		return fmt.Errorf("domain verifying contract required")
	}
	return nil
}

// Config carries the immutable deployment parameters of an engine. The
// custody address is the domain's verifying contract.
type Config struct {
	Domain       Domain
	StakingAsset common.Address
	// Authority is stored on first bootstrap only; later changes go
	// through RotateAuthority.
	Authority common.Address
}

func (c Config) Validate() error {
	if err := c.Domain.Validate(); err != nil {
		return err
	}
	if c.StakingAsset == (common.Address{}) {
		return fmt.Errorf("staking asset required")
	}
	return nil
}

// Custody returns the address holding staked and treasury funds.
func (c Config) Custody() common.Address { return c.Domain.VerifyingContract }

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 || !fits256(amount) {
		return stakeerrors.ErrInvalidAmount
	}
	return nil
}

func fits256(v *big.Int) bool {
	_, overflow := uint256.FromBig(v)
	return !overflow
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
