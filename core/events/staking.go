package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/core/types"
)

const (
	TypeStaked             = "stake.staked"
	TypeUnstaked           = "stake.unstaked"
	TypeRewarded           = "stake.rewarded"
	TypeSlashed            = "stake.slashed"
	TypeTreasuryDeposit    = "treasury.deposit"
	TypeTreasuryWithdrawal = "treasury.withdrawal"
	TypeAuthorityRotated   = "stake.authorityRotated"

	// ViaAdministrator marks operations honoured on the administrator's
	// standing rather than a signature.
	ViaAdministrator = "administrator"
	// ViaSigned marks operations honoured on a verified authority signature.
	ViaSigned = "signed"
)

// Staked is emitted after an account deposits into custody.
type Staked struct {
	Account common.Address
	Amount  *big.Int
}

func (Staked) EventType() string { return TypeStaked }

func (e Staked) Event() *types.Event {
	return &types.Event{Type: TypeStaked, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
	}}
}

// Unstaked is emitted after stake leaves custody for its owner. Digest is the
// typed-data hash of the honoured authorization and is zero on the
// administrator path.
type Unstaked struct {
	Account common.Address
	Amount  *big.Int
	Via     string
	Digest  common.Hash
}

func (Unstaked) EventType() string { return TypeUnstaked }

func (e Unstaked) Event() *types.Event {
	attrs := map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
		"via":     e.Via,
	}
	if e.Digest != (common.Hash{}) {
		attrs["digest"] = e.Digest.Hex()
	}
	return &types.Event{Type: TypeUnstaked, Attributes: attrs}
}

// Rewarded is emitted when the treasury pays a reward to an account.
type Rewarded struct {
	Account common.Address
	Amount  *big.Int
	Digest  common.Hash
}

func (Rewarded) EventType() string { return TypeRewarded }

func (e Rewarded) Event() *types.Event {
	return &types.Event{Type: TypeRewarded, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Amount),
		"via":     ViaSigned,
		"digest":  e.Digest.Hex(),
	}}
}

// Slashed is emitted when a penalty moves stake into the treasury.
type Slashed struct {
	Account common.Address
	Penalty *big.Int
	Digest  common.Hash
}

func (Slashed) EventType() string { return TypeSlashed }

func (e Slashed) Event() *types.Event {
	return &types.Event{Type: TypeSlashed, Attributes: map[string]string{
		"account": formatAddress(e.Account),
		"amount":  formatAmount(e.Penalty),
		"via":     ViaSigned,
		"digest":  e.Digest.Hex(),
	}}
}

type TreasuryDeposit struct {
	Asset  common.Address
	Amount *big.Int
	From   common.Address
}

func (TreasuryDeposit) EventType() string { return TypeTreasuryDeposit }

func (e TreasuryDeposit) Event() *types.Event {
	return &types.Event{Type: TypeTreasuryDeposit, Attributes: map[string]string{
		"asset":   formatAddress(e.Asset),
		"amount":  formatAmount(e.Amount),
		"account": formatAddress(e.From),
	}}
}

type TreasuryWithdrawal struct {
	Asset     common.Address
	Amount    *big.Int
	Recipient common.Address
}

func (TreasuryWithdrawal) EventType() string { return TypeTreasuryWithdrawal }

func (e TreasuryWithdrawal) Event() *types.Event {
	return &types.Event{Type: TypeTreasuryWithdrawal, Attributes: map[string]string{
		"asset":   formatAddress(e.Asset),
		"amount":  formatAmount(e.Amount),
		"account": formatAddress(e.Recipient),
	}}
}

// AuthorityRotated records a change of the co-signing identity.
type AuthorityRotated struct {
	Previous common.Address
	Next     common.Address
}

func (AuthorityRotated) EventType() string { return TypeAuthorityRotated }

func (e AuthorityRotated) Event() *types.Event {
	attrs := map[string]string{"next": formatAddress(e.Next)}
	if e.Previous != (common.Address{}) {
		attrs["previous"] = formatAddress(e.Previous)
	}
	return &types.Event{Type: TypeAuthorityRotated, Attributes: attrs}
}
