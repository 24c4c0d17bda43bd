package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/core/types"
)

const (
	// TypeTransfer is emitted for every asset balance movement.
	TypeTransfer = "bank.transfer"
	TypeApproval = "bank.approval"
	TypeMint     = "bank.mint"

	TypeOwnershipTransferred = "access.ownershipTransferred"
)

type Transfer struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"asset":  formatAddress(e.Asset),
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type Approval struct {
	Asset   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"asset":   formatAddress(e.Asset),
		"owner":   formatAddress(e.Owner),
		"spender": formatAddress(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}

type Mint struct {
	Asset  common.Address
	To     common.Address
	Amount *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{Type: TypeMint, Attributes: map[string]string{
		"asset":  formatAddress(e.Asset),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type OwnershipTransferred struct {
	Previous common.Address
	Next     common.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

func (e OwnershipTransferred) Event() *types.Event {
	attrs := map[string]string{"next": formatAddress(e.Next)}
	if e.Previous != (common.Address{}) {
		attrs["previous"] = formatAddress(e.Previous)
	}
	return &types.Event{Type: TypeOwnershipTransferred, Attributes: attrs}
}
