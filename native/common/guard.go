package common

import (
	"context"
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/core/events"
	"stakeledger/core/txn"
)

// RoleOwner is the state role holding the administrator identity.
const RoleOwner = "owner"

var errNilState = errors.New("ownership: state not configured")

// OwnerView answers whether an identity is the administrator.
type OwnerView interface {
	IsOwner(addr ethcommon.Address) bool
}

// RequireOwner returns ErrNotAuthorized unless caller is the administrator.
func RequireOwner(view OwnerView, caller ethcommon.Address) error {
	if view == nil || !view.IsOwner(caller) {
		return stakeerrors.ErrNotAuthorized
	}
	return nil
}

type roleState interface {
	SetRoleHolder(role string, addr ethcommon.Address) error
	RoleHolder(role string) (ethcommon.Address, bool, error)
	HasRole(role string, addr ethcommon.Address) bool
}

// Ownership keeps the administrator in ledger state.
type Ownership struct {
	state roleState
}

func NewOwnership(state roleState) *Ownership {
	return &Ownership{state: state}
}

// Initialize assigns the first owner. It is a no-op once an owner exists.
func (o *Ownership) Initialize(ctx context.Context, owner ethcommon.Address) error {
	if o == nil || o.state == nil {
		return errNilState
	}
	if owner == (ethcommon.Address{}) {
		return stakeerrors.ErrInvalidIdentity
	}
	if _, ok, err := o.state.RoleHolder(RoleOwner); err != nil || ok {
		return err
	}
	if err := o.state.SetRoleHolder(RoleOwner, owner); err != nil {
		return err
	}
	txn.Emit(ctx, events.OwnershipTransferred{Next: owner})
	return nil
}

func (o *Ownership) IsOwner(addr ethcommon.Address) bool {
	if o == nil || o.state == nil {
		return false
	}
	return o.state.HasRole(RoleOwner, addr)
}

// Owner returns the current administrator, or the zero address when none has
// been assigned.
func (o *Ownership) Owner() (ethcommon.Address, error) {
	if o == nil || o.state == nil {
		return ethcommon.Address{}, errNilState
	}
	owner, _, err := o.state.RoleHolder(RoleOwner)
	return owner, err
}

// TransferOwnership hands the administrator role to next.
func (o *Ownership) TransferOwnership(ctx context.Context, caller, next ethcommon.Address) error {
	if err := RequireOwner(o, caller); err != nil {
		return err
	}
	if next == (ethcommon.Address{}) {
		return stakeerrors.ErrInvalidIdentity
	}
	if err := o.state.SetRoleHolder(RoleOwner, next); err != nil {
		return err
	}
	txn.Emit(ctx, events.OwnershipTransferred{Previous: caller, Next: next})
	return nil
}
