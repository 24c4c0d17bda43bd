package errors

import stderrors "errors"

var (
	ErrInvalidAmount             = stderrors.New("stake: amount must be positive and fit in 256 bits")
	ErrInsufficientBalance       = stderrors.New("stake: insufficient staked balance")
	ErrInsufficientTreasuryFunds = stderrors.New("stake: insufficient treasury funds")
	ErrInvalidAuthorization      = stderrors.New("stake: invalid authorization")
	ErrUnknownAccount            = stderrors.New("stake: unknown account")
	ErrNotAuthorized             = stderrors.New("stake: caller is not the administrator")
	ErrInvalidIdentity           = stderrors.New("stake: identity must not be the zero address")
)
