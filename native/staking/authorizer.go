package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/crypto"
)

type contractResolver interface {
	Resolve(identity common.Address) crypto.ContractSigner
}

// Authorizer checks authority signatures over typed staking messages. It holds
// no mutable state and is safe for concurrent use.
type Authorizer struct {
	domain    Domain
	separator common.Hash
	contracts contractResolver
}

// NewAuthorizer precomputes the domain separator. contracts may be nil when
// the authority is always an externally owned key.
func NewAuthorizer(domain Domain, contracts contractResolver) (*Authorizer, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	return &Authorizer{domain: domain, separator: DomainSeparator(domain), contracts: contracts}, nil
}

func (a *Authorizer) Domain() Domain { return a.domain }

func (a *Authorizer) DomainSeparator() common.Hash { return a.separator }

// Digest returns the hash an authority signs for (kind, account, amount).
func (a *Authorizer) Digest(kind Kind, account common.Address, amount *big.Int) (common.Hash, error) {
	return TypedDigest(a.separator, kind, account, amount)
}

// Verify returns the digest sig was checked against when sig authorizes
// (kind, account, amount) on behalf of authority. A plain secp256k1 signature
// is tried first; otherwise the contract signer registered for the authority,
// if any, decides.
func (a *Authorizer) Verify(authority common.Address, kind Kind, account common.Address, amount *big.Int, sig []byte) (common.Hash, error) {
	digest, err := a.Digest(kind, account, amount)
	if err != nil {
		return common.Hash{}, err
	}
	if authority == (common.Address{}) || len(sig) == 0 {
		return common.Hash{}, stakeerrors.ErrInvalidAuthorization
	}
	if len(sig) == crypto.SignatureLength {
		if signer, err := crypto.RecoverSigner(digest, sig); err == nil && signer == authority {
			return digest, nil
		}
	}
	if a.contracts != nil {
		if contract := a.contracts.Resolve(authority); contract != nil && contract.IsValidSignature(digest, sig) {
			return digest, nil
		}
	}
	return common.Hash{}, stakeerrors.ErrInvalidAuthorization
}
