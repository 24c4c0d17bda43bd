package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/crypto"
)

// Sign produces the authority signature for (kind, account, amount) under
// domain. The result is 65 bytes with a recovery byte of 27 or 28.
func Sign(key *crypto.PrivateKey, domain Domain, kind Kind, account common.Address, amount *big.Int) ([]byte, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	digest, err := TypedDigest(DomainSeparator(domain), kind, account, amount)
	if err != nil {
		return nil, err
	}
	return crypto.SignHash(key, digest)
}
