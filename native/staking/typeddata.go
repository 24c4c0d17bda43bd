package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	stakeerrors "stakeledger/core/errors"
)

var (
	domainTypeHash  = ethcrypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	unstakeTypeHash = ethcrypto.Keccak256Hash([]byte("Unstake(address account,uint256 amount)"))
	rewardTypeHash  = ethcrypto.Keccak256Hash([]byte("Reward(address account,uint256 amount)"))
	penaltyTypeHash = ethcrypto.Keccak256Hash([]byte("Penalty(address account,uint256 amount)"))
)

// TypeHash returns the struct type hash for kind.
func TypeHash(kind Kind) (common.Hash, bool) {
	switch kind {
	case KindUnstake:
		return unstakeTypeHash, true
	case KindReward:
		return rewardTypeHash, true
	case KindPenalty:
		return penaltyTypeHash, true
	default:
		return common.Hash{}, false
	}
}

// DomainSeparator hashes the domain as an EIP-712 struct.
func DomainSeparator(d Domain) common.Hash {
	chainID := uint256.MustFromBig(cloneBigInt(d.ChainID)).Bytes32()
	return ethcrypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		ethcrypto.Keccak256([]byte(d.Name)),
		ethcrypto.Keccak256([]byte(d.Version)),
		chainID[:],
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
}

// StructHash hashes (account, amount) under the type of kind.
func StructHash(kind Kind, account common.Address, amount *big.Int) (common.Hash, error) {
	typeHash, ok := TypeHash(kind)
	if !ok {
		return common.Hash{}, stakeerrors.ErrInvalidAuthorization
	}
	if err := validateAmount(amount); err != nil {
		return common.Hash{}, err
	}
	word := uint256.MustFromBig(amount).Bytes32()
	return ethcrypto.Keccak256Hash(
		typeHash.Bytes(),
		common.LeftPadBytes(account.Bytes(), 32),
		word[:],
	), nil
}

// TypedDigest returns keccak256(0x19 0x01 || separator || structHash), the
// value an authority signs.
func TypedDigest(separator common.Hash, kind Kind, account common.Address, amount *big.Int) (common.Hash, error) {
	structHash, err := StructHash(kind, account, amount)
	if err != nil {
		return common.Hash{}, err
	}
	return ethcrypto.Keccak256Hash([]byte{0x19, 0x01}, separator.Bytes(), structHash.Bytes()), nil
}
