package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr common.Address) string {
	return crypto.FromCommon(addr).String()
}
