package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"stakeledger/core/types"
	"stakeledger/crypto"
)

const maxRequestBytes = 1 << 16

type amountRequest struct {
	Amount string `json:"amount"`
}

type signedRequest struct {
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

type treasuryRequest struct {
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
}

type authorityRequest struct {
	Authority string `json:"authority"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

type approveRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// CommitResponse acknowledges a committed mutation.
type CommitResponse struct {
	Height uint64 `json:"height"`
	Root   string `json:"root"`
}

type AccountResponse struct {
	Address    string `json:"address"`
	Bech32     string `json:"bech32"`
	Staked     string `json:"staked"`
	LastUpdate uint64 `json:"lastUpdate"`
}

type LiquidityResponse struct {
	Asset    string `json:"asset"`
	Custody  string `json:"custody"`
	Treasury string `json:"treasury"`
	Staked   string `json:"staked"`
}

type TreasuryResponse struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type DomainResponse struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
	Separator         string `json:"separator"`
	StakingAsset      string `json:"stakingAsset"`
	Authority         string `json:"authority"`
	Owner             string `json:"owner"`
	Height            uint64 `json:"height"`
	Root              string `json:"root"`
}

type DigestResponse struct {
	Kind    string `json:"kind"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Digest  string `json:"digest"`
}

type AuthorizationResponse struct {
	Digest string `json:"digest"`
	Uses   int64  `json:"uses"`
}

type BalanceResponse struct {
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

// parseAmount accepts base-10 integers. Sign and range are left to the
// ledger so the API reports the same error the engine would.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// parseSignature decodes a hex signature. The 0x prefix is optional and an
// empty string yields no signature.
func parseSignature(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		trimmed = "0x" + trimmed
	}
	sig, err := hexutil.Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return sig, nil
}

func parseHash(raw string) (common.Hash, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return common.Hash{}, err
	}
	if len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("digest must be %d bytes", common.HashLength)
	}
	return common.BytesToHash(decoded), nil
}

func accountResponse(addr common.Address, acc *types.Account) AccountResponse {
	return AccountResponse{
		Address:    addr.Hex(),
		Bech32:     crypto.FromCommon(addr).String(),
		Staked:     acc.Staked.String(),
		LastUpdate: acc.LastUpdate,
	}
}
