package rpc

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stakeledger/native/staking"
)

func treasuryParams(r *http.Request, needRecipient bool) (treasuryRequest, common.Address, common.Address, error) {
	var req treasuryRequest
	if err := decodeBody(r, &req); err != nil {
		return req, common.Address{}, common.Address{}, err
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return req, common.Address{}, common.Address{}, err
	}
	var recipient common.Address
	if needRecipient {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			return req, common.Address{}, common.Address{}, err
		}
	}
	return req, asset, recipient, nil
}

func (s *Server) handleTreasuryDeposit(w http.ResponseWriter, r *http.Request) {
	req, asset, _, err := treasuryParams(r, false)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.mutate(w, r, staking.OpAddToTreasury, func(ctx context.Context, caller common.Address) error {
		return s.engine.AddToTreasury(ctx, caller, amount, asset)
	})
}

func (s *Server) handleTreasuryWithdraw(w http.ResponseWriter, r *http.Request) {
	req, asset, recipient, err := treasuryParams(r, true)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.mutate(w, r, staking.OpRemoveFromTreasury, func(ctx context.Context, caller common.Address) error {
		return s.engine.RemoveFromTreasury(ctx, caller, amount, asset, recipient)
	})
}

func (s *Server) handleTreasuryBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	balance, err := s.engine.TreasuryBalance(r.Context(), asset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TreasuryResponse{Asset: asset.Hex(), Balance: balance.String()})
}
