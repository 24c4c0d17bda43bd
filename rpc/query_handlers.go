package rpc

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stakeledger/core/state"
	"stakeledger/native/staking"
)

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	acc, err := s.engine.Read(r.Context(), addr)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(addr, acc))
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	liq, err := s.engine.Liquidity(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LiquidityResponse{
		Asset:    s.engine.StakingAsset().Hex(),
		Custody:  liq.Custody.String(),
		Treasury: liq.Treasury.String(),
		Staked:   liq.Staked.String(),
	})
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain := s.engine.Domain()
	authority, err := s.engine.Authority(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	owner, err := s.engine.Owner(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	height, err := s.engine.Height(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	root, err := s.engine.StateRoot(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	chainID := "0"
	if domain.ChainID != nil {
		chainID = domain.ChainID.String()
	}
	writeJSON(w, http.StatusOK, DomainResponse{
		Name:              domain.Name,
		Version:           domain.Version,
		ChainID:           chainID,
		VerifyingContract: domain.VerifyingContract.Hex(),
		Separator:         s.engine.DomainSeparator().Hex(),
		StakingAsset:      s.engine.StakingAsset().Hex(),
		Authority:         authority.Hex(),
		Owner:             owner.Hex(),
		Height:            height,
		Root:              root.Hex(),
	})
}

// handleDigest returns the message the authority has to sign for
// ?kind=&account=&amount=.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := staking.ParseKind(q.Get("kind"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	account, err := parseAddress("account", q.Get("account"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(q.Get("amount"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	digest, err := s.engine.Digest(kind, account, amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DigestResponse{
		Kind:    kind.String(),
		Account: account.Hex(),
		Amount:  amount.String(),
		Digest:  digest.Hex(),
	})
}

func (s *Server) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	digest, err := parseHash(chi.URLParam(r, "digest"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if s.journal == nil {
		writeLedgerError(w, errJournalDisabled)
		return
	}
	uses, err := s.journal.Uses(r.Context(), digest)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthorizationResponse{Digest: digest.Hex(), Uses: uses})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	holder, err := parseAddress("holder", chi.URLParam(r, "holder"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	var balance string
	err = s.exec.View(r.Context(), func(_ *state.Manager) error {
		bal, err := s.bank.BalanceOf(asset, holder)
		if err != nil {
			return err
		}
		balance = bal.String()
		return nil
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Asset: asset.Hex(), Holder: holder.Hex(), Balance: balance})
}

// handleApprove lets the caller grant custody an allowance over one of its
// assets, which stake and treasury deposits draw on.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	custody := s.engine.CustodyAddress()
	s.mutate(w, r, "approve", func(ctx context.Context, caller common.Address) error {
		_, err := s.exec.Run(ctx, func(ctx context.Context) error {
			return s.bank.Approve(ctx, asset, caller, custody, amount)
		})
		return err
	})
}
