package rpc

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"stakeledger/native/staking"
)

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.mutate(w, r, staking.OpStake, func(ctx context.Context, caller common.Address) error {
		return s.engine.Stake(ctx, caller, amount)
	})
}

type signedCall func(ctx context.Context, caller, subject common.Address, amount *big.Int, sig []byte) error

// signedParams decodes the body shared by unstake, reward and slash. An
// omitted account defaults to the caller.
func signedParams(r *http.Request) (subject *common.Address, amount *big.Int, sig []byte, err error) {
	var req signedRequest
	if err = decodeBody(r, &req); err != nil {
		return nil, nil, nil, err
	}
	if amount, err = parseAmount(req.Amount); err != nil {
		return nil, nil, nil, err
	}
	if sig, err = parseSignature(req.Signature); err != nil {
		return nil, nil, nil, err
	}
	if req.Account != "" {
		addr, perr := parseAddress("account", req.Account)
		if perr != nil {
			return nil, nil, nil, perr
		}
		subject = &addr
	}
	return subject, amount, sig, nil
}

func (s *Server) handleSigned(op string, call signedCall) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, amount, sig, err := signedParams(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		s.mutate(w, r, op, func(ctx context.Context, caller common.Address) error {
			target := caller
			if subject != nil {
				target = *subject
			}
			return call(ctx, caller, target, amount, sig)
		})
	}
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.handleSigned(staking.OpUnstake, s.engine.Unstake)(w, r)
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	s.handleSigned(staking.OpReward, s.engine.Reward)(w, r)
}

func (s *Server) handleSlash(w http.ResponseWriter, r *http.Request) {
	s.handleSigned(staking.OpSlash, s.engine.Slash)(w, r)
}

func (s *Server) handleRotateAuthority(w http.ResponseWriter, r *http.Request) {
	var req authorityRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	next, err := parseAddress("authority", req.Authority)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.mutate(w, r, staking.OpRotateAuthority, func(ctx context.Context, caller common.Address) error {
		return s.engine.RotateAuthority(ctx, caller, next)
	})
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	next, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.mutate(w, r, staking.OpTransferOwnership, func(ctx context.Context, caller common.Address) error {
		return s.engine.TransferOwnership(ctx, caller, next)
	})
}
