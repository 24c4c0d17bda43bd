package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	stakeerrors "stakeledger/core/errors"
	"stakeledger/native/bank"
)

const (
	codeInvalidRequest      = "invalid_request"
	codeInvalidAmount       = "invalid_amount"
	codeInsufficientBalance = "insufficient_balance"
	codeInsufficientFunds   = "insufficient_treasury_funds"
	codeInvalidAuthz        = "invalid_authorization"
	codeNotAuthorized       = "not_authorized"
	codeUnknownAccount      = "unknown_account"
	codeInvalidIdentity     = "invalid_identity"
	codeTransferFailed      = "transfer_failed"
	codeUnavailable         = "unavailable"
	codeInternal            = "internal"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: APIError{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, codeInvalidRequest, message)
}

// classify maps ledger errors onto HTTP status codes and stable codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, stakeerrors.ErrInvalidAmount), errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, codeInvalidAmount
	case errors.Is(err, stakeerrors.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, codeInsufficientBalance
	case errors.Is(err, stakeerrors.ErrInsufficientTreasuryFunds):
		return http.StatusUnprocessableEntity, codeInsufficientFunds
	case errors.Is(err, stakeerrors.ErrInvalidAuthorization):
		return http.StatusForbidden, codeInvalidAuthz
	case errors.Is(err, stakeerrors.ErrNotAuthorized):
		return http.StatusForbidden, codeNotAuthorized
	case errors.Is(err, stakeerrors.ErrUnknownAccount):
		return http.StatusNotFound, codeUnknownAccount
	case errors.Is(err, stakeerrors.ErrInvalidIdentity):
		return http.StatusUnprocessableEntity, codeInvalidIdentity
	case errors.Is(err, bank.ErrInsufficientFunds), errors.Is(err, bank.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, codeTransferFailed
	case errors.Is(err, errJournalDisabled):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, code, message)
}
