package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"zusd/native/vault"
)

type errorResponse struct {
	Error        string `json:"error"`
	HealthFactor string `json:"healthFactor,omitempty"`
}

// writeEngineError maps engine failures onto HTTP status codes. Risk
// rejections carry the computed health factor so clients can act on it.
func writeEngineError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}

	var broken *vault.BrokenHealthFactorError
	var healthy *vault.HealthFactorOkError
	var notImproved *vault.HealthFactorNotImprovedError
	switch {
	case errors.As(err, &broken):
		resp.HealthFactor = broken.HealthFactor.Dec()
	case errors.As(err, &healthy):
		resp.HealthFactor = healthy.HealthFactor.Dec()
	case errors.As(err, &notImproved):
		resp.HealthFactor = notImproved.HealthFactor.Dec()
	}

	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	var broken *vault.BrokenHealthFactorError
	var healthy *vault.HealthFactorOkError
	var notImproved *vault.HealthFactorNotImprovedError
	switch {
	case errors.Is(err, vault.ErrNeedsMoreThanZero),
		errors.Is(err, vault.ErrNotAllowedToken),
		errors.Is(err, vault.ErrLengthMismatch):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInsufficientAllowance),
		errors.Is(err, vault.ErrInsufficientCollateral),
		errors.Is(err, vault.ErrInsufficientDebtMinted),
		errors.Is(err, vault.ErrTransferFailed),
		errors.Is(err, vault.ErrMintingFailed),
		errors.Is(err, vault.ErrNotEnoughCollateralForLiquidation):
		return http.StatusConflict
	case errors.As(err, &broken), errors.As(err, &healthy), errors.As(err, &notImproved):
		return http.StatusConflict
	case errors.Is(err, vault.ErrInvalidPrice), errors.Is(err, vault.ErrStalePrice):
		return http.StatusServiceUnavailable
	case errors.Is(err, vault.ErrReentrancyBlocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
