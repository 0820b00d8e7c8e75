// Package handlers exposes the channel surfaces over HTTP: the JSON API for
// branch, online and UPI traffic, and the hex-framed ISO-8583 endpoint for
// ATM and POS acquirers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/bankerr"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpStatus maps taxonomy codes onto transport status. Unknown errors fall
// through to 500 with a generic body; internal detail never leaks.
func httpStatus(code bankerr.Code) int {
	switch code {
	case bankerr.CodeCardUnknown, bankerr.CodeAccountUnknown, bankerr.CodeNotFound:
		return http.StatusNotFound
	case bankerr.CodePinInvalid:
		return http.StatusUnauthorized
	case bankerr.CodeCardBlocked, bankerr.CodeCardExpired, bankerr.CodeAccountInactive:
		return http.StatusForbidden
	case bankerr.CodeAmountInvalid, bankerr.CodeMtiInvalid, bankerr.CodeBitmapInconsistent,
		bankerr.CodeFieldLengthInvalid, bankerr.CodeFieldValueInvalid,
		bankerr.CodeMandatoryFieldMissing, bankerr.CodeMacInvalid:
		return http.StatusBadRequest
	case bankerr.CodeInsufficientFunds, bankerr.CodeDailyLimitExceeded,
		bankerr.CodePerTransactionLimitExceeded, bankerr.CodeUnknownProcessingCode,
		bankerr.CodeConstraintViolated:
		return http.StatusUnprocessableEntity
	case bankerr.CodeTimeout:
		return http.StatusGatewayTimeout
	case bankerr.CodeSystemUnavailable, bankerr.CodeStoreUnavailable, bankerr.CodeDeadlockDetected:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError renders a taxonomy error; anything outside the taxonomy becomes
// a generic 500.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	code := bankerr.CodeOf(err)
	if code == "" {
		log.Error().Err(err).Msg("unclassified error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
		return
	}
	var e *bankerr.Error
	message := "request failed"
	if errors.As(err, &e) {
		message = e.Message
	}
	writeJSON(w, httpStatus(code), errorBody{Code: string(code), Message: message})
}

// decodeJSON decodes a single JSON object with a body cap, rejecting unknown
// fields and trailing documents.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return bankerr.Wrap(bankerr.CodeFieldValueInvalid, "invalid request body", err)
	}
	if dec.More() {
		return bankerr.New(bankerr.CodeFieldValueInvalid, "request body must hold a single JSON object")
	}
	return nil
}
