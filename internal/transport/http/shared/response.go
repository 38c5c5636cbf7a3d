// Package shared holds the response helpers every handler uses, so the wire
// shape of errors and payloads stays identical across domains.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "caseflow/pkg/domain-errors"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error to its HTTP status and writes the standard
// error body. Unrecognized errors become 500 with a generic message so
// internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{
			Error:   string(dErrors.CodeInternal),
			Message: "internal error",
		})
		return
	}
	WriteJSON(w, statusFor(de.Code), errorBody{
		Error:   string(de.Code),
		Message: de.Message,
		Details: de.Details,
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidTransition, dErrors.CodeNotTrialReady:
		return http.StatusConflict
	case dErrors.CodeChainIntegrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
