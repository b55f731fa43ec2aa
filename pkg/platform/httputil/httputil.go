// Package httputil centralizes JSON encoding and domain error translation
// for the HTTP layer, so every handler emits the same envelopes.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/requestcontext"
)

// ErrorResponse is the wire shape of every error the gateway returns.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the error envelope. Wire codes
// come from the error's tag when set, otherwise from the code-level default.
// Wrapped causes never reach the response body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := statusOf(code)
	wireCode := dErrors.TagOf(err)
	if wireCode == "" {
		wireCode = defaultWireCode(code)
	}
	WriteJSON(w, status, ErrorResponse{
		Success:   false,
		ErrorCode: wireCode,
		Error:     http.StatusText(status),
		Message:   dErrors.SafeMessage(err),
		Path:      r.URL.Path,
		Timestamp: requestcontext.Now(r.Context()).UTC().Format(time.RFC3339),
		RequestID: requestcontext.RequestID(r.Context()),
	})
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable, dErrors.CodeMaintenance:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func defaultWireCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeInvalidInput:
		return "VALIDATION_ERROR"
	case dErrors.CodeUnauthorized:
		return "INVALID_TOKEN"
	case dErrors.CodeForbidden:
		return "FORBIDDEN"
	case dErrors.CodeNotFound:
		return "NOT_FOUND"
	case dErrors.CodeConflict:
		return "CONFLICT"
	case dErrors.CodeUnavailable:
		return "SERVICE_UNAVAILABLE"
	case dErrors.CodeMaintenance:
		return "MAINTENANCE_MODE"
	default:
		return "INTERNAL_ERROR"
	}
}

const maxBodyBytes = 1 << 20

// Decode reads a JSON request body into T, rejecting oversized or malformed
// payloads with an invalid-input error.
func Decode[T any](r *http.Request) (T, error) {
	var payload T
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return payload, dErrors.New(dErrors.CodeInvalidInput, "request body is required")
		}
		return payload, dErrors.New(dErrors.CodeInvalidInput, "request body is not valid JSON")
	}
	return payload, nil
}
