package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/requestcontext"
)

func writeErrorFor(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req = req.WithContext(requestcontext.WithRequestID(req.Context(), "req-1"))
	rr := httptest.NewRecorder()

	WriteError(rr, req, err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr, body
}

func Test_WriteError_TagWinsOverDefaultWireCode(t *testing.T) {
	rr, body := writeErrorFor(t, dErrors.NewTagged(dErrors.CodeUnauthorized, "TOKEN_EXPIRED", "token has expired"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "TOKEN_EXPIRED", body.ErrorCode)
	assert.Equal(t, "token has expired", body.Message)
	assert.Equal(t, "/auth/refresh", body.Path)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotEmpty(t, body.Timestamp)
}

func Test_WriteError_DefaultWireCodes(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		wireCode string
	}{
		{dErrors.New(dErrors.CodeInvalidInput, "bad input"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{dErrors.New(dErrors.CodeUnauthorized, "no"), http.StatusUnauthorized, "INVALID_TOKEN"},
		{dErrors.New(dErrors.CodeUnavailable, "down"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{dErrors.New(dErrors.CodeMaintenance, "closed"), http.StatusServiceUnavailable, "MAINTENANCE_MODE"},
		{dErrors.New(dErrors.CodeInternal, "boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		rr, body := writeErrorFor(t, tc.err)
		assert.Equal(t, tc.status, rr.Code)
		assert.Equal(t, tc.wireCode, body.ErrorCode)
	}
}

func Test_WriteError_NonDomainErrorStaysGeneric(t *testing.T) {
	rr, body := writeErrorFor(t, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL_ERROR", body.ErrorCode)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, body.Message, assert.AnError.Error())
}

func Test_Decode(t *testing.T) {
	type payload struct {
		Token string `json:"token"`
	}

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"abc"}`))
		decoded, err := Decode[payload](req)
		require.NoError(t, err)
		assert.Equal(t, "abc", decoded.Token)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		_, err := Decode[payload](req)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeInvalidInput, "request body is required"))
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":`))
		_, err := Decode[payload](req)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeInvalidInput, "request body is not valid JSON"))
	})
}
