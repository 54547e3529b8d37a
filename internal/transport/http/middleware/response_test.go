package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONError(rr, http.StatusForbidden, "forbidden")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, float64(http.StatusForbidden), body["error_code"])
	assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestWriteJSONError_StatusHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONError(rr, http.StatusUnauthorized, "unauthorized")
	assert.Equal(t, `Bearer realm="onboarding"`, rr.Header().Get("WWW-Authenticate"))

	rr = httptest.NewRecorder()
	writeJSONError(rr, http.StatusTooManyRequests, "too many requests")
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}
