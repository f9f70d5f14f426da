package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorWithCode(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithCode(rec, "log entry not found", CodeNotFound, http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "log entry not found", body.Error)
	assert.Equal(t, CodeNotFound, body.Code)
}

func TestRespondValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidation(rec, map[string][]string{"key": {"key is required"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeValidation, body.Code)
	assert.Equal(t, []string{"key is required"}, body.Fields["key"])
}

func TestRedirect(t *testing.T) {
	rec := httptest.NewRecorder()
	Redirect(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "/locks")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/locks", rec.Header().Get("Location"))
}
