package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "doccontrol/pkg/domain-errors"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error hides its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeEnvelope(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "internal_error", body["error"])
		assert.Equal(t, "internal server error", body["message"])
	})

	t.Run("validation error carries fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Validation("invalid document", map[string]string{"area": "required"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeEnvelope(t, w)
		assert.Equal(t, "invalid document", body["message"])
		assert.Equal(t, map[string]any{"area": "required"}, body["fields"])
	})
}

func TestWriteDispatchIncludesZeroCount(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDispatch(w, http.StatusOK, "status updated", nil, 0)

	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["notificationsSent"])
	_, hasData := body["data"]
	assert.False(t, hasData)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (r *nameRequest) Normalize() { r.Name = strings.TrimSpace(r.Name) }

func (r *nameRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required").WithField("name", "required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"  DOC  "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[nameRequest](w, r, nil, r.Context(), "req")
		require.True(t, ok)
		assert.Equal(t, "DOC", req.Name)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[nameRequest](w, r, nil, r.Context(), "req")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"   "}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[nameRequest](w, r, nil, r.Context(), "req")
		assert.False(t, ok)
		assert.Equal(t, "validation_error", decodeEnvelope(t, w)["error"])
	})
}
