package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusOK, map[string]string{"message": "test"}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"message":"test"}`, w.Body.String())
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOKAndCreated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]string{"projectname": "Mapping"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"projectname":"Mapping"}}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"id": "123"}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"id":"123"}}`, w.Body.String())
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestFormResults(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteFormSuccess(w, "/users/u1/dashboard"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"redirectTo":"/users/u1/dashboard"}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteFormErrors(w, http.StatusBadRequest, map[string]string{"provider": "Invalid provider"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"errors":{"provider":"Invalid provider"}}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteFormMessage(w, "Check your inbox"))
	assert.JSONEq(t, `{"success":true,"message":"Check your inbox"}`, w.Body.String())
}

func TestSeeOther(t *testing.T) {
	w := httptest.NewRecorder()
	SeeOther(w, httptest.NewRequest(http.MethodPost, "/auth/signin", nil), "/users/u1/dashboard")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/users/u1/dashboard", w.Header().Get("Location"))
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteBadRequest(w, "Validation failed", map[string]interface{}{"email": "invalid format"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeError(t, w)
	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "Validation failed", response.Message)
	assert.Equal(t, "invalid format", response.Details["email"])
}

func TestDefaultMessages(t *testing.T) {
	tests := []struct {
		name    string
		write   func(http.ResponseWriter, string) error
		status  int
		errType string
		message string
	}{
		{"unauthorized", WriteUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication required"},
		{"forbidden", WriteForbidden, http.StatusForbidden, "forbidden", "Access forbidden"},
		{"not found", WriteNotFound, http.StatusNotFound, "not_found", "Resource not found"},
		{"internal", WriteInternalServerError, http.StatusInternalServerError, "internal_error", "Internal server error"},
		{"bad gateway", WriteBadGateway, http.StatusBadGateway, "bad_gateway", "Upstream service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w, ""))
			assert.Equal(t, tt.status, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.errType, response.Error)
			assert.Equal(t, tt.message, response.Message)

			w = httptest.NewRecorder()
			require.NoError(t, tt.write(w, "custom"))
			assert.Equal(t, "custom", decodeError(t, w).Message)
		})
	}
}

func TestWriteConflict(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteConflict(w, "Already a member", map[string]interface{}{"user_id": "u1"}))

	assert.Equal(t, http.StatusConflict, w.Code)
	response := decodeError(t, w)
	assert.Equal(t, "conflict", response.Error)
	assert.Equal(t, "u1", response.Details["user_id"])
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name              string
		status            int
		expectedErrorType string
	}{
		{"bad request", http.StatusBadRequest, "bad_request"},
		{"unauthorized", http.StatusUnauthorized, "unauthorized"},
		{"forbidden", http.StatusForbidden, "forbidden"},
		{"not found", http.StatusNotFound, "not_found"},
		{"conflict", http.StatusConflict, "conflict"},
		{"bad gateway", http.StatusBadGateway, "bad_gateway"},
		{"unknown status defaults to internal error", http.StatusTeapot, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			require.NoError(t, WriteError(w, tt.status, "message", nil))

			assert.Equal(t, tt.status, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.expectedErrorType, response.Error)
			assert.Equal(t, "message", response.Message)
		})
	}
}
