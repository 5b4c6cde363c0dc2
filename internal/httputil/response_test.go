package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/studyhall/focus-server/internal/errors"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeInvalidRole, http.StatusBadRequest},
		{apperrors.ErrCodeValidation, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeReservationMissing, http.StatusForbidden},
		{apperrors.ErrCodeJoinNotOpen, http.StatusForbidden},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeSessionFull, http.StatusConflict},
		{apperrors.ErrCodeHostConflict, http.StatusConflict},
		{apperrors.ErrCodeActiveConflict, http.StatusConflict},
		{apperrors.ErrCodeOverlapConflict, http.StatusConflict},
		{apperrors.ErrCodeSessionUnavailable, http.StatusConflict},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeExternal, http.StatusBadGateway},
		{apperrors.ErrCodeDatabase, http.StatusInternalServerError},
		{apperrors.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes AppError with details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.SessionFull().WithDetails(map[string]int{"maxParticipants": 3}))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "SESSION_FULL", body["code"])
		assert.NotNil(t, body["details"])
	})

	t.Run("hides unknown errors", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: relation does not exist"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation")
		assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	})

	t.Run("hides database cause", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.Database(errors.New("password authentication failed")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}
