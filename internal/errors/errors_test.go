package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Session not found")
		assert.Equal(t, "NOT_FOUND: Session not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]int{"participantCount": 3, "maxParticipants": 3}
		err := SessionFull().WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"InvalidToken", func() *AppError { return InvalidToken("test") }, ErrCodeInvalidToken},
		{"NotFound", func() *AppError { return NotFound("Session") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("startAt", "in the past") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("startAt") }, ErrCodeMissingRequired},
		{"InvalidRole", func() *AppError { return InvalidRole("admin") }, ErrCodeInvalidRole},
		{"SessionFull", func() *AppError { return SessionFull() }, ErrCodeSessionFull},
		{"HostConflict", func() *AppError { return HostConflict() }, ErrCodeHostConflict},
		{"ActiveConflict", func() *AppError { return ActiveConflict() }, ErrCodeActiveConflict},
		{"OverlapConflict", func() *AppError { return OverlapConflict() }, ErrCodeOverlapConflict},
		{"SessionUnavailable", func() *AppError { return SessionUnavailable() }, ErrCodeSessionUnavailable},
		{"JoinNotOpen", func() *AppError { return JoinNotOpen() }, ErrCodeJoinNotOpen},
		{"SessionEnded", func() *AppError { return SessionEnded() }, ErrCodeSessionEnded},
		{"ReservationClosed", func() *AppError { return ReservationClosed() }, ErrCodeReservationClosed},
		{"SessionStarted", func() *AppError { return SessionStarted() }, ErrCodeSessionStarted},
		{"ReservationRequired", func() *AppError { return ReservationRequired() }, ErrCodeReservationMissing},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestExpected(t *testing.T) {
	t.Run("conflicts and validation are expected", func(t *testing.T) {
		assert.True(t, SessionFull().Expected())
		assert.True(t, NotFound("Session").Expected())
		assert.True(t, ValidationError("bad").Expected())
	})

	t.Run("infrastructure errors are not expected", func(t *testing.T) {
		assert.False(t, Database(errors.New("boom")).Expected())
		assert.False(t, External("room provider", errors.New("boom")).Expected())
		assert.False(t, Internal("boom").Expected())
	})
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestExternal(t *testing.T) {
	t.Run("wraps external service error", func(t *testing.T) {
		cause := errors.New("timeout")
		err := External("room provider", cause)
		assert.Equal(t, ErrCodeExternal, err.Code)
		assert.Contains(t, err.Message, "room provider")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Session not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("extracts AppError through fmt wrapping", func(t *testing.T) {
		original := OverlapConflict()
		wrapped := fmt.Errorf("claim seat: %w", original)
		extracted, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeOverlapConflict, extracted.Code)
		assert.True(t, IsAppError(wrapped))
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.Equal(t, ErrCodeNotFound, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Session not found", NotFound("Session").Message)
	assert.Equal(t, "startAt is required", MissingRequired("startAt").Message)
	assert.Equal(t, "join window has not opened yet", JoinNotOpen().Message)
	assert.Equal(t, "session has ended", SessionEnded().Message)
	assert.Equal(t, "reserve a spot first", ReservationRequired().Message)
}
