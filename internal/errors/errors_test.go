package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("formats without cause", func(t *testing.T) {
		err := New(ErrCodeUnauthorized, "nope")
		assert.Equal(t, "UNAUTHORIZED: nope", err.Error())
	})

	t.Run("formats with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(ErrCodeDatabase, "query failed", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unwraps to the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("WithDetails attaches payload", func(t *testing.T) {
		err := ValidationError("bad input").WithDetails(map[string]string{"field": "title"})
		assert.NotNil(t, err.Details)
	})
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *AppError
		code ErrorCode
	}{
		{Unauthorized("x"), ErrCodeUnauthorized},
		{Forbidden("x"), ErrCodeForbidden},
		{SessionExpired(), ErrCodeSessionExpired},
		{AccountLocked(), ErrCodeAccountLocked},
		{ValidationError("x"), ErrCodeValidation},
		{InvalidInput("field", "reason"), ErrCodeInvalidInput},
		{MissingRequired("field"), ErrCodeMissingRequired},
		{NotFound("hangout"), ErrCodeNotFound},
		{Conflict("x"), ErrCodeConflict},
		{RateLimitExceeded(), ErrCodeRateLimitExceeded},
		{Overloaded(), ErrCodeOverloaded},
		{Internal("x"), ErrCodeInternal},
		{Database(errors.New("x")), ErrCodeDatabase},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestHelpers(t *testing.T) {
	t.Run("IsAppError sees wrapped AppErrors", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", NotFound("hangout"))
		assert.True(t, IsAppError(wrapped))
		assert.False(t, IsAppError(errors.New("plain")))
	})

	t.Run("AsAppError extracts the typed error", func(t *testing.T) {
		appErr, ok := AsAppError(fmt.Errorf("outer: %w", Overloaded()))
		require.True(t, ok)
		assert.Equal(t, ErrCodeOverloaded, appErr.Code)
	})

	t.Run("GetCode falls back to internal", func(t *testing.T) {
		assert.Equal(t, ErrCodeNotFound, GetCode(NotFound("x")))
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})
}
