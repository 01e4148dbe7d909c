package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/hangplan/hangout-server/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	status := statusFromCode(appErr.Code)
	response := ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}

	WriteJSON(w, status, response)
}

// statusFromCode maps ErrorCode to HTTP status code
func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired:
		return http.StatusBadRequest

	case apperrors.ErrCodeUnauthorized,
		apperrors.ErrCodeSessionExpired:
		return http.StatusUnauthorized

	case apperrors.ErrCodeForbidden,
		apperrors.ErrCodeAccountLocked:
		return http.StatusForbidden

	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	case apperrors.ErrCodeConflict:
		return http.StatusConflict

	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	case apperrors.ErrCodeOverloaded:
		return http.StatusServiceUnavailable

	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
