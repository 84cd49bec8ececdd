package services

import (
	"context"
	"errors"
	"net/http"

	chat_errors "forum-chat/pkg/errors"

	"github.com/google/uuid"
)

type ctxKey string

var userIDKey ctxKey = "user_id"

func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// HTTPStatus maps the error taxonomy onto response codes so the UI can tell
// "try again" from "not allowed" from "too late".
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, chat_errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat_errors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, chat_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat_errors.ErrInvalidState), errors.Is(err, chat_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chat_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable code attached to error responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, chat_errors.ErrValidation):
		return "INVALID_REQUEST"
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, chat_errors.ErrPermissionDenied):
		return "PERMISSION_DENIED"
	case errors.Is(err, chat_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, chat_errors.ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, chat_errors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, chat_errors.ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}
