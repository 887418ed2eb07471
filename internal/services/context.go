package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const userIDContextKey contextKey = "auth_user_id"

// WithUserContext binds the authenticated user id to ctx.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts the authenticated user id from ctx.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return userID, ok
}
