// Package auth provides identity context helpers.
//
// Authentication itself happens upstream (the gateway validates the session
// token and forwards a stable user identity); this package only carries the
// resolved user through the request context. It is designed to be imported
// by both middleware and handler packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/Emart29/iOpsAI/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the key used to store the resolved user in context.
	userContextKey contextKey = "user"
)

// GetUser retrieves the resolved user from the context.
//
// Returns nil if no identity was attached to the request.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest retrieves the resolved user from the request context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user in the context.
//
// This is called by the identity middleware after resolving the forwarded
// user ID against the user store.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
