// Package middleware contains HTTP middleware for the quota service.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Emart29/iOpsAI/internal/auth"
	"github.com/Emart29/iOpsAI/internal/handler"
	"github.com/Emart29/iOpsAI/internal/repository"
)

// UserIDHeader carries the authenticated user's ID, set by the gateway after
// it validates the session token. The service trusts this header; the gateway
// must strip any client-supplied value before forwarding.
const UserIDHeader = "X-User-ID"

// IdentityMiddleware resolves the forwarded user identity on each request.
//
// Create one instance and use its methods as middleware.
type IdentityMiddleware struct {
	users  repository.UserStore
	logger *slog.Logger
}

// NewIdentityMiddleware creates a new IdentityMiddleware instance.
func NewIdentityMiddleware(users repository.UserStore, logger *slog.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		users:  users,
		logger: logger,
	}
}

// WithUser is middleware that attempts to load the user named by the
// forwarded identity header.
//
// This middleware:
// 1. Reads the X-User-ID header
// 2. If present and well-formed, loads the user from the store
// 3. Stores the user in the request context
// 4. Continues to the next handler regardless of resolution outcome
//
// The tier is read fresh on every request, so a plan change takes effect
// on the user's next action without any cache invalidation step.
//
// The user can be retrieved in handlers using:
//
//	user := auth.GetUser(r.Context())
func (m *IdentityMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			// No identity forwarded - continue without user
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			m.logger.Warn("malformed user ID header", "value", raw)
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			// Unknown or inactive identity - continue without user
			next.ServeHTTP(w, r)
			return
		}

		r = r.WithContext(auth.SetUser(r.Context(), user))

		next.ServeHTTP(w, r)
	})
}

// RequireUser is middleware that requires a resolved user.
//
// This middleware must be used AFTER WithUser in the middleware chain.
// Requests without a resolved identity receive a 401 JSON error.
func (m *IdentityMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, identityMw.WithUser, identityMw.RequireUser)
//	mux.Handle("POST /api/reports", stack(reportHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
