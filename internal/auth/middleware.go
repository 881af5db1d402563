package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/sakif/tasktracker/internal/apperror"
)

// contextKey is an unexported type used for context keys in this package.
//
// context.WithValue uses any as the key type. A package-private type means
// only this package can create a key of type contextKey, so nothing else
// can read or shadow the claims we store.
type contextKey string

const claimsKey contextKey = "claims"

var (
	errNotAuthenticated = apperror.Unauthorized("Could not validate user.")
	errWrongRole        = apperror.Forbidden("Authentication Failed")
)

// AccessTokenCookie is the cookie the Google callback sets and the
// middleware falls back to when there is no Authorization header.
const AccessTokenCookie = "access_token"

// TokenValidator is the slice of TokenService the middleware needs.
type TokenValidator interface {
	Validate(token string) (*Claims, error)
}

// ValidationRecorder observes the outcome of every token check.
// Metrics implement it; nil is allowed.
type ValidationRecorder interface {
	TokenValidated(err error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// TOKEN LOOKUP ORDER:
//  1. "Authorization: Bearer <jwt>" (API clients, password login)
//  2. the access_token cookie (browsers after Google sign-in)
//
// The claims are stored in the request context. A missing or invalid token
// stops the chain with 401 and the same message for every failure kind.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens TokenValidator, rec ValidationRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", errNotAuthenticated)
				return
			}

			claims, err := tokens.Validate(raw)
			if rec != nil {
				rec.TokenValidated(err)
			}
			if err != nil {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", errNotAuthenticated)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after RequireAuth. Callers whose token role differs
// get 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", errNotAuthenticated)
				return
			}
			if c.Role != role {
				writeAuthError(w, r, http.StatusForbidden, "forbidden", errWrongRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
//
// Usage in handlers:
//
//	claims, ok := auth.ClaimsFromContext(r.Context())
//	if !ok {
//	    // route is not behind RequireAuth
//	}
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}

	return ""
}

// writeAuthError uses the same body shape as the handler package's error
// responses: {"error": kind, "message": ...}.
func writeAuthError(w http.ResponseWriter, r *http.Request, status int, kind string, err *apperror.AppError) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": kind, "message": err.Message})
}

// WithClaims returns a context carrying c, as RequireAuth would.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}
