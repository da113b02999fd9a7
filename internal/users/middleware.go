package users

import (
	"context"
	"net/http"
	"strings"

	"github.com/avolkov/shortlink/internal/errx"
	"github.com/avolkov/shortlink/internal/httpx"
)

type contextKey string

const userContextKey contextKey = "user"

// NewContext returns a context carrying the authenticated user.
func NewContext(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts the authenticated user from the context.
func FromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey).(User)
	return user, ok
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(svc Service) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.WriteKindError(w, errx.Unauthorized, "authentication required")
				return
			}

			user, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				httpx.WriteKindError(w, errx.Unauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when a valid bearer token is present and
// lets the request through as a guest otherwise.
func OptionalAuth(svc Service) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if user, err := svc.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(NewContext(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
