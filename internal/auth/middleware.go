package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shoplist/shoplist/internal/session"
)

type contextKey string

const claimsKey contextKey = "claims"

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "session"

// Middleware authenticates every request by bearer token or session cookie.
// The token must verify and its session must still be live in sessions.
func Middleware(authSvc *Service, sessions session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w, ErrMissingCredentials)
				return
			}
			claims, err := authSvc.ValidateToken(token)
			if err != nil {
				unauthorized(w, ErrInvalidCredentials)
				return
			}
			sess, err := sessions.Lookup(r.Context(), claims.SessionID())
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					slog.Error("session lookup failed", "error", err)
				}
				unauthorized(w, ErrInvalidCredentials)
				return
			}
			if sess.UserID != claims.UserID {
				unauthorized(w, ErrInvalidCredentials)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// GetClaims retrieves the JWT claims from a request context. Returns nil if unauthenticated.
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}
