// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/merchware/backpay/internal/auth"
)

// AuthorizationHeader is the HTTP header name carrying the bearer token.
const AuthorizationHeader = "Authorization"

// writeAuthError writes a JSON error response for authentication failures.
func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, `{"error":"`+code+`","message":"`+message+`"}`)
}

// RequireAdmin returns middleware that authenticates the operator from a
// Bearer access token and stores their ID in the request context. Requests
// without a valid access token get 401; valid tokens without the shop manager
// role get 403.
func RequireAdmin(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(AuthorizationHeader)
			if header == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "missing_token", "Authorization header is required")
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "invalid_token", "Authorization header must be a Bearer token")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				code := "invalid_token"
				message := "Invalid access token"
				if errors.Is(err, auth.ErrExpiredToken) {
					code = "expired_token"
					message = "Access token has expired"
				}
				writeAuthError(w, r, http.StatusUnauthorized, code, message)
				return
			}

			// Refresh tokens cannot be used to call the API directly.
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, http.StatusUnauthorized, "invalid_token", "Access token required")
				return
			}

			if claims.Role != auth.RoleShopManager {
				writeAuthError(w, r, http.StatusForbidden, "insufficient_role", "Shop manager role is required")
				return
			}

			ctx := SetAdminID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
