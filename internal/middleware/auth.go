package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/4ier/logodeth/internal/auth"
)

// RoleVerifier validates a bearer token and checks its role.
type RoleVerifier interface {
	RequireRole(token, role string) (*auth.Claims, error)
}

// RequireAdmin rejects requests without a valid admin bearer token: 401 when
// the token is missing, malformed or expired, 403 when it lacks the admin role.
// Rejections are counted on metrics, which may be nil.
func RequireAdmin(verifier RoleVerifier, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				metrics.IncAdminAuthFailure(AuthMissingToken)
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := verifier.RequireRole(token, auth.RoleAdmin)
			switch {
			case errors.Is(err, auth.ErrForbiddenRole):
				metrics.IncAdminAuthFailure(AuthForbidden)
				writeAuthError(w, r, http.StatusForbidden, "forbidden", "Admin role required")
				return
			case errors.Is(err, auth.ErrExpiredToken):
				metrics.IncAdminAuthFailure(AuthExpiredToken)
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "Token has expired")
				return
			case err != nil:
				metrics.IncAdminAuthFailure(AuthInvalidToken)
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			SetSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="logodeth"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
