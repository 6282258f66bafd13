// Package middleware provides HTTP middleware for the digest API: the admin
// guard on run triggers, CORS and per-client rate limiting.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
)

// AdminHeader carries the admin secret.
const AdminHeader = "X-Admin-Secret"

// AdminAuth guards next with the configured admin secret. The secret is read
// from X-Admin-Secret or Authorization: Bearer. A secret shorter than
// config.MinAdminSecretLength disables the guarded routes entirely.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	enabled := len(secret) >= config.MinAdminSecretLength
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				writeError(w, http.StatusForbidden, "run trigger disabled")
				return
			}
			provided := extractSecret(r)
			if provided == "" {
				writeError(w, http.StatusUnauthorized, "missing admin secret")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid admin secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractSecret(r *http.Request) string {
	if v := r.Header.Get(AdminHeader); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
