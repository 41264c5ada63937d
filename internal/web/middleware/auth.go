package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/paneltrack/internal/config"
)

// APIKeyAuth checks X-API-Key against cfg.APIKeys when cfg.RequireAPIKey
// is set. Admin keys are accepted as API keys too. With RequireAPIKey set
// and no keys configured every request is rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				reject(w, r, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}
			if !matchesAny(key, cfg.APIKeys) && !matchesAny(key, cfg.AdminKeys) {
				reject(w, r, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminKeyAuth guards destructive routes. The X-Admin-Key header must match
// one of cfg.AdminKeys. With no admin keys configured the check is off and
// the caller alone vouches for the confirmation.
func AdminKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(cfg.AdminKeys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				reject(w, r, http.StatusUnauthorized, "missing admin key", "AUTH_MISSING_ADMIN_KEY")
				return
			}
			if !matchesAny(key, cfg.AdminKeys) {
				reject(w, r, http.StatusForbidden, "invalid admin key", "AUTH_INVALID_ADMIN_KEY")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	slog.Warn("auth: "+msg,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}

// matchesAny compares key against every candidate in constant time so the
// response time does not reveal which key, if any, matched.
func matchesAny(key string, candidates []string) bool {
	valid := 0
	for _, c := range candidates {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(c))
	}
	return valid == 1
}
