package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/paneltrack/internal/core"
)

// OperatorHeader names the operator on whose behalf a UI client acts.
const OperatorHeader = "X-Operator"

// Actor stores the acting user and host in the request context for the
// system log. The user comes from the X-Operator header and falls back to
// fallback.User; the host is the client address (after TrustedRealIP).
func Actor(fallback core.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := fallback
			if op := strings.TrimSpace(r.Header.Get(OperatorHeader)); op != "" {
				actor.User = op
			}
			if host := clientHost(r.RemoteAddr); host != "" {
				actor.Host = host
			}

			next.ServeHTTP(w, r.WithContext(core.WithActor(r.Context(), actor)))
		})
	}
}

func clientHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
