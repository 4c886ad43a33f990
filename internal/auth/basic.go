package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// UserHeader carries the authenticated user to handlers.
const UserHeader = "X-Chatsync-User"

// public paths skip authentication so probes and scrapers keep working.
func public(path string) bool {
	return path == "/health" || path == "/metrics"
}

func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 || subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="chatsync"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			r.Header.Set(UserHeader, strings.TrimSpace(user))
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware enforces Basic Auth when username is set, and otherwise trusts
// the user named by a fronting proxy.
func Middleware(username, password, defaultUser string) func(http.Handler) http.Handler {
	if username != "" {
		return BasicAuth(username, password)
	}
	return ExtractUser(defaultUser)
}
