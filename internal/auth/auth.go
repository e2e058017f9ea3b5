// Package auth enforces an optional shared bearer token on the HTTP API.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// publicRoute is a read-only route served without a token. A path other than
// the root that ends in "/" matches every path below it.
type publicRoute string

func (p publicRoute) matches(path string) bool {
	if p != "/" && strings.HasSuffix(string(p), "/") {
		return strings.HasPrefix(path, string(p))
	}
	return path == string(p)
}

var publicRoutes = []publicRoute{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/v1/systems",
	"/api/v1/simulations/", // reports and plots by run ID
}

// queryTokenRoutes accept the token as ?access_token=, since browser
// EventSource clients cannot set an Authorization header.
var queryTokenRoutes = map[string]bool{
	"/api/v1/stream/simulations": true,
}

// isPublic reports whether r may skip authentication. Writes never may.
func isPublic(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	for _, p := range publicRoutes {
		if p.matches(r.URL.Path) {
			return true
		}
	}
	return false
}

// presentedToken returns the token the request carries, if any.
func presentedToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		return token, ok && token != ""
	}
	if queryTokenRoutes[r.URL.Path] {
		token := r.URL.Query().Get("access_token")
		return token, token != ""
	}
	return "", false
}

// Middleware returns an HTTP middleware that enforces the token on non-public
// requests when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := presentedToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="ttvsim"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
