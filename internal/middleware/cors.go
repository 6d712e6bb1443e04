// Package middleware provides HTTP middleware for the advisor API.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/ashureev/duhoc-advisor/internal/identity"
)

// preflightMaxAge is how long browsers may cache a preflight response.
const preflightMaxAge = 600

var allowedHeaders = strings.Join([]string{
	"Content-Type",
	"Authorization",
	identity.SessionHeaderName,
}, ", ")

// CORS returns middleware that handles CORS headers for the listed origins.
// "*" matches any origin but never enables credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(allowedOrigins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			explicit := origin != "" && slices.Contains(allowedOrigins, origin)

			w.Header().Add("Vary", "Origin")
			if origin != "" && (explicit || wildcard) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", allowedHeaders)
				h.Set("Access-Control-Max-Age", strconv.Itoa(preflightMaxAge))
				if explicit {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
