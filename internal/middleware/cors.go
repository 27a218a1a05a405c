package middleware

import (
	"net/http"
	"strings"
)

// CORS allows a comma-separated list of origins. An entry may contain one
// "*" wildcard, e.g. "https://stable-yield-*.vercel.app"; a bare "*" allows
// every origin.
func CORS(origins string) func(http.Handler) http.Handler {
	patterns := splitOrigins(origins)
	fallback := ""
	if len(patterns) > 0 && !strings.Contains(patterns[0], "*") {
		fallback = patterns[0]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := fallback
			if reqOrigin := r.Header.Get("Origin"); reqOrigin != "" && isAllowed(reqOrigin, patterns) {
				allowed = reqOrigin
			}
			if allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func isAllowed(reqOrigin string, patterns []string) bool {
	for _, p := range patterns {
		if p == "*" || p == reqOrigin {
			return true
		}
		prefix, suffix, ok := strings.Cut(p, "*")
		if ok && len(reqOrigin) > len(prefix)+len(suffix) &&
			strings.HasPrefix(reqOrigin, prefix) && strings.HasSuffix(reqOrigin, suffix) {
			return true
		}
	}
	return false
}
