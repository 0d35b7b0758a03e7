package middleware

import (
	"net/http"
	"strings"
)

// OriginPolicy decides which page hosts may call the booking API from the
// browser.
type OriginPolicy struct {
	listed   map[string]struct{}
	wildcard bool
}

// NewOriginPolicy parses configured origins. Trailing slashes are ignored
// and a "*" entry admits any origin without credentials.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{listed: make(map[string]struct{}, len(origins))}
	for _, raw := range origins {
		origin := strings.TrimRight(strings.TrimSpace(raw), "/")
		switch origin {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.listed[origin] = struct{}{}
		}
	}
	return p
}

// Admit reports whether origin may call the API and whether it may send
// the visitor cookie along.
func (p OriginPolicy) Admit(origin string) (allowed, credentials bool) {
	if origin == "" {
		return false, false
	}
	if _, ok := p.listed[origin]; ok {
		return true, true
	}
	return p.wildcard, false
}

const (
	corsAllowHeaders  = "Content-Type, X-Request-ID"
	corsAllowMethods  = "GET, POST, PATCH, DELETE, OPTIONS"
	corsExposeHeaders = "X-Request-ID"
)

// CORS applies OriginPolicy to every response and answers preflights.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := NewOriginPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			allowed, credentials := policy.Admit(origin)
			h := w.Header()
			h.Add("Vary", "Origin")
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				h.Set("Access-Control-Max-Age", "600")
				if credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if preflight && origin != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
