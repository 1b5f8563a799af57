package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig describes the single browser origin allowed to call the API.
// "*" allows any origin without credentials.
type CORSConfig struct {
	AllowedOrigin  string
	AllowedHeaders []string
	AllowedMethods []string
	MaxAge         time.Duration
}

// DefaultCORSConfig allows origin with the headers the frontend sends.
func DefaultCORSConfig(origin string) CORSConfig {
	return CORSConfig{
		AllowedOrigin:  origin,
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		MaxAge:         10 * time.Minute,
	}
}

// CORS answers preflight requests and decorates responses for the
// configured origin. Requests from other origins pass through without CORS
// headers and are left to the browser to block.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && cfg.AllowedOrigin != "" && (cfg.AllowedOrigin == "*" || origin == cfg.AllowedOrigin)

			if allowed {
				h := w.Header()
				h.Add("Vary", "Origin")
				if cfg.AllowedOrigin == "*" {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Set("Access-Control-Expose-Headers", "Content-Disposition, Retry-After, X-Request-ID")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					w.Header().Set("Access-Control-Allow-Methods", methods)
					w.Header().Set("Access-Control-Allow-Headers", headers)
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
