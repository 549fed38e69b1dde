package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"chassis/internal/config"
)

// SecurityHeaders sets the standard hardening headers on every response.
// It runs inside compression so the headers survive on compressed
// responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// CORS builds the cross-origin middleware from configuration. Only mounted
// when FEATURE_CORS is enabled.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins:   cfg.AllowOrigins,
		AllowedMethods:   cfg.AllowMethods,
		AllowedHeaders:   cfg.AllowHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAgeSeconds,
	}
	if len(options.AllowedMethods) == 0 {
		options.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(options.AllowedHeaders) == 0 {
		options.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", RequestIDHeader}
	}
	return cors.Handler(options)
}
