package server

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
)

// wrap applies the net/http middleware that runs in front of gin:
// CORS, per-IP rate limiting and trailing-slash normalisation.
func wrap(h http.Handler, cfg config.HTTPConfig) http.Handler {
	h = middleware.StripSlashes(h)
	h = rateLimit(cfg)(h)
	return corsHandler(cfg)(h)
}

func corsHandler(cfg config.HTTPConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func rateLimit(cfg config.HTTPConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow)
}
