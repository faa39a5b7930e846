package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cropwise-go/internal/config"
	"cropwise-go/internal/models"
)

// NewRouter builds the HTTP handler: middleware stack, /metrics and the
// handler routes.
func NewRouter(cfg config.ServerConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(
				cfg.RateLimit,
				cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
						Error: "rate limit exceeded",
						Code:  "rate_limited",
					})
				}),
			))
		}
		h.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "no route for " + r.URL.Path, Code: "not_found"})
	})
	return r
}
