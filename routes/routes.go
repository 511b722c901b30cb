package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/routelab/ai-gateway/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	// Prometheus scrape endpoint
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Chat completions. Open endpoint; authenticated callers get attributed.
		r.Post("/chat/completions", deps.ChatHandler.HandleChatCompletion)

		// Decision engine introspection
		r.Route("/decision", func(r chi.Router) {
			r.Post("/recommend", deps.DecisionHandler.HandleRecommend)
			r.Get("/analyze", deps.DecisionHandler.HandleAnalyze)
			r.Get("/stats", deps.DecisionHandler.HandleStats)
			r.Get("/strategies", deps.DecisionHandler.HandleStrategies)
		})

		// Provider status
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", deps.ProviderHandler.HandleList)
			r.Get("/health", deps.ProviderHandler.HandleHealth)
		})

		// Admin operations (require admin role)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole("admin"))
			r.Put("/decision/weights", deps.DecisionHandler.HandleUpdateWeights)
			r.Put("/decision/threshold", deps.DecisionHandler.HandleUpdateThreshold)
			r.Post("/decision/cache/clear", deps.DecisionHandler.HandleClearCache)
			r.Put("/providers/{name}/rate-limit", deps.DecisionHandler.HandleUpdateRateLimit)
			r.Post("/catalog/reload", deps.DecisionHandler.HandleReloadCatalog)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
