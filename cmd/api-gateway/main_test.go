package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/routelab/ai-gateway/app"
	"github.com/routelab/ai-gateway/config"
	"github.com/routelab/ai-gateway/handlers"
	"github.com/routelab/ai-gateway/middleware"
	"github.com/routelab/ai-gateway/routes"
	"github.com/routelab/ai-gateway/services/catalog"
	"github.com/routelab/ai-gateway/services/chat"
	"github.com/routelab/ai-gateway/services/providers"
	"github.com/routelab/ai-gateway/services/routing"
)

// rejectAllValidator rejects all tokens for testing (unauthenticated requests get 401)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, assert.AnError
}

func TestMain(m *testing.M) {
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	os.Exit(m.Run())
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "info")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "invalid")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestHealthEndpoints(t *testing.T) {
	handler := routes.SetupRoutes(testDependencies(t))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	t.Run("health check returns ok", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body struct {
			Data handlers.HealthResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Data.Status)
	})

	t.Run("readiness without database configured", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health/ready")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data handlers.HealthResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Data.Status)
		assert.Equal(t, "healthy", body.Data.Checks["database"])
	})
}

func TestAPIEndpoints(t *testing.T) {
	handler := routes.SetupRoutes(testDependencies(t))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"chat completion without body", "POST", "/api/v1/chat/completions", http.StatusBadRequest},
		{"recommend without body", "POST", "/api/v1/decision/recommend", http.StatusBadRequest},
		{"strategy listing", "GET", "/api/v1/decision/strategies", http.StatusOK},
		{"provider listing", "GET", "/api/v1/providers", http.StatusOK},
		{"update weights unauthenticated", "PUT", "/api/v1/admin/decision/weights", http.StatusUnauthorized},
		{"update threshold unauthenticated", "PUT", "/api/v1/admin/decision/threshold", http.StatusUnauthorized},
		{"update rate limit unauthenticated", "PUT", "/api/v1/admin/providers/OpenAI/rate-limit", http.StatusUnauthorized},
		{"cache clear unauthenticated", "POST", "/api/v1/admin/decision/cache/clear", http.StatusUnauthorized},
		{"catalog reload unauthenticated", "POST", "/api/v1/admin/catalog/reload", http.StatusUnauthorized},
		{"not found", "GET", "/api/v1/nonexistent", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}
}

func TestAdminWithToken(t *testing.T) {
	deps := testDependencies(t)
	validator := middleware.NewJWTValidator("test-secret", "ai-gateway")
	deps.AuthMiddleware = middleware.NewAuthMiddleware(validator, deps.Logger)

	handler := routes.SetupRoutes(deps)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	adminCall := func(t *testing.T, token string) *http.Response {
		t.Helper()
		req, err := http.NewRequest("POST", ts.URL+"/api/v1/admin/decision/cache/clear", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("admin token clears cache", func(t *testing.T) {
		token, err := middleware.SignToken("test-secret", "ai-gateway", "ops@example.com", []string{"admin"}, time.Hour)
		require.NoError(t, err)

		resp := adminCall(t, token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("non-admin token is forbidden", func(t *testing.T) {
		token, err := middleware.SignToken("test-secret", "ai-gateway", "viewer@example.com", []string{"viewer"}, time.Hour)
		require.NoError(t, err)

		resp := adminCall(t, token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		deps := testDependencies(t)
		deps.Config.Observability.MetricsEnabled = true

		ts := httptest.NewServer(routes.SetupRoutes(deps))
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("disabled", func(t *testing.T) {
		deps := testDependencies(t)
		deps.Config.Observability.MetricsEnabled = false

		ts := httptest.NewServer(routes.SetupRoutes(deps))
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCORSMiddleware(t *testing.T) {
	handler := routes.SetupRoutes(testDependencies(t))
	ts := httptest.NewServer(handler)
	defer ts.Close()

	t.Run("OPTIONS preflight request", func(t *testing.T) {
		req, err := http.NewRequest("OPTIONS", ts.URL+"/api/v1/providers", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "GET")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestIntegrationWithRealDependencies(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	cfg := testConfig(t)
	logger := zaptest.NewLogger(t)

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
		return
	}
	defer deps.Close(ctx)

	handler := routes.SetupRoutes(deps)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	t.Run("readiness check with real infrastructure", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health/ready")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Data handlers.HealthResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

		assert.Equal(t, "healthy", body.Data.Status)
		assert.Equal(t, "healthy", body.Data.Checks["database"])
	})

	t.Run("seeded catalog is served", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/providers")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Counts map[string]int `json:"counts"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Greater(t, body.Data.Counts["models"], 0)
	})
}

// Test helpers

// testDependencies wires the HTTP layer against in-memory services so
// route tests need no database.
func testDependencies(t *testing.T) *app.Dependencies {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := testConfig(t)

	catalogSvc := catalog.NewService(nil, nil, nil, logger)
	registry := providers.NewRegistry(logger)
	estimator := routing.NewLoadEstimator(nil, nil, time.Minute, logger)

	engine, err := routing.NewEngine(routing.EngineConfigFrom(cfg.Routing, nil), catalogSvc, estimator, logger)
	require.NoError(t, err)

	executor := routing.NewFailoverExecutor(registry, cfg.Routing.MaxFallbacks, logger)
	chatSvc := chat.NewService(engine, executor, catalogSvc, nil, logger)

	return &app.Dependencies{
		Config:           cfg,
		Logger:           logger,
		CatalogService:   catalogSvc,
		ProviderRegistry: registry,
		LoadEstimator:    estimator,
		Engine:           engine,
		Executor:         executor,
		ChatService:      chatSvc,
		ChatHandler:      handlers.NewChatHandler(chatSvc, logger),
		DecisionHandler:  handlers.NewDecisionHandler(chatSvc, engine, catalogSvc, logger),
		ProviderHandler:  handlers.NewProviderHandler(catalogSvc, registry, logger),
		HealthHandler:    handlers.NewHealthHandler(nil, logger),
		AuthMiddleware:   middleware.NewAuthMiddleware(&rejectAllValidator{}, logger),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            5432,
			User:            getEnvOrDefault("DB_USER", "gateway"),
			Password:        getEnvOrDefault("DB_PASSWORD", "gateway"),
			Database:        getEnvOrDefault("DB_NAME", "ai_gateway_test"),
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			JWTIssuer: "ai-gateway",
		},
		Providers: config.ProvidersConfig{
			DefaultTimeout: 30 * time.Second,
			MaxRetries:     3,
			MockEnabled:    true,
		},
		Routing: config.RoutingConfig{
			WeightCost:        0.30,
			WeightComplexity:  0.25,
			WeightContext:     0.20,
			WeightPriority:    0.15,
			WeightLoad:        0.10,
			MinScoreThreshold: 0.3,
			MinContextWindow:  1024,
			MinPriority:       1,
			LoadCacheTTL:      5 * time.Minute,
			MaxFallbacks:      3,
		},
		Maintenance: config.MaintenanceConfig{
			Enabled:           false,
			RetentionDays:     30,
			RetentionSchedule: "0 3 * * *",
			CacheSweepEvery:   "@every 5m",
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
