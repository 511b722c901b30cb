package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/routelab/ai-gateway/middleware"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/catalog"
	"github.com/routelab/ai-gateway/services/providers"
	"github.com/routelab/ai-gateway/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// healthProbeTimeout bounds a single provider health check
const healthProbeTimeout = 5 * time.Second

// maxParallelProbes bounds the health check fan-out
const maxParallelProbes = 4

// CatalogSource exposes the current catalog snapshot
type CatalogSource interface {
	Snapshot() *catalog.Snapshot
}

// ProviderSource resolves provider client instances
type ProviderSource interface {
	ForProvider(cfg *models.ProviderConfig) (providers.ChatProvider, error)
}

// ProviderHandler handles provider listing and health HTTP requests
type ProviderHandler struct {
	catalog  CatalogSource
	registry ProviderSource
	logger   *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(catalogSvc CatalogSource, registry ProviderSource, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		catalog:  catalogSvc,
		registry: registry,
		logger:   logger,
	}
}

// HandleList handles GET /api/v1/providers
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()

	providerList := snap.ListProviders()
	modelList := snap.ListModels()

	_ = utils.WriteOK(w, map[string]interface{}{
		"providers": providerList,
		"models":    modelList,
		"counts": map[string]int{
			"providers": len(providerList),
			"models":    len(modelList),
		},
	})
}

// HandleHealth handles GET /api/v1/providers/health
// Probes every active provider in parallel with a bounded fan-out.
func (h *ProviderHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	snap := h.catalog.Snapshot()
	configs := snap.Providers()
	results := make([]models.ProviderHealth, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)

	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			results[i] = h.probeProvider(gctx, cfg)
			return nil
		})
	}

	// Goroutines capture failures in their result slot and never return an error
	_ = g.Wait()

	healthy := 0
	for _, res := range results {
		if res.Healthy {
			healthy++
		}
	}

	h.logger.Debug("provider health sweep finished",
		zap.String("request_id", requestID),
		zap.Int("healthy", healthy),
		zap.Int("total", len(results)))

	_ = utils.WriteOK(w, map[string]interface{}{
		"providers": results,
		"healthy":   healthy,
		"total":     len(results),
	})
}

// probeProvider resolves and pings one provider backend
func (h *ProviderHandler) probeProvider(ctx context.Context, cfg *models.ProviderConfig) models.ProviderHealth {
	health := models.ProviderHealth{Provider: cfg.Name}

	if !cfg.IsActive {
		health.Error = "provider disabled"
		return health
	}

	client, err := h.registry.ForProvider(cfg)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	err = client.HealthCheck(probeCtx)
	health.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		h.logger.Warn("provider health check failed",
			zap.String("provider", cfg.Name),
			zap.Error(err))
		health.Error = err.Error()
		return health
	}

	health.Healthy = true
	return health
}
