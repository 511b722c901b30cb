package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/routelab/ai-gateway/middleware"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/routing"
	"github.com/routelab/ai-gateway/utils"
	"go.uber.org/zap"
)

// DecisionService covers the read side of the decision engine
type DecisionService interface {
	// Recommend runs the decision pipeline without executing the completion
	Recommend(ctx context.Context, req *models.RecommendModelRequest) (*models.RecommendModelResponse, error)

	// Analyze classifies a single prompt
	Analyze(prompt string) (*models.PromptAnalysis, error)

	// DecisionStats returns the engine's observability snapshot
	DecisionStats(ctx context.Context) routing.PerformanceStats
}

// EngineAdmin covers the mutating decision-engine operations
type EngineAdmin interface {
	UpdateWeights(weights routing.ScoreWeights) error
	UpdateThreshold(threshold float64) error
	UpdateProviderRateLimit(ctx context.Context, providerName string, maxRequestsPerMinute int) error
	ClearCache()
}

// CatalogReloader rebuilds the catalog snapshot from the database
type CatalogReloader interface {
	Load(ctx context.Context) error
}

// StrategyDescriptor describes one selectable routing strategy
type StrategyDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// routingStrategies is the static strategy listing. Only "auto" is wired to
// the engine today; the rest are advertised for clients that persist a choice.
var routingStrategies = []StrategyDescriptor{
	{
		ID:          "auto",
		Name:        "Automatic selection",
		Description: "Intelligent model selection based on cost, complexity, and load",
		Enabled:     true,
	},
	{
		ID:          "cost_optimized",
		Name:        "Cost optimized",
		Description: "Select the cheapest model that can handle the prompt",
		Enabled:     true,
	},
	{
		ID:          "performance",
		Name:        "Performance first",
		Description: "Select the most powerful model regardless of cost",
		Enabled:     true,
	},
	{
		ID:          "balanced",
		Name:        "Balanced",
		Description: "Balance between cost and performance",
		Enabled:     true,
	},
}

// DecisionHandler handles decision engine HTTP requests
type DecisionHandler struct {
	service DecisionService
	engine  EngineAdmin
	catalog CatalogReloader
	logger  *zap.Logger
}

// NewDecisionHandler creates a new DecisionHandler
func NewDecisionHandler(service DecisionService, engine EngineAdmin, catalog CatalogReloader, logger *zap.Logger) *DecisionHandler {
	return &DecisionHandler{
		service: service,
		engine:  engine,
		catalog: catalog,
		logger:  logger,
	}
}

// HandleRecommend handles POST /api/v1/decision/recommend
func (h *DecisionHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.RecommendModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	response, err := h.service.Recommend(ctx, &req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("model recommendation served",
		zap.String("request_id", requestID),
		zap.String("model", response.Selection.Model),
		zap.String("provider", response.Selection.Provider),
		zap.Float64("score", response.Selection.Score))

	_ = utils.WriteOK(w, response)
}

// HandleAnalyze handles GET /api/v1/decision/analyze?prompt=
func (h *DecisionHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("prompt")

	analysis, err := h.service.Analyze(prompt)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, analysis)
}

// HandleStats handles GET /api/v1/decision/stats
func (h *DecisionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.DecisionStats(r.Context())
	_ = utils.WriteOK(w, stats)
}

// HandleStrategies handles GET /api/v1/decision/strategies
func (h *DecisionHandler) HandleStrategies(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"strategies": routingStrategies,
	})
}

// HandleUpdateWeights handles PUT /api/v1/admin/decision/weights
func (h *DecisionHandler) HandleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.UpdateWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	weights := routing.ScoreWeights{
		Cost:       req.Cost,
		Complexity: req.Complexity,
		Context:    req.Context,
		Priority:   req.Priority,
		Load:       req.Load,
	}
	if err := h.engine.UpdateWeights(weights); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("scoring weights updated",
		zap.String("request_id", requestID),
		zap.Any("weights", weights.Map()))

	_ = utils.WriteOK(w, map[string]interface{}{
		"weights": weights.Map(),
	})
}

// HandleUpdateThreshold handles PUT /api/v1/admin/decision/threshold
func (h *DecisionHandler) HandleUpdateThreshold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.UpdateThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.engine.UpdateThreshold(req.Threshold); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("score threshold updated",
		zap.String("request_id", requestID),
		zap.Float64("threshold", req.Threshold))

	_ = utils.WriteOK(w, map[string]interface{}{
		"threshold": req.Threshold,
	})
}

// HandleUpdateRateLimit handles PUT /api/v1/admin/providers/{name}/rate-limit
func (h *DecisionHandler) HandleUpdateRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	providerName := chi.URLParam(r, "name")

	var req models.UpdateRateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.engine.UpdateProviderRateLimit(ctx, providerName, req.MaxRequestsPerMinute); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("provider rate limit updated",
		zap.String("request_id", requestID),
		zap.String("provider", providerName),
		zap.Int("max_requests_per_minute", req.MaxRequestsPerMinute))

	_ = utils.WriteOK(w, map[string]interface{}{
		"provider":                providerName,
		"max_requests_per_minute": req.MaxRequestsPerMinute,
	})
}

// HandleClearCache handles POST /api/v1/admin/decision/cache/clear
func (h *DecisionHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()

	h.logger.Info("decision cache cleared",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))

	_ = utils.WriteOK(w, map[string]interface{}{
		"cleared": true,
	})
}

// HandleReloadCatalog handles POST /api/v1/admin/catalog/reload
func (h *DecisionHandler) HandleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	if err := h.catalog.Load(ctx); err != nil {
		h.logger.Error("catalog reload failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	// Cached loads may reference models that just changed
	h.engine.ClearCache()

	h.logger.Info("catalog reloaded",
		zap.String("request_id", requestID))

	_ = utils.WriteOK(w, map[string]interface{}{
		"reloaded": true,
	})
}
