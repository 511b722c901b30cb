package routing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/config"
	"github.com/routelab/ai-gateway/metrics"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/catalog"
)

// EngineConfig bundles the tunable routing surface
type EngineConfig struct {
	Weights           ScoreWeights
	MinScoreThreshold float64
	MinContextWindow  int
	MinPriority       int
	CostBuckets       []config.PriceBucket
	ContextCurve      []config.RatioStep
}

// EngineConfigFrom derives the engine configuration from the routing
// config with an optional scoring overlay folded in.
func EngineConfigFrom(rc config.RoutingConfig, overlay *config.ScoringOverlay) EngineConfig {
	rc = overlay.Apply(rc)

	cfg := EngineConfig{
		Weights:           WeightsFromConfig(rc),
		MinScoreThreshold: rc.MinScoreThreshold,
		MinContextWindow:  rc.MinContextWindow,
		MinPriority:       rc.MinPriority,
	}
	if overlay != nil {
		cfg.CostBuckets = overlay.CostBuckets
		cfg.ContextCurve = overlay.ContextCurve
	}
	return cfg
}

// Engine coordinates analysis, filtering, load estimation, scoring and
// selection into one routing decision.
type Engine struct {
	catalog   *catalog.Service
	analyzer  *Analyzer
	filter    *Filter
	estimator *LoadEstimator
	selector  *Selector

	// mu guards the scorer pointer and the decision stats. The curves are
	// fixed at construction and reused when weight updates rebuild the
	// scorer.
	mu           sync.Mutex
	scorer       *Scorer
	costBuckets  []config.PriceBucket
	contextCurve []config.RatioStep
	stats        models.DecisionStats

	logger *zap.Logger
}

// NewEngine creates a decision engine on top of the catalog service and
// load estimator. Fails only on invalid scoring weights.
func NewEngine(cfg EngineConfig, catalogSvc *catalog.Service, estimator *LoadEstimator, logger *zap.Logger) (*Engine, error) {
	scorer, err := NewScorer(ScorerConfig{
		Weights:      cfg.Weights,
		CostBuckets:  cfg.CostBuckets,
		ContextCurve: cfg.ContextCurve,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		catalog:      catalogSvc,
		analyzer:     NewAnalyzer(logger),
		filter:       NewFilter(cfg.MinContextWindow, cfg.MinPriority, logger),
		estimator:    estimator,
		selector:     NewSelector(cfg.MinScoreThreshold, logger),
		scorer:       scorer,
		costBuckets:  cfg.CostBuckets,
		contextCurve: cfg.ContextCurve,
		logger:       logger,
	}, nil
}

// Decide picks the model to serve the conversation. It never fails: empty
// filter, scoring or selection results degrade to the largest-context
// fallback, and a failure inside the fallback itself degrades to the
// hardcoded default. Stats are updated on every path.
func (e *Engine) Decide(ctx context.Context, messages []models.ChatMessage) *models.ModelSelection {
	start := time.Now()

	selection := e.tryDecide(ctx, messages)
	if selection == nil {
		selection = hardcodedFallback()
	}

	e.recordDecision(!selection.IsDefault, start)

	metrics.DecisionCount.WithLabelValues(decisionOutcome(selection)).Inc()
	metrics.DecisionDuration.Observe(time.Since(start).Seconds())

	return selection
}

// decisionOutcome classifies a selection for the decisions counter.
// Catalog-derived fallbacks count as "fallback"; the built-in default,
// whether from an empty catalog or a pipeline failure, as "hardcoded".
func decisionOutcome(sel *models.ModelSelection) string {
	switch {
	case !sel.IsDefault:
		return "selected"
	case len(sel.Reasoning) > 0 && sel.Reasoning[0] == reasonCatalogFallback:
		return "fallback"
	default:
		return "hardcoded"
	}
}

func (e *Engine) tryDecide(ctx context.Context, messages []models.ChatMessage) (selection *models.ModelSelection) {
	snap := e.catalog.Snapshot()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("error in decision engine", zap.Any("panic", r))
			selection = e.fallbackSelection(snap)
		}
	}()

	analysis := e.analyzer.Analyze(messages)

	candidates := e.filter.FilterCandidates(analysis, snap)
	candidates = e.filter.QuickFilter(analysis, candidates)
	if len(candidates) == 0 {
		e.logger.Warn("no suitable models found after filtering")
		return e.fallbackSelection(snap)
	}

	loads := e.estimator.Loads(ctx)

	scores := e.currentScorer().ScoreCandidates(analysis, candidates, loads)
	if len(scores) == 0 {
		e.logger.Warn("no models scored successfully")
		return e.fallbackSelection(snap)
	}

	selection = e.selector.SelectBest(scores)
	if selection == nil {
		e.logger.Warn("no model selected by selector")
		return e.fallbackSelection(snap)
	}

	e.logger.Info("selected model",
		zap.String("model", selection.Model),
		zap.String("provider", selection.Provider),
		zap.Float64("score", selection.Score))
	e.logger.Debug("prompt analysis",
		zap.String("complexity", string(analysis.Complexity)),
		zap.Int("tokens", analysis.TokenEstimate),
		zap.String("task_type", analysis.TaskType))

	return selection
}

func (e *Engine) fallbackSelection(snap *catalog.Snapshot) (selection *models.ModelSelection) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fallback selection failed", zap.Any("panic", r))
			selection = hardcodedFallback()
		}
	}()

	selection = e.selector.SelectFallback(snap.ListModels())
	e.logger.Info("using fallback model", zap.String("model", selection.Model))
	return selection
}

func hardcodedFallback() *models.ModelSelection {
	return &models.ModelSelection{
		Model:     fallbackModelName,
		Provider:  fallbackProviderName,
		Reasoning: []string{"Hardcoded fallback due to system error"},
		IsDefault: true,
	}
}

// Analyze exposes the prompt analyzer for the analyze endpoint
func (e *Engine) Analyze(messages []models.ChatMessage) models.PromptAnalysis {
	return e.analyzer.Analyze(messages)
}

// Recommendation is the full decision trace behind a routing recommendation
type Recommendation struct {
	Selection  *models.ModelSelection
	Analysis   models.PromptAnalysis
	Candidates []models.ScoredCandidate
}

// Recommend runs the decision pipeline without executing a completion and
// without touching the decision counters. The scored candidate list is
// retained so callers can expose the ranking.
func (e *Engine) Recommend(ctx context.Context, messages []models.ChatMessage) (rec Recommendation) {
	snap := e.catalog.Snapshot()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("error in decision engine", zap.Any("panic", r))
			rec.Selection = e.fallbackSelection(snap)
		}
	}()

	rec.Analysis = e.analyzer.Analyze(messages)

	candidates := e.filter.FilterCandidates(rec.Analysis, snap)
	candidates = e.filter.QuickFilter(rec.Analysis, candidates)
	if len(candidates) > 0 {
		loads := e.estimator.Loads(ctx)
		rec.Candidates = e.currentScorer().ScoreCandidates(rec.Analysis, candidates, loads)
		rec.Selection = e.selector.SelectBest(rec.Candidates)
	}

	if rec.Selection == nil {
		rec.Selection = e.fallbackSelection(snap)
	}
	return rec
}

// Stats returns a copy of the decision stats
func (e *Engine) Stats() models.DecisionStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Weights returns the active scoring weights
func (e *Engine) Weights() ScoreWeights {
	return e.currentScorer().Weights()
}

// Threshold returns the selector's current minimum score threshold
func (e *Engine) Threshold() float64 {
	return e.selector.Threshold()
}

// PerformanceStats collects the decision stats, active tuning values and
// the detailed per-provider loads. A load aggregation failure degrades to
// an empty load map.
func (e *Engine) PerformanceStats(ctx context.Context) PerformanceStats {
	detailed, err := e.estimator.DetailedLoads(ctx)
	if err != nil {
		e.logger.Warn("failed to collect detailed provider loads", zap.Error(err))
		detailed = map[string]models.DetailedProviderLoad{}
	}

	e.mu.Lock()
	stats := e.stats
	weights := e.scorer.Weights()
	e.mu.Unlock()

	total := stats.TotalDecisions
	if total < 1 {
		total = 1
	}

	return PerformanceStats{
		Stats:         stats,
		Weights:       weights.Map(),
		Threshold:     e.selector.Threshold(),
		ProviderLoads: detailed,
		SuccessRate:   float64(stats.SuccessfulDecisions) / float64(total) * 100,
		FallbackRate:  float64(stats.FallbackDecisions) / float64(total) * 100,
	}
}

// UpdateWeights swaps in a scorer with the new weights, keeping the
// configured scoring curves.
func (e *Engine) UpdateWeights(weights ScoreWeights) error {
	scorer, err := NewScorer(ScorerConfig{
		Weights:      weights,
		CostBuckets:  e.costBuckets,
		ContextCurve: e.contextCurve,
	}, e.logger)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.scorer = scorer
	e.mu.Unlock()

	e.logger.Info("decision weights updated", zap.Any("weights", weights.Map()))
	return nil
}

// UpdateThreshold replaces the selector's minimum score threshold
func (e *Engine) UpdateThreshold(threshold float64) error {
	return e.selector.UpdateThreshold(threshold)
}

// UpdateProviderRateLimit changes a provider's per-minute request ceiling
func (e *Engine) UpdateProviderRateLimit(ctx context.Context, providerName string, maxRequestsPerMinute int) error {
	return e.estimator.UpdateProviderMaxRequests(ctx, providerName, maxRequestsPerMinute)
}

// ClearCache drops the provider load cache
func (e *Engine) ClearCache() {
	e.estimator.ClearCache()
	e.logger.Info("decision engine cache cleared")
}

func (e *Engine) currentScorer() *Scorer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scorer
}

func (e *Engine) recordDecision(scored bool, start time.Time) {
	elapsed := time.Since(start).Seconds() * 1000

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalDecisions++
	if scored {
		e.stats.SuccessfulDecisions++
	} else {
		e.stats.FallbackDecisions++
	}

	count := e.stats.TotalDecisions
	if count == 1 {
		e.stats.AvgDecisionTime = elapsed
	} else {
		e.stats.AvgDecisionTime = (e.stats.AvgDecisionTime*float64(count-1) + elapsed) / float64(count)
	}

	now := time.Now()
	e.stats.LastDecisionTime = &now
}
