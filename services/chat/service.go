package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/repositories"
	"github.com/routelab/ai-gateway/services"
	"github.com/routelab/ai-gateway/services/catalog"
	"github.com/routelab/ai-gateway/services/routing"
)

const (
	// maxStoredContentChars caps each persisted message at this many runes
	maxStoredContentChars = 500

	// analyzePreviewLimit caps the preview returned by the analyze endpoint
	analyzePreviewLimit = 200

	// persistTimeout bounds outcome writes that run after the request
	// context may already be gone
	persistTimeout = 5 * time.Second
)

// Router is the decision surface the chat service consumes
type Router interface {
	Decide(ctx context.Context, messages []models.ChatMessage) *models.ModelSelection
	Recommend(ctx context.Context, messages []models.ChatMessage) routing.Recommendation
	Analyze(messages []models.ChatMessage) models.PromptAnalysis
	PerformanceStats(ctx context.Context) routing.PerformanceStats
}

// CompletionExecutor runs a selection against its providers until one
// attempt succeeds
type CompletionExecutor interface {
	Execute(ctx context.Context, selection *models.ModelSelection, snap *catalog.Snapshot, req *models.ChatCompletionRequest) (*routing.FailoverResult, error)
}

// SnapshotSource yields the current catalog snapshot
type SnapshotSource interface {
	Snapshot() *catalog.Snapshot
}

// RequestMeta carries transport-level attributes persisted with the request
type RequestMeta struct {
	UserID    *uuid.UUID
	ClientIP  string
	UserAgent string
	Endpoint  string
}

// Service is the upward-facing chat surface: it turns a conversation into
// a routed, persisted completion.
type Service struct {
	engine   Router
	executor CompletionExecutor
	catalog  SnapshotSource
	requests repositories.RequestRepository
	logger   *zap.Logger
}

// NewService creates the chat service
func NewService(engine Router, executor CompletionExecutor, catalogSvc SnapshotSource, requests repositories.RequestRepository, logger *zap.Logger) *Service {
	return &Service{
		engine:   engine,
		executor: executor,
		catalog:  catalogSvc,
		requests: requests,
		logger:   logger,
	}
}

// Complete routes the conversation to a model, executes the completion with
// failover and persists the request. Persistence failures degrade to a
// served but unrecorded completion.
func (s *Service) Complete(ctx context.Context, req *models.ChatCompletionRequest, meta RequestMeta) (*models.ChatCompletionResponse, error) {
	start := time.Now()

	if len(req.Messages) == 0 {
		return nil, services.ErrEmptyMessages
	}

	snap := s.catalog.Snapshot()

	selection, err := s.resolveSelection(ctx, req, snap)
	if err != nil {
		return nil, err
	}

	record := s.insertPending(ctx, req, selection, snap, meta)

	result, err := s.executor.Execute(ctx, selection, snap, req)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		s.finalizeRecord(record, func(rec *models.RequestRecord) {
			rec.MarkFailed(err.Error(), elapsed)
		})
		return nil, err
	}

	completion := result.Completion
	cost := completionCost(snap, result.Model, completion.PromptTokens, completion.CompletionTokens)
	elapsed := time.Since(start).Milliseconds()

	s.finalizeRecord(record, func(rec *models.RequestRecord) {
		if served, ok := snap.Model(result.Model); ok {
			rec.ModelID = served.ID
		}
		rec.MarkCompleted(completion.PromptTokens, completion.CompletionTokens, cost, elapsed)
	})

	requestID := uuid.New()
	if record != nil {
		requestID = record.ID
	}

	s.logger.Info("chat completion served",
		zap.String("model", result.Model),
		zap.String("provider", result.Provider),
		zap.Int("attempts", len(result.Attempts)),
		zap.Int64("elapsed_ms", elapsed))

	return &models.ChatCompletionResponse{
		RequestID: requestID,
		Content:   completion.Content,
		Model:     result.Model,
		Provider:  result.Provider,
		Usage: models.ChatUsage{
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
			TotalTokens:      completion.TotalTokens(),
		},
		Cost:             cost,
		ProcessingTimeMs: elapsed,
		FinishReason:     completion.FinishReason,
		Routing: models.RoutingMetadata{
			Score:     selection.Score,
			Reasoning: selection.Reasoning,
			IsDefault: selection.IsDefault,
			Attempts:  len(result.Attempts),
		},
	}, nil
}

// Recommend returns the decision the engine would make for the conversation
// without calling any provider
func (s *Service) Recommend(ctx context.Context, req *models.RecommendModelRequest) (*models.RecommendModelResponse, error) {
	if len(req.Messages) == 0 {
		return nil, services.ErrEmptyMessages
	}

	rec := s.engine.Recommend(ctx, req.Messages)

	resp := &models.RecommendModelResponse{
		Selection:            *rec.Selection,
		Analysis:             rec.Analysis,
		CandidatesConsidered: len(rec.Candidates),
	}
	if req.Detailed {
		resp.Candidates = rec.Candidates
	}
	return resp, nil
}

// Analyze runs the prompt analyzer over a single user message
func (s *Service) Analyze(prompt string) (*models.PromptAnalysis, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, services.ErrEmptyPrompt
	}

	analysis := s.engine.Analyze([]models.ChatMessage{{Role: models.RoleUser, Content: prompt}})
	analysis.Preview = truncateRunes(analysis.Preview, analyzePreviewLimit)
	return &analysis, nil
}

// DecisionStats returns the engine's performance snapshot
func (s *Service) DecisionStats(ctx context.Context) routing.PerformanceStats {
	return s.engine.PerformanceStats(ctx)
}

// resolveSelection maps the request to a model selection: the decision
// engine for auto requests, a catalog lookup for explicit model names.
func (s *Service) resolveSelection(ctx context.Context, req *models.ChatCompletionRequest, snap *catalog.Snapshot) (*models.ModelSelection, error) {
	if req.WantsAutoRouting() {
		return s.engine.Decide(ctx, req.Messages), nil
	}

	model, ok := snap.Model(req.Model)
	if !ok {
		return nil, fmt.Errorf("model %s: %w", req.Model, services.ErrModelNotFound)
	}
	provider, ok := snap.ProviderForModel(model)
	if !ok {
		return nil, fmt.Errorf("provider for model %s: %w", req.Model, services.ErrProviderNotFound)
	}
	if !provider.IsActive {
		return nil, fmt.Errorf("provider %s is inactive: %w", provider.Name, services.ErrProviderUnavailable)
	}

	return &models.ModelSelection{
		Model:     model.Name,
		Provider:  provider.Name,
		Reasoning: []string{"Explicitly requested model"},
	}, nil
}

// insertPending writes the pending request row. A missing catalog entry or
// a database failure is logged and the completion proceeds unrecorded.
func (s *Service) insertPending(ctx context.Context, req *models.ChatCompletionRequest, selection *models.ModelSelection, snap *catalog.Snapshot, meta RequestMeta) *models.RequestRecord {
	model, ok := snap.Model(selection.Model)
	if !ok {
		// the hardcoded fallback may name a model the catalog does not carry
		s.logger.Warn("selected model missing from catalog, skipping persistence",
			zap.String("model", selection.Model))
		return nil
	}

	rec := models.NewRequestRecord(model.ID, prepareInputText(req.Messages))
	rec.UserID = meta.UserID
	rec.SetParameters(req.Temperature, req.MaxTokens)
	rec.SetClientMetadata(meta.ClientIP, meta.UserAgent, meta.Endpoint)

	if err := s.requests.Create(ctx, rec); err != nil {
		s.logger.Error("failed to save request to database", zap.Error(err))
		return nil
	}
	return rec
}

// finalizeRecord applies the outcome and writes it under a detached
// timeout, since the request context may be cancelled by then.
func (s *Service) finalizeRecord(rec *models.RequestRecord, apply func(*models.RequestRecord)) {
	if rec == nil {
		return
	}
	apply(rec)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.requests.UpdateOutcome(ctx, rec); err != nil {
		s.logger.Error("failed to update request outcome",
			zap.String("id", rec.ID.String()),
			zap.Error(err))
	}
}

// completionCost prices a completion from the serving model's catalog
// entry. Unknown models cost zero.
func completionCost(snap *catalog.Snapshot, modelName string, promptTokens, completionTokens int) float64 {
	model, ok := snap.Model(modelName)
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*model.InputPricePer1K +
		float64(completionTokens)/1000*model.OutputPricePer1K
}

// prepareInputText renders the conversation as "role: content" lines with
// each message capped for storage
func prepareInputText(messages []models.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, msg.Role+": "+truncateRunes(msg.Content, maxStoredContentChars))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
