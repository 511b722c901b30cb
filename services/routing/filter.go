package routing

import (
	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/catalog"
)

// Minimum requirements applied when the configuration does not override them
const (
	DefaultMinContextWindow = 1024
	DefaultMinPriority      = 1
)

// contextHeadroomFactor scales the token estimate into the context window a
// candidate must offer.
const contextHeadroomFactor = 1.5

// Filter drops models that cannot serve the prompt before scoring.
type Filter struct {
	minContextWindow int
	minPriority      int
	logger           *zap.Logger
}

// NewFilter creates a candidate filter with the given minimum requirements
func NewFilter(minContextWindow, minPriority int, logger *zap.Logger) *Filter {
	return &Filter{
		minContextWindow: minContextWindow,
		minPriority:      minPriority,
		logger:           logger,
	}
}

// FilterCandidates walks the catalog in listing order and keeps every model
// that is available, large enough for the prompt, above the minimum
// priority, and owned by an active provider. Rejections are logged at debug
// level and never fail the call.
func (f *Filter) FilterCandidates(analysis models.PromptAnalysis, snap *catalog.Snapshot) []models.Candidate {
	requiredContext := float64(analysis.TokenEstimate) * contextHeadroomFactor

	candidates := make([]models.Candidate, 0, snap.ModelCount())
	for _, model := range snap.Models() {
		if !model.IsAvailable {
			f.logger.Debug("model not available", zap.String("model", model.Name))
			continue
		}

		if float64(model.ContextWindow) < requiredContext {
			f.logger.Debug("model filtered: context window below required",
				zap.String("model", model.Name),
				zap.Int("context_window", model.ContextWindow),
				zap.Float64("required", requiredContext))
			continue
		}

		if model.ContextWindow < f.minContextWindow {
			f.logger.Debug("model filtered: context window below minimum",
				zap.String("model", model.Name),
				zap.Int("context_window", model.ContextWindow),
				zap.Int("min", f.minContextWindow))
			continue
		}

		if model.Priority < f.minPriority {
			f.logger.Debug("model filtered: priority below minimum",
				zap.String("model", model.Name),
				zap.Int("priority", model.Priority),
				zap.Int("min", f.minPriority))
			continue
		}

		provider, ok := snap.ProviderForModel(model)
		if !ok {
			f.logger.Debug("provider config not found", zap.String("model", model.Name))
			continue
		}

		if !provider.IsActive {
			f.logger.Debug("provider not active",
				zap.String("model", model.Name),
				zap.String("provider", provider.Name))
			continue
		}

		candidates = append(candidates, models.Candidate{Model: model, Provider: provider})
	}

	return candidates
}

// QuickFilter applies task-type compatibility checks on top of the base
// filter. Code generation prompts only accept text and code models.
func (f *Filter) QuickFilter(analysis models.PromptAnalysis, candidates []models.Candidate) []models.Candidate {
	if analysis.TaskType != models.TaskTypeCodeGeneration {
		return candidates
	}

	kept := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Model.ModelType == models.ModelTypeText || c.Model.ModelType == models.ModelTypeCode {
			kept = append(kept, c)
			continue
		}
		f.logger.Debug("model filtered: type unsuited for code generation",
			zap.String("model", c.Model.Name),
			zap.String("model_type", string(c.Model.ModelType)))
	}

	return kept
}
