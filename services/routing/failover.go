package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/metrics"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
	"github.com/routelab/ai-gateway/services/catalog"
	"github.com/routelab/ai-gateway/services/providers"
)

// DefaultMaxFallbacks bounds how many alternatives are tried after the
// primary candidate.
const DefaultMaxFallbacks = 3

// AttemptStatus classifies the outcome of one completion attempt
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptError   AttemptStatus = "error"
	AttemptTimeout AttemptStatus = "timeout"
)

// Attempt records one completion attempt against a candidate
type Attempt struct {
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Status   AttemptStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Elapsed  time.Duration `json:"-"`
}

// FailoverResult carries the completion that succeeded plus the full
// attempt trail. On exhaustion the completion is nil and the trail shows
// why each candidate failed.
type FailoverResult struct {
	Completion *models.ProviderCompletion
	Model      string
	Provider   string
	Attempts   []Attempt
}

// FailoverExecutor walks a selection's candidate order, calling each
// provider under its own timeout until one attempt succeeds.
type FailoverExecutor struct {
	registry     *providers.Registry
	maxFallbacks int
	logger       *zap.Logger
}

// NewFailoverExecutor creates an executor that tries the primary candidate
// plus up to maxFallbacks alternatives.
func NewFailoverExecutor(registry *providers.Registry, maxFallbacks int, logger *zap.Logger) *FailoverExecutor {
	if maxFallbacks < 0 {
		maxFallbacks = DefaultMaxFallbacks
	}
	return &FailoverExecutor{
		registry:     registry,
		maxFallbacks: maxFallbacks,
		logger:       logger,
	}
}

type attemptRef struct {
	model    string
	provider string
}

// Execute runs the completion against the selection's primary candidate,
// failing over through its alternatives in rank order. The first success
// wins. The returned result always carries the attempt trail, including
// when every candidate failed and the error wraps
// services.ErrAllCandidatesExhausted.
func (f *FailoverExecutor) Execute(ctx context.Context, selection *models.ModelSelection, snap *catalog.Snapshot, req *models.ChatCompletionRequest) (*FailoverResult, error) {
	result := &FailoverResult{}
	order := f.attemptOrder(selection)

	for _, ref := range order {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("request cancelled after %d attempts: %w", len(result.Attempts), err)
		}

		attempt := f.tryCandidate(ctx, ref, snap, req)
		result.Attempts = append(result.Attempts, attempt.Attempt)
		metrics.FailoverAttempts.WithLabelValues(string(attempt.Status)).Inc()

		if attempt.Status == AttemptSuccess {
			result.Completion = attempt.completion
			result.Model = ref.model
			result.Provider = ref.provider
			return result, nil
		}

		f.logger.Warn("completion attempt failed",
			zap.String("model", ref.model),
			zap.String("provider", ref.provider),
			zap.String("status", string(attempt.Status)),
			zap.String("reason", attempt.Reason))
	}

	return result, fmt.Errorf("%d attempts failed: %w", len(result.Attempts), services.ErrAllCandidatesExhausted)
}

// attemptOrder yields the primary candidate followed by distinct
// alternatives up to the fallback limit.
func (f *FailoverExecutor) attemptOrder(selection *models.ModelSelection) []attemptRef {
	order := []attemptRef{{model: selection.Model, provider: selection.Provider}}
	seen := map[string]bool{selection.Model: true}

	for _, alt := range selection.Alternatives {
		if len(order) >= 1+f.maxFallbacks {
			break
		}
		if seen[alt.Model] {
			continue
		}
		seen[alt.Model] = true
		order = append(order, attemptRef{model: alt.Model, provider: alt.Provider})
	}

	return order
}

type attemptOutcome struct {
	Attempt
	completion *models.ProviderCompletion
}

func (f *FailoverExecutor) tryCandidate(ctx context.Context, ref attemptRef, snap *catalog.Snapshot, req *models.ChatCompletionRequest) attemptOutcome {
	out := attemptOutcome{Attempt: Attempt{Model: ref.model, Provider: ref.provider}}

	providerCfg, ok := snap.Provider(ref.provider)
	if !ok {
		out.Status = AttemptError
		out.Reason = fmt.Sprintf("provider %s not in catalog", ref.provider)
		return out
	}

	instance, err := f.registry.ForProvider(providerCfg)
	if err != nil {
		out.Status = AttemptError
		out.Reason = err.Error()
		return out
	}

	timeout := providerCfg.Timeout()
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	completion, err := instance.ChatCompletion(attemptCtx, &providers.ChatRequest{
		Model:       ref.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	out.Elapsed = time.Since(start)

	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			out.Status = AttemptTimeout
			out.Reason = fmt.Sprintf("Timeout after %d seconds", int(timeout.Seconds()))
		} else {
			out.Status = AttemptError
			out.Reason = err.Error()
		}
		metrics.ProviderRequests.WithLabelValues(ref.provider, "error").Inc()
		return out
	}

	out.Status = AttemptSuccess
	out.completion = completion
	metrics.ProviderRequests.WithLabelValues(ref.provider, "success").Inc()
	return out
}
