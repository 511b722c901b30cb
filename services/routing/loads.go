package routing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/metrics"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/repositories"
	"github.com/routelab/ai-gateway/services"
)

const (
	// loadWindow is the trailing interval over which requests are counted
	loadWindow = time.Hour

	// DefaultMaxRequestsPerMinute applies when a provider row carries no
	// positive rate limit.
	DefaultMaxRequestsPerMinute = 60
)

// LoadEstimator derives per-provider load factors from recent request
// volume. Summary loads are cached behind a TTL so scoring bursts share
// one aggregation query.
type LoadEstimator struct {
	requests repositories.RequestRepository
	catalog  repositories.CatalogRepository
	cache    *loadCache
	logger   *zap.Logger
}

// NewLoadEstimator creates a load estimator with the given cache TTL
func NewLoadEstimator(requests repositories.RequestRepository, catalog repositories.CatalogRepository, ttl time.Duration, logger *zap.Logger) *LoadEstimator {
	return &LoadEstimator{
		requests: requests,
		catalog:  catalog,
		cache:    newLoadCache(ttl),
		logger:   logger,
	}
}

// Loads returns a load factor in [0, 1] per active provider. Results are
// served from cache while fresh. Aggregation failures degrade to an empty
// map so a database hiccup never blocks routing; the failed result is not
// cached.
func (e *LoadEstimator) Loads(ctx context.Context) map[string]float64 {
	if cached, ok := e.cache.Get(); ok {
		metrics.LoadCacheEvents.WithLabelValues("hit").Inc()
		e.logger.Debug("provider loads served from cache", zap.Int("providers", len(cached)))
		return cached
	}
	metrics.LoadCacheEvents.WithLabelValues("miss").Inc()

	counts, err := e.requests.CountByProvider(ctx, time.Now().Add(-loadWindow))
	if err != nil {
		e.logger.Warn("failed to aggregate provider loads", zap.Error(err))
		return map[string]float64{}
	}

	loads := make(map[string]float64, len(counts))
	for _, c := range counts {
		loads[c.Provider] = loadFactor(c.RequestsLastHour, c.MaxRequestsPerMinute)
	}

	e.cache.Set(loads)
	e.logger.Debug("provider loads refreshed", zap.Int("providers", len(loads)))
	return loads
}

// DetailedLoads returns the full per-provider breakdown including average
// processing time. Never cached.
func (e *LoadEstimator) DetailedLoads(ctx context.Context) (map[string]models.DetailedProviderLoad, error) {
	stats, err := e.requests.StatsByProvider(ctx, time.Now().Add(-loadWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate detailed provider loads: %w", err)
	}

	now := time.Now().UTC()
	detailed := make(map[string]models.DetailedProviderLoad, len(stats))
	for _, s := range stats {
		maxRPM := s.MaxRequestsPerMinute
		if maxRPM <= 0 {
			maxRPM = DefaultMaxRequestsPerMinute
		}
		rpm := float64(s.RequestsLastHour) / loadWindow.Minutes()

		detailed[s.Provider] = models.DetailedProviderLoad{
			RequestsLastHour:     s.RequestsLastHour,
			MaxRequestsPerMinute: maxRPM,
			CurrentRPM:           rpm,
			LoadPercentage:       math.Min(rpm/float64(maxRPM)*100, 100.0),
			AvgProcessingTimeMs:  s.AvgProcessingTimeMs,
			LastUpdated:          now,
		}
	}

	return detailed, nil
}

// UpdateProviderMaxRequests changes a provider's per-minute ceiling and
// invalidates the load cache so the next read reflects it.
func (e *LoadEstimator) UpdateProviderMaxRequests(ctx context.Context, providerName string, maxRequestsPerMinute int) error {
	if maxRequestsPerMinute <= 0 {
		return fmt.Errorf("%w: got %d", services.ErrInvalidRateLimit, maxRequestsPerMinute)
	}

	if err := e.catalog.UpdateProviderRateLimit(ctx, providerName, maxRequestsPerMinute); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("provider %s: %w", providerName, services.ErrProviderNotFound)
		}
		return fmt.Errorf("failed to update provider rate limit: %w", err)
	}

	e.cache.Invalidate()
	e.logger.Info("provider rate limit updated",
		zap.String("provider", providerName),
		zap.Int("max_requests_per_minute", maxRequestsPerMinute))
	return nil
}

// ClearCache drops the cached load snapshot
func (e *LoadEstimator) ClearCache() {
	e.cache.Invalidate()
	e.logger.Debug("provider load cache cleared")
}

// SweepCache drops the load snapshot only if it has expired, so a decision
// never pays the refresh for an entry that went stale between requests.
func (e *LoadEstimator) SweepCache() bool {
	swept := e.cache.SweepExpired()
	if swept {
		e.logger.Debug("expired provider load cache swept")
	}
	return swept
}

// loadFactor converts a trailing-hour request count and rate ceiling into
// a load in [0, 1].
func loadFactor(requestsLastHour, maxRequestsPerMinute int) float64 {
	maxRPM := maxRequestsPerMinute
	if maxRPM <= 0 {
		maxRPM = DefaultMaxRequestsPerMinute
	}
	rpm := float64(requestsLastHour) / loadWindow.Minutes()
	return math.Min(rpm/float64(maxRPM), 1.0)
}
