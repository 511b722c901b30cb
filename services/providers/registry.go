package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
)

var (
	// ErrNilFactory is returned when registering a nil factory
	ErrNilFactory = errors.New("provider factory cannot be nil")

	// ErrFactoryAlreadyRegistered is returned when registering a duplicate factory
	ErrFactoryAlreadyRegistered = errors.New("provider factory already registered")
)

// Factory builds a provider client from its catalog configuration. The
// configuration carries the base URL, credentials and timeouts; the factory
// decides what to do with them.
type Factory func(cfg *models.ProviderConfig, logger *zap.Logger) (ChatProvider, error)

// Registry maps catalog provider names to client factories and caches the
// instances they produce. It is built at startup and injected wherever
// provider dispatch is needed; there is no package-level default.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]ChatProvider
	logger    *zap.Logger
}

// NewRegistry creates an empty provider registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]ChatProvider),
		logger:    logger,
	}
}

// RegisterFactory registers a factory under the exact provider name used in
// the catalog (e.g. "OpenAI", "Ollama", "MockAI").
func (r *Registry) RegisterFactory(name string, factory Factory) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if factory == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrFactoryAlreadyRegistered, name)
	}

	r.factories[name] = factory
	return nil
}

// ForProvider returns the client for the given provider configuration,
// creating and caching it on first use. A provider without a registered
// factory yields a not-configured error.
func (r *Registry) ForProvider(cfg *models.ProviderConfig) (ChatProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config is nil: %w", services.ErrProviderNotConfigured)
	}

	r.mu.RLock()
	if instance, ok := r.instances[cfg.Name]; ok {
		r.mu.RUnlock()
		return instance, nil
	}
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no factory registered for provider %q: %w", cfg.Name, services.ErrProviderNotConfigured)
	}

	instance, err := factory(cfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have built the instance in the gap.
	if existing, ok := r.instances[cfg.Name]; ok {
		return existing, nil
	}
	r.instances[cfg.Name] = instance
	r.logger.Info("created provider instance", zap.String("provider", cfg.Name))
	return instance, nil
}

// Reset drops all cached instances. Factories stay registered; the next
// ForProvider call rebuilds the client from the current catalog config.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances = make(map[string]ChatProvider)
	r.logger.Info("provider instance cache cleared")
}

// FactoryNames returns the registered factory names, sorted.
func (r *Registry) FactoryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CachedProviders returns the names of providers with a live instance, sorted.
func (r *Registry) CachedProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
