package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/repositories"
	"github.com/routelab/ai-gateway/services"
)

// Credentials maps provider names to API keys. Keys live in the environment,
// not the catalog, and are stamped onto provider configs at load time.
type Credentials map[string]string

// Service loads catalog snapshots from the repository and swaps them
// atomically. Callers take a snapshot per decision; Reload replaces it for
// subsequent decisions without interrupting in-flight ones.
type Service struct {
	repo   repositories.CatalogRepository
	tx     repositories.TransactionManager
	creds  Credentials
	logger *zap.Logger

	mu      sync.RWMutex
	current *Snapshot
}

// NewService creates a catalog service with an empty snapshot.
// Call Load before routing. A nil transaction manager degrades to plain
// reads without snapshot consistency.
func NewService(repo repositories.CatalogRepository, tx repositories.TransactionManager, creds Credentials, logger *zap.Logger) *Service {
	if tx == nil {
		tx = directReads{}
	}
	if creds == nil {
		creds = Credentials{}
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		creds:   creds,
		logger:  logger,
		current: NewSnapshot(nil, nil),
	}
}

// Load reads the full catalog and swaps in a fresh snapshot.
// The previous snapshot stays valid for readers that already hold it.
func (s *Service) Load(ctx context.Context) error {
	var (
		providers []*models.ProviderConfig
		modelRows []*models.ModelConfig
	)

	// Both reads run against one database state so the snapshot never
	// carries a model whose provider row it missed.
	err := s.tx.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if providers, err = s.repo.ListProviders(ctx); err != nil {
			return services.WrapInternal("failed to load providers", err)
		}
		if modelRows, err = s.repo.ListModels(ctx); err != nil {
			return services.WrapInternal("failed to load models", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range providers {
		if key, ok := s.creds[p.Name]; ok {
			p.APIKey = key
		}
	}

	snapshot := NewSnapshot(providers, modelRows)

	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()

	s.logger.Info("catalog loaded",
		zap.Int("providers", len(providers)),
		zap.Int("models", len(modelRows)))
	return nil
}

// Snapshot returns the current catalog snapshot
func (s *Service) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// directReads runs closures without a surrounding transaction
type directReads struct{}

func (directReads) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (directReads) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
