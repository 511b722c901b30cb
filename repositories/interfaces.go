package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/routelab/ai-gateway/models"
)

// TransactionManager runs closures inside database transactions. The open
// transaction travels in the closure's context, so repository calls made
// with that context join it automatically.
type TransactionManager interface {
	// InTransaction runs fn inside a read-write transaction.
	// Commits when fn returns nil, rolls back otherwise.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly runs fn inside a read-only repeatable-read transaction so
	// successive reads observe one consistent database state.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository reads and administers the provider and model catalog
type CatalogRepository interface {
	// ListProviders retrieves all provider rows
	ListProviders(ctx context.Context) ([]*models.ProviderConfig, error)

	// ListModels retrieves all model rows
	ListModels(ctx context.Context) ([]*models.ModelConfig, error)

	// GetProviderByName retrieves a provider by its unique name.
	// Wraps sql.ErrNoRows when no row matches.
	GetProviderByName(ctx context.Context, name string) (*models.ProviderConfig, error)

	// UpdateProviderRateLimit updates a provider's per-minute request ceiling.
	// Wraps sql.ErrNoRows when no row matches.
	UpdateProviderRateLimit(ctx context.Context, providerName string, maxRequestsPerMinute int) error
}

// RequestRepository handles routed request persistence and load aggregation
type RequestRepository interface {
	// Create inserts a new request row
	Create(ctx context.Context, rec *models.RequestRecord) error

	// UpdateOutcome writes the terminal status, token counts, cost and timing
	UpdateOutcome(ctx context.Context, rec *models.RequestRecord) error

	// GetByID retrieves a request by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error)

	// CountByProvider aggregates request counts per provider since the given time.
	// Providers with no requests appear with a zero count.
	CountByProvider(ctx context.Context, since time.Time) ([]models.ProviderRequestCount, error)

	// StatsByProvider aggregates counts plus average processing time per provider
	StatsByProvider(ctx context.Context, since time.Time) ([]models.ProviderRequestStats, error)

	// DeleteOlderThan removes request rows older than the cutoff.
	// Returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Catalog  CatalogRepository
	Requests RequestRepository
}
