package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/repositories"
	"go.uber.org/zap"
)

// CatalogRepository implements the repositories.CatalogRepository interface
type CatalogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB, logger *zap.Logger) repositories.CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// ListProviders retrieves all provider rows
func (r *CatalogRepository) ListProviders(ctx context.Context) ([]*models.ProviderConfig, error) {
	query := `
		SELECT provider_id, provider_name, base_url, auth_type,
		       max_requests_per_minute, retry_count, timeout_seconds,
		       is_active, created_at
		FROM providers
		ORDER BY provider_name
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.ProviderConfig
	for rows.Next() {
		p := &models.ProviderConfig{}
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.BaseURL,
			&p.AuthType,
			&p.MaxRequestsPerMinute,
			&p.RetryCount,
			&p.TimeoutSeconds,
			&p.IsActive,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate providers: %w", err)
	}

	return providers, nil
}

// ListModels retrieves all model rows
func (r *CatalogRepository) ListModels(ctx context.Context) ([]*models.ModelConfig, error) {
	query := `
		SELECT model_id, provider_id, model_name, model_type, context_window,
		       max_output_tokens, supports_json_mode, supports_function_calling,
		       input_price_per_1k, output_price_per_1k, is_available, priority,
		       created_at, updated_at
		FROM ai_models
		ORDER BY model_name
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var modelRows []*models.ModelConfig
	for rows.Next() {
		m := &models.ModelConfig{}
		err := rows.Scan(
			&m.ID,
			&m.ProviderID,
			&m.Name,
			&m.ModelType,
			&m.ContextWindow,
			&m.MaxOutputTokens,
			&m.SupportsJSONMode,
			&m.SupportsFunctionCalling,
			&m.InputPricePer1K,
			&m.OutputPricePer1K,
			&m.IsAvailable,
			&m.Priority,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		modelRows = append(modelRows, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate models: %w", err)
	}

	return modelRows, nil
}

// GetProviderByName retrieves a provider by its unique name
func (r *CatalogRepository) GetProviderByName(ctx context.Context, name string) (*models.ProviderConfig, error) {
	query := `
		SELECT provider_id, provider_name, base_url, auth_type,
		       max_requests_per_minute, retry_count, timeout_seconds,
		       is_active, created_at
		FROM providers
		WHERE provider_name = $1
	`

	executor := GetExecutor(ctx, r.db)
	p := &models.ProviderConfig{}

	err := executor.QueryRowContext(ctx, query, name).Scan(
		&p.ID,
		&p.Name,
		&p.BaseURL,
		&p.AuthType,
		&p.MaxRequestsPerMinute,
		&p.RetryCount,
		&p.TimeoutSeconds,
		&p.IsActive,
		&p.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("provider not found: %s: %w", name, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return p, nil
}

// UpdateProviderRateLimit updates a provider's per-minute request ceiling
func (r *CatalogRepository) UpdateProviderRateLimit(ctx context.Context, providerName string, maxRequestsPerMinute int) error {
	query := `
		UPDATE providers
		SET max_requests_per_minute = $1
		WHERE provider_name = $2
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, maxRequestsPerMinute, providerName)
	if err != nil {
		return fmt.Errorf("failed to update provider rate limit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("provider not found: %s: %w", providerName, sql.ErrNoRows)
	}

	r.logger.Debug("provider rate limit updated",
		zap.String("provider", providerName),
		zap.Int("max_requests_per_minute", maxRequestsPerMinute))
	return nil
}
