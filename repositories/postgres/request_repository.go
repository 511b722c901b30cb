package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/repositories"
	"go.uber.org/zap"
)

// RequestRepository implements the repositories.RequestRepository interface
type RequestRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *DB, logger *zap.Logger) repositories.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new request row
func (r *RequestRepository) Create(ctx context.Context, rec *models.RequestRecord) error {
	query := `
		INSERT INTO requests (
			request_id, user_id, model_id, prompt_hash, input_text,
			input_tokens, output_tokens, total_cost, temperature, max_tokens,
			status, error_message, request_timestamp, completed_at,
			processing_time_ms, client_ip, user_agent, endpoint_called
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ModelID,
		rec.PromptHash,
		rec.InputText,
		rec.InputTokens,
		rec.OutputTokens,
		rec.TotalCost,
		rec.Temperature,
		rec.MaxTokens,
		rec.Status,
		rec.ErrorMessage,
		rec.RequestTimestamp,
		rec.CompletedAt,
		rec.ProcessingTimeMs,
		rec.ClientIP,
		rec.UserAgent,
		rec.EndpointCalled,
	)

	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	r.logger.Debug("request created", zap.String("id", rec.ID.String()))
	return nil
}

// UpdateOutcome writes the terminal status, serving model, token counts,
// cost and timing. The model may differ from the one recorded at insert
// when a fallback candidate served the request.
func (r *RequestRepository) UpdateOutcome(ctx context.Context, rec *models.RequestRecord) error {
	query := `
		UPDATE requests
		SET status = $1, model_id = $2, input_tokens = $3, output_tokens = $4,
		    total_cost = $5, processing_time_ms = $6, error_message = $7,
		    completed_at = $8
		WHERE request_id = $9
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		rec.Status,
		rec.ModelID,
		rec.InputTokens,
		rec.OutputTokens,
		rec.TotalCost,
		rec.ProcessingTimeMs,
		rec.ErrorMessage,
		rec.CompletedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request not found: %s: %w", rec.ID, sql.ErrNoRows)
	}

	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	query := `
		SELECT request_id, user_id, model_id, prompt_hash, input_text,
		       input_tokens, output_tokens, total_cost, temperature, max_tokens,
		       status, error_message, request_timestamp, completed_at,
		       processing_time_ms, client_ip, user_agent, endpoint_called
		FROM requests
		WHERE request_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	rec := &models.RequestRecord{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ModelID,
		&rec.PromptHash,
		&rec.InputText,
		&rec.InputTokens,
		&rec.OutputTokens,
		&rec.TotalCost,
		&rec.Temperature,
		&rec.MaxTokens,
		&rec.Status,
		&rec.ErrorMessage,
		&rec.RequestTimestamp,
		&rec.CompletedAt,
		&rec.ProcessingTimeMs,
		&rec.ClientIP,
		&rec.UserAgent,
		&rec.EndpointCalled,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("request not found: %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return rec, nil
}

// CountByProvider aggregates request counts per active provider since the
// given time. The LEFT JOINs keep providers with zero requests in the result.
func (r *RequestRepository) CountByProvider(ctx context.Context, since time.Time) ([]models.ProviderRequestCount, error) {
	query := `
		SELECT p.provider_name,
		       COUNT(r.request_id) AS request_count,
		       p.max_requests_per_minute
		FROM providers p
		LEFT JOIN ai_models m ON p.provider_id = m.provider_id
		LEFT JOIN requests r ON m.model_id = r.model_id
		    AND r.request_timestamp >= $1
		WHERE p.is_active = true
		GROUP BY p.provider_name, p.max_requests_per_minute
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider request counts: %w", err)
	}
	defer rows.Close()

	var counts []models.ProviderRequestCount
	for rows.Next() {
		var c models.ProviderRequestCount
		if err := rows.Scan(&c.Provider, &c.RequestsLastHour, &c.MaxRequestsPerMinute); err != nil {
			return nil, fmt.Errorf("failed to scan provider request count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider request counts: %w", err)
	}

	return counts, nil
}

// StatsByProvider aggregates counts plus average processing time per provider
func (r *RequestRepository) StatsByProvider(ctx context.Context, since time.Time) ([]models.ProviderRequestStats, error) {
	query := `
		SELECT p.provider_name,
		       COUNT(r.request_id) AS request_count,
		       p.max_requests_per_minute,
		       COALESCE(AVG(r.processing_time_ms), 0) AS avg_processing_time_ms
		FROM providers p
		LEFT JOIN ai_models m ON p.provider_id = m.provider_id
		LEFT JOIN requests r ON m.model_id = r.model_id
		    AND r.request_timestamp >= $1
		WHERE p.is_active = true
		GROUP BY p.provider_name, p.max_requests_per_minute
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider request stats: %w", err)
	}
	defer rows.Close()

	var stats []models.ProviderRequestStats
	for rows.Next() {
		var s models.ProviderRequestStats
		err := rows.Scan(
			&s.Provider,
			&s.RequestsLastHour,
			&s.MaxRequestsPerMinute,
			&s.AvgProcessingTimeMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider request stats: %w", err)
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider request stats: %w", err)
	}

	return stats, nil
}

// DeleteOlderThan removes request rows older than the cutoff
func (r *RequestRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM requests WHERE request_timestamp < $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old requests: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	r.logger.Debug("old requests deleted",
		zap.Int64("count", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}
