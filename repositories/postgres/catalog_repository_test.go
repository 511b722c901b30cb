package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &DB{DB: mockDB, logger: zap.NewNop()}, mock
}

func TestCatalogRepository_ListProviders(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())

	providerID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM providers").WillReturnRows(
		sqlmock.NewRows([]string{
			"provider_id", "provider_name", "base_url", "auth_type",
			"max_requests_per_minute", "retry_count", "timeout_seconds",
			"is_active", "created_at",
		}).
			AddRow(providerID.String(), "OpenAI", "https://api.openai.com/v1", "bearer", 60, 3, 30, true, now).
			AddRow(uuid.New().String(), "MockAI", "mock://local", "none", 120, 3, 10, false, now),
	)

	providers, err := repo.ListProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 2)

	assert.Equal(t, providerID, providers[0].ID)
	assert.Equal(t, "OpenAI", providers[0].Name)
	assert.Equal(t, 60, providers[0].MaxRequestsPerMinute)
	assert.True(t, providers[0].IsActive)
	assert.False(t, providers[1].IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepository_ListProviders_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM providers").WillReturnError(sql.ErrConnDone)

	_, err := repo.ListProviders(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepository_ListModels(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())

	modelID := uuid.New()
	providerID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM ai_models").WillReturnRows(
		sqlmock.NewRows([]string{
			"model_id", "provider_id", "model_name", "model_type", "context_window",
			"max_output_tokens", "supports_json_mode", "supports_function_calling",
			"input_price_per_1k", "output_price_per_1k", "is_available", "priority",
			"created_at", "updated_at",
		}).
			AddRow(modelID.String(), providerID.String(), "gpt-4o", "text", 128000,
				4096, true, true, 0.005, 0.015, true, 8, now, now).
			AddRow(uuid.New().String(), providerID.String(), "gpt-4o-mini", "text", 128000,
				nil, false, false, 0.00015, 0.0006, true, 6, now, now),
	)

	found, err := repo.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, modelID, found[0].ID)
	assert.Equal(t, "gpt-4o", found[0].Name)
	assert.Equal(t, 128000, found[0].ContextWindow)
	require.NotNil(t, found[0].MaxOutputTokens)
	assert.Equal(t, 4096, *found[0].MaxOutputTokens)
	assert.Nil(t, found[1].MaxOutputTokens)
	assert.Equal(t, 0.00015, found[1].InputPricePer1K)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepository_GetProviderByName(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())

	t.Run("found", func(t *testing.T) {
		providerID := uuid.New()
		mock.ExpectQuery("WHERE provider_name").WithArgs("OpenAI").WillReturnRows(
			sqlmock.NewRows([]string{
				"provider_id", "provider_name", "base_url", "auth_type",
				"max_requests_per_minute", "retry_count", "timeout_seconds",
				"is_active", "created_at",
			}).AddRow(providerID.String(), "OpenAI", "https://api.openai.com/v1", "bearer", 60, 3, 30, true, time.Now()),
		)

		p, err := repo.GetProviderByName(context.Background(), "OpenAI")
		require.NoError(t, err)
		assert.Equal(t, providerID, p.ID)
		assert.Equal(t, "OpenAI", p.Name)
	})

	t.Run("not found wraps sql.ErrNoRows", func(t *testing.T) {
		mock.ExpectQuery("WHERE provider_name").WithArgs("Missing").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetProviderByName(context.Background(), "Missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepository_UpdateProviderRateLimit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())

	t.Run("updates matching provider", func(t *testing.T) {
		mock.ExpectExec("UPDATE providers").
			WithArgs(120, "OpenAI").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateProviderRateLimit(context.Background(), "OpenAI", 120)
		assert.NoError(t, err)
	})

	t.Run("missing provider wraps sql.ErrNoRows", func(t *testing.T) {
		mock.ExpectExec("UPDATE providers").
			WithArgs(120, "Missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateProviderRateLimit(context.Background(), "Missing", 120)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
