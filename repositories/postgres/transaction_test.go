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

func TestTxManager_InTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when the closure succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE providers").
			WithArgs(120, "OpenAI").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(ctx context.Context) error {
			_, err := GetExecutor(ctx, db).ExecContext(ctx,
				"UPDATE providers SET max_requests_per_minute = $1 WHERE provider_name = $2",
				120, "OpenAI")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the closure fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := tm.InTransaction(ctx, func(ctx context.Context) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := tm.InTransaction(ctx, func(ctx context.Context) error {
			t.Fatal("closure should not run")
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})

	t.Run("commit failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("deadlock detected"))

		err := tm.InTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
	})
}

func TestTxManager_ReadOnly(t *testing.T) {
	ctx := context.Background()

	db, mock := newMockDB(t)
	tm := NewTxManager(db, zap.NewNop())
	repo := NewCatalogRepository(db, zap.NewNop())

	providerID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM providers").WillReturnRows(
		sqlmock.NewRows([]string{
			"provider_id", "provider_name", "base_url", "auth_type",
			"max_requests_per_minute", "retry_count", "timeout_seconds",
			"is_active", "created_at",
		}).AddRow(providerID.String(), "OpenAI", "https://api.openai.com/v1", "bearer", 60, 3, 30, true, now),
	)
	mock.ExpectQuery("FROM ai_models").WillReturnRows(
		sqlmock.NewRows([]string{
			"model_id", "provider_id", "model_name", "model_type", "context_window",
			"max_output_tokens", "supports_json_mode", "supports_function_calling",
			"input_price_per_1k", "output_price_per_1k", "is_available", "priority",
			"created_at", "updated_at",
		}),
	)
	mock.ExpectCommit()

	// Both repository reads run between Begin and Commit
	err := tm.ReadOnly(ctx, func(ctx context.Context) error {
		providers, err := repo.ListProviders(ctx)
		if err != nil {
			return err
		}
		require.Len(t, providers, 1)

		_, err = repo.ListModels(ctx)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("returns pool without transaction", func(t *testing.T) {
		db, _ := newMockDB(t)

		_, ok := GetExecutor(ctx, db).(*sql.DB)
		assert.True(t, ok)
	})

	t.Run("returns transaction inside closure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(ctx context.Context) error {
			_, ok := GetExecutor(ctx, db).(*sql.Tx)
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
	})
}
