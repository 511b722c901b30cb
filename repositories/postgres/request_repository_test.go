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

	"github.com/routelab/ai-gateway/models"
)

func TestRequestRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	rec := models.NewRequestRecord(uuid.New(), "hello")
	temp := 0.7
	rec.SetParameters(&temp, nil)

	mock.ExpectExec("INSERT INTO requests").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_Create_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO requests").WillReturnError(sql.ErrConnDone)

	err := repo.Create(context.Background(), models.NewRequestRecord(uuid.New(), "hello"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_UpdateOutcome(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	t.Run("updates pending row", func(t *testing.T) {
		rec := models.NewRequestRecord(uuid.New(), "hello")
		rec.MarkCompleted(100, 50, 0.001, 420)

		mock.ExpectExec("UPDATE requests").
			WithArgs(models.RequestStatusCompleted, rec.ModelID, 100, 50, 0.001, int64(420), nil, *rec.CompletedAt, rec.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateOutcome(context.Background(), rec)
		assert.NoError(t, err)
	})

	t.Run("missing row wraps sql.ErrNoRows", func(t *testing.T) {
		rec := models.NewRequestRecord(uuid.New(), "hello")
		rec.MarkFailed("connection refused", 100)

		mock.ExpectExec("UPDATE requests").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateOutcome(context.Background(), rec)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	t.Run("found", func(t *testing.T) {
		id := uuid.New()
		modelID := uuid.New()
		now := time.Now()

		mock.ExpectQuery("FROM requests").WithArgs(id).WillReturnRows(
			sqlmock.NewRows([]string{
				"request_id", "user_id", "model_id", "prompt_hash", "input_text",
				"input_tokens", "output_tokens", "total_cost", "temperature", "max_tokens",
				"status", "error_message", "request_timestamp", "completed_at",
				"processing_time_ms", "client_ip", "user_agent", "endpoint_called",
			}).AddRow(
				id.String(), nil, modelID.String(), models.HashPrompt("hi"), "hi",
				12, 30, 0.0005, 0.7, nil,
				"completed", nil, now, now,
				350, "10.0.0.1", "curl/8.0", "/api/v1/chat/completions",
			),
		)

		rec, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, modelID, rec.ModelID)
		assert.Equal(t, models.RequestStatusCompleted, rec.Status)
		require.NotNil(t, rec.InputTokens)
		assert.Equal(t, 12, *rec.InputTokens)
		require.NotNil(t, rec.ProcessingTimeMs)
		assert.Equal(t, int64(350), *rec.ProcessingTimeMs)
	})

	t.Run("not found wraps sql.ErrNoRows", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery("FROM requests").WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CountByProvider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery("LEFT JOIN ai_models").WithArgs(since).WillReturnRows(
		sqlmock.NewRows([]string{"provider_name", "request_count", "max_requests_per_minute"}).
			AddRow("OpenAI", 45, 60).
			AddRow("MockAI", 0, 120),
	)

	counts, err := repo.CountByProvider(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, counts, 2)

	assert.Equal(t, "OpenAI", counts[0].Provider)
	assert.Equal(t, 45, counts[0].RequestsLastHour)
	assert.Equal(t, 60, counts[0].MaxRequestsPerMinute)

	// Idle providers still appear with a zero count
	assert.Equal(t, "MockAI", counts[1].Provider)
	assert.Equal(t, 0, counts[1].RequestsLastHour)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_StatsByProvider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery("AVG").WithArgs(since).WillReturnRows(
		sqlmock.NewRows([]string{
			"provider_name", "request_count", "max_requests_per_minute", "avg_processing_time_ms",
		}).
			AddRow("OpenAI", 45, 60, 512.5).
			AddRow("MockAI", 0, 120, 0.0),
	)

	stats, err := repo.StatsByProvider(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "OpenAI", stats[0].Provider)
	assert.Equal(t, 512.5, stats[0].AvgProcessingTimeMs)
	assert.Equal(t, 0.0, stats[1].AvgProcessingTimeMs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_DeleteOlderThan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db, zap.NewNop())

	cutoff := time.Now().AddDate(0, 0, -30)

	mock.ExpectExec("DELETE FROM requests").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1234))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
