package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services"
)

// MockCatalogRepository is a mock implementation of CatalogRepository
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) ListProviders(ctx context.Context) ([]*models.ProviderConfig, error) {
	args := m.Called(ctx)
	if providers := args.Get(0); providers != nil {
		return providers.([]*models.ProviderConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogRepository) ListModels(ctx context.Context) ([]*models.ModelConfig, error) {
	args := m.Called(ctx)
	if modelRows := args.Get(0); modelRows != nil {
		return modelRows.([]*models.ModelConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogRepository) GetProviderByName(ctx context.Context, name string) (*models.ProviderConfig, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*models.ProviderConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogRepository) UpdateProviderRateLimit(ctx context.Context, providerName string, maxRequestsPerMinute int) error {
	args := m.Called(ctx, providerName, maxRequestsPerMinute)
	return args.Error(0)
}

// recordingTx counts transactional scopes and passes closures through
type recordingTx struct {
	readOnly int
	writes   int
}

func (r *recordingTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.writes++
	return fn(ctx)
}

func (r *recordingTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	r.readOnly++
	return fn(ctx)
}

func TestService_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("builds snapshot and stamps credentials", func(t *testing.T) {
		providerID := uuid.New()
		mockRepo := new(MockCatalogRepository)
		mockRepo.On("ListProviders", ctx).Return([]*models.ProviderConfig{
			{ID: providerID, Name: "OpenAI", IsActive: true},
		}, nil)
		mockRepo.On("ListModels", ctx).Return([]*models.ModelConfig{
			{ID: uuid.New(), ProviderID: providerID, Name: "gpt-4o", ContextWindow: 128000},
		}, nil)

		svc := NewService(mockRepo, nil, Credentials{"OpenAI": "sk-test"}, zap.NewNop())
		require.NoError(t, svc.Load(ctx))

		snap := svc.Snapshot()
		assert.Equal(t, 1, snap.ModelCount())

		p, ok := snap.Provider("OpenAI")
		require.True(t, ok)
		assert.Equal(t, "sk-test", p.APIKey)

		mockRepo.AssertExpectations(t)
	})

	t.Run("reads run in one read-only transaction", func(t *testing.T) {
		providerID := uuid.New()
		mockRepo := new(MockCatalogRepository)
		mockRepo.On("ListProviders", ctx).Return([]*models.ProviderConfig{
			{ID: providerID, Name: "OpenAI", IsActive: true},
		}, nil)
		mockRepo.On("ListModels", ctx).Return([]*models.ModelConfig{}, nil)

		tx := &recordingTx{}
		svc := NewService(mockRepo, tx, nil, zap.NewNop())
		require.NoError(t, svc.Load(ctx))

		assert.Equal(t, 1, tx.readOnly)
		assert.Equal(t, 0, tx.writes)
		mockRepo.AssertExpectations(t)
	})

	t.Run("provider query failure keeps previous snapshot", func(t *testing.T) {
		mockRepo := new(MockCatalogRepository)
		mockRepo.On("ListProviders", ctx).Return(nil, errors.New("connection refused"))

		svc := NewService(mockRepo, nil, nil, zap.NewNop())
		before := svc.Snapshot()

		err := svc.Load(ctx)
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
		assert.Same(t, before, svc.Snapshot())
	})

	t.Run("model query failure keeps previous snapshot", func(t *testing.T) {
		mockRepo := new(MockCatalogRepository)
		mockRepo.On("ListProviders", ctx).Return([]*models.ProviderConfig{}, nil)
		mockRepo.On("ListModels", ctx).Return(nil, errors.New("connection refused"))

		svc := NewService(mockRepo, nil, nil, zap.NewNop())
		before := svc.Snapshot()

		err := svc.Load(ctx)
		require.Error(t, err)
		assert.Same(t, before, svc.Snapshot())
	})
}

func TestService_Reload_SwapsSnapshot(t *testing.T) {
	ctx := context.Background()
	providerID := uuid.New()

	mockRepo := new(MockCatalogRepository)
	mockRepo.On("ListProviders", ctx).Return([]*models.ProviderConfig{
		{ID: providerID, Name: "OpenAI", IsActive: true},
	}, nil)
	mockRepo.On("ListModels", ctx).Return([]*models.ModelConfig{
		{ID: uuid.New(), ProviderID: providerID, Name: "gpt-4o", ContextWindow: 128000},
	}, nil).Once()
	mockRepo.On("ListModels", ctx).Return([]*models.ModelConfig{
		{ID: uuid.New(), ProviderID: providerID, Name: "gpt-4o", ContextWindow: 128000},
		{ID: uuid.New(), ProviderID: providerID, Name: "gpt-4o-mini", ContextWindow: 128000},
	}, nil)

	svc := NewService(mockRepo, nil, nil, zap.NewNop())

	require.NoError(t, svc.Load(ctx))
	first := svc.Snapshot()
	assert.Equal(t, 1, first.ModelCount())

	require.NoError(t, svc.Load(ctx))
	second := svc.Snapshot()
	assert.Equal(t, 2, second.ModelCount())

	// Readers holding the first snapshot still see the old view
	assert.Equal(t, 1, first.ModelCount())
}

func TestService_EmptySnapshotBeforeLoad(t *testing.T) {
	svc := NewService(new(MockCatalogRepository), nil, nil, zap.NewNop())

	snap := svc.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.ModelCount())
}
