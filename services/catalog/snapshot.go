package catalog

import (
	"github.com/google/uuid"

	"github.com/routelab/ai-gateway/models"
)

// Snapshot is an immutable view of the provider and model catalog. Lookups
// never touch the database; a new snapshot replaces the old one wholesale
// on reload, so readers can hold a snapshot across a whole decision without
// seeing partial updates.
type Snapshot struct {
	modelsByName    map[string]*models.ModelConfig
	providersByName map[string]*models.ProviderConfig
	providersByID   map[uuid.UUID]*models.ProviderConfig
	modelList       []*models.ModelConfig
	providerList    []*models.ProviderConfig
}

// NewSnapshot builds a snapshot from catalog rows. Rows are normalized the
// same way the database defaults them, so a snapshot built from partial test
// fixtures behaves like one loaded from a real catalog. When two providers
// expose a model under the same name, the row ordering decides which one the
// by-name lookup returns; both stay in the listing.
func NewSnapshot(providers []*models.ProviderConfig, modelRows []*models.ModelConfig) *Snapshot {
	s := &Snapshot{
		modelsByName:    make(map[string]*models.ModelConfig, len(modelRows)),
		providersByName: make(map[string]*models.ProviderConfig, len(providers)),
		providersByID:   make(map[uuid.UUID]*models.ProviderConfig, len(providers)),
		modelList:       make([]*models.ModelConfig, 0, len(modelRows)),
		providerList:    make([]*models.ProviderConfig, 0, len(providers)),
	}

	for _, p := range providers {
		normalized := normalizeProvider(*p)
		s.providersByName[normalized.Name] = normalized
		s.providersByID[normalized.ID] = normalized
		s.providerList = append(s.providerList, normalized)
	}

	for _, m := range modelRows {
		normalized := normalizeModel(*m)
		s.modelsByName[normalized.Name] = normalized
		s.modelList = append(s.modelList, normalized)
	}

	return s
}

func normalizeProvider(p models.ProviderConfig) *models.ProviderConfig {
	if p.MaxRequestsPerMinute <= 0 {
		p.MaxRequestsPerMinute = models.DefaultMaxRequestsPerMinute
	}
	if p.RetryCount <= 0 {
		p.RetryCount = models.DefaultRetryCount
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = models.DefaultTimeoutSeconds
	}
	if p.AuthType == "" {
		p.AuthType = models.AuthTypeBearer
	}
	return &p
}

func normalizeModel(m models.ModelConfig) *models.ModelConfig {
	if m.ContextWindow <= 0 {
		m.ContextWindow = models.DefaultContextWindow
	}
	if m.ModelType == "" {
		m.ModelType = models.DefaultModelType
	}
	if m.Priority <= 0 {
		m.Priority = models.DefaultPriority
	}
	return &m
}

// Model returns the model with the given name
func (s *Snapshot) Model(name string) (*models.ModelConfig, bool) {
	m, ok := s.modelsByName[name]
	return m, ok
}

// Provider returns the provider with the given name
func (s *Snapshot) Provider(name string) (*models.ProviderConfig, bool) {
	p, ok := s.providersByName[name]
	return p, ok
}

// ProviderForModel returns the provider that serves the given model
func (s *Snapshot) ProviderForModel(m *models.ModelConfig) (*models.ProviderConfig, bool) {
	p, ok := s.providersByID[m.ProviderID]
	return p, ok
}

// Models returns all model rows in catalog order
func (s *Snapshot) Models() []*models.ModelConfig {
	return s.modelList
}

// Providers returns all provider rows in catalog order
func (s *Snapshot) Providers() []*models.ProviderConfig {
	return s.providerList
}

// ModelCount returns the number of model rows
func (s *Snapshot) ModelCount() int {
	return len(s.modelList)
}

// ListModels returns the compact model listing
func (s *Snapshot) ListModels() []models.ModelSummary {
	summaries := make([]models.ModelSummary, 0, len(s.modelList))
	for _, m := range s.modelList {
		providerName := ""
		if p, ok := s.providersByID[m.ProviderID]; ok {
			providerName = p.Name
		}
		summaries = append(summaries, models.ModelSummary{
			Name:          m.Name,
			Provider:      providerName,
			ContextWindow: m.ContextWindow,
			IsAvailable:   m.IsAvailable,
		})
	}
	return summaries
}

// ListProviders returns the compact provider listing
func (s *Snapshot) ListProviders() []models.ProviderSummary {
	modelNames := make(map[uuid.UUID][]string)
	for _, m := range s.modelList {
		modelNames[m.ProviderID] = append(modelNames[m.ProviderID], m.Name)
	}

	summaries := make([]models.ProviderSummary, 0, len(s.providerList))
	for _, p := range s.providerList {
		names := modelNames[p.ID]
		if names == nil {
			names = []string{}
		}
		summaries = append(summaries, models.ProviderSummary{
			Name:       p.Name,
			Models:     names,
			ModelCount: len(names),
			IsActive:   p.IsActive,
		})
	}
	return summaries
}
