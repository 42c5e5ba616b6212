package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ModelTypeDMN marks stored documents that hold DMN rule sets
const ModelTypeDMN = "dmn"

// StoredModel is a raw decision-model document as kept by the external store
type StoredModel struct {
	ID        string
	Name      string
	XML       string
	Type      string
	Owner     string
	Tenant    string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModelStore is the read interface the loader consumes.
// ListModels returns the DMN documents of one owner within one tenant, excluding soft-deleted ones.
type ModelStore interface {
	ListModels(ctx context.Context, owner, tenant string) ([]StoredModel, error)
}

// ModelRepository extends ModelStore with the management operations used by the HTTP API
type ModelRepository interface {
	ModelStore

	// Add a new model
	Add(ctx context.Context, m *StoredModel) error

	// Get a model by ID within a tenant
	Get(ctx context.Context, tenant, id string) (*StoredModel, error)

	// Update an existing model
	Update(ctx context.Context, m *StoredModel) error

	// Delete soft-deletes a model
	Delete(ctx context.Context, tenant, id string) error
}

// InMemoryModelStore implements ModelRepository using an in-memory map
type InMemoryModelStore struct {
	models map[string]*StoredModel // tenant + "/" + id
	seq    map[string]int          // insertion order
	next   int
	mu     sync.RWMutex
}

// NewInMemoryModelStore creates a new in-memory model store
func NewInMemoryModelStore() *InMemoryModelStore {
	return &InMemoryModelStore{
		models: make(map[string]*StoredModel),
		seq:    make(map[string]int),
	}
}

func modelKey(tenant, id string) string {
	return tenant + "/" + id
}

// Add stores a copy of the model and sets its timestamps
func (s *InMemoryModelStore) Add(_ context.Context, m *StoredModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := modelKey(m.Tenant, m.ID)
	if existing, exists := s.models[key]; exists && !existing.Deleted {
		return fmt.Errorf("model %s: %w", m.ID, ErrModelExists)
	}

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	s.models[key] = &cp
	s.seq[key] = s.next
	s.next++
	return nil
}

// Get returns a copy of a model that has not been deleted
func (s *InMemoryModelStore) Get(_ context.Context, tenant, id string) (*StoredModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.models[modelKey(tenant, id)]
	if !exists || m.Deleted {
		return nil, fmt.Errorf("model %s: %w", id, ErrModelNotFound)
	}
	cp := *m
	return &cp, nil
}

// ListModels returns DMN models of the owner in insertion order
func (s *InMemoryModelStore) ListModels(ctx context.Context, owner, tenant string) ([]StoredModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key, m := range s.models {
		if m.Owner == owner && m.Tenant == tenant && m.Type == ModelTypeDMN && !m.Deleted {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return s.seq[keys[i]] < s.seq[keys[j]] })

	out := make([]StoredModel, len(keys))
	for i, key := range keys {
		out[i] = *s.models[key]
	}
	return out, nil
}

// Update replaces a model, preserving its CreatedAt timestamp
func (s *InMemoryModelStore) Update(_ context.Context, m *StoredModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := modelKey(m.Tenant, m.ID)
	existing, exists := s.models[key]
	if !exists || existing.Deleted {
		return fmt.Errorf("model %s: %w", m.ID, ErrModelNotFound)
	}

	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now()
	cp := *m
	s.models[key] = &cp
	return nil
}

// Delete marks a model as deleted
func (s *InMemoryModelStore) Delete(_ context.Context, tenant, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.models[modelKey(tenant, id)]
	if !exists || m.Deleted {
		return fmt.Errorf("model %s: %w", id, ErrModelNotFound)
	}

	m.Deleted = true
	m.UpdatedAt = time.Now()
	return nil
}
