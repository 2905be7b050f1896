// Package memory keeps causal models in process memory. It backs the
// server when no DATABASE_URL is configured and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gocausal/domain/core"
	"gocausal/ports"
)

type modelRepository struct {
	mu      sync.RWMutex
	models  map[core.ModelID]*ports.ModelRecord
	impacts map[core.ModelID][]*ports.ImpactRecord
}

// NewModelRepository creates an empty in-memory model repository
func NewModelRepository() ports.ModelRepository {
	return &modelRepository{
		models:  make(map[core.ModelID]*ports.ModelRecord),
		impacts: make(map[core.ModelID][]*ports.ImpactRecord),
	}
}

func (r *modelRepository) Create(ctx context.Context, model *ports.ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[model.ID]; ok {
		return fmt.Errorf("causal model %s already exists", model.ID)
	}
	stored := *model
	r.models[model.ID] = &stored
	return nil
}

func (r *modelRepository) GetByID(ctx context.Context, id core.ModelID) (*ports.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, id)
	}
	out := *model
	return &out, nil
}

// List returns models newest first, like the postgres repository
func (r *modelRepository) List(ctx context.Context) ([]*ports.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*ports.ModelRecord, 0, len(r.models))
	for _, model := range r.models {
		out := *model
		models = append(models, &out)
	}
	sort.Slice(models, func(i, j int) bool {
		if !models[i].CreatedAt.Equal(models[j].CreatedAt) {
			return models[i].CreatedAt.After(models[j].CreatedAt)
		}
		return models[i].ID > models[j].ID
	})
	return models, nil
}

func (r *modelRepository) Delete(ctx context.Context, id core.ModelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrModelNotFound, id)
	}
	delete(r.models, id)
	delete(r.impacts, id)
	return nil
}

func (r *modelRepository) SaveImpact(ctx context.Context, impact *ports.ImpactRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[impact.ModelID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrModelNotFound, impact.ModelID)
	}
	stored := *impact
	r.impacts[impact.ModelID] = append(r.impacts[impact.ModelID], &stored)
	return nil
}

// ListImpacts returns at most limit results, newest first. A non-positive
// limit returns everything.
func (r *modelRepository) ListImpacts(ctx context.Context, modelID core.ModelID, limit int) ([]*ports.ImpactRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.models[modelID]; !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, modelID)
	}
	stored := r.impacts[modelID]
	impacts := make([]*ports.ImpactRecord, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if limit > 0 && len(impacts) == limit {
			break
		}
		out := *stored[i]
		impacts = append(impacts, &out)
	}
	return impacts, nil
}
