package ports

import (
	"context"
	"time"

	"gocausal/domain/core"
	"gocausal/internal/causal"
	"gocausal/internal/modeldef"
)

// ModelRecord is a stored causal model definition
type ModelRecord struct {
	ID         core.ModelID         `json:"id" db:"id"`
	Name       string               `json:"name" db:"name"`
	Definition *modeldef.Definition `json:"definition" db:"-"`
	CreatedAt  time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at" db:"updated_at"`
}

// ImpactRecord is one evaluated query kept for the history of a model
type ImpactRecord struct {
	ID          core.ID      `json:"id" db:"id"`
	ModelID     core.ModelID `json:"model_id" db:"model_id"`
	Query       causal.Query `json:"query" db:"-"`
	Identified  bool         `json:"identified" db:"identified"`
	Latex       string       `json:"latex,omitempty" db:"latex"`
	Explanation string       `json:"explanation" db:"explanation"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// ModelRepository defines the interface for causal model storage operations.
// Lookups of a missing model return an error wrapping core.ErrModelNotFound.
type ModelRepository interface {
	// Core CRUD operations
	Create(ctx context.Context, model *ModelRecord) error
	GetByID(ctx context.Context, id core.ModelID) (*ModelRecord, error)
	List(ctx context.Context) ([]*ModelRecord, error)
	Delete(ctx context.Context, id core.ModelID) error

	// Query history
	SaveImpact(ctx context.Context, impact *ImpactRecord) error
	ListImpacts(ctx context.Context, modelID core.ModelID, limit int) ([]*ImpactRecord, error)
}
