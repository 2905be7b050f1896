package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gocausal/domain/core"
	"gocausal/internal/modeldef"
	"gocausal/ports"

	"github.com/jmoiron/sqlx"
)

// modelRepository implements the ModelRepository interface
type modelRepository struct {
	db *sqlx.DB
}

// NewModelRepository creates a new causal model repository
func NewModelRepository(db *sqlx.DB) ports.ModelRepository {
	return &modelRepository{db: db}
}

type modelRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Definition []byte    `db:"definition"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row modelRow) record() (*ports.ModelRecord, error) {
	var def modeldef.Definition
	if err := json.Unmarshal(row.Definition, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition of model %s: %w", row.ID, err)
	}
	return &ports.ModelRecord{
		ID:         core.ModelID(row.ID),
		Name:       row.Name,
		Definition: &def,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// Create inserts a new causal model into the database
func (r *modelRepository) Create(ctx context.Context, model *ports.ModelRecord) error {
	definitionJSON, err := json.Marshal(model.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `INSERT INTO causal_models (
		id, name, definition, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5
	)`

	_, err = r.db.ExecContext(ctx, query,
		model.ID, model.Name, definitionJSON, model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create causal model: %w", err)
	}

	return nil
}

// GetByID retrieves a causal model by its ID
func (r *modelRepository) GetByID(ctx context.Context, id core.ModelID) (*ports.ModelRecord, error) {
	query := `SELECT id, name, definition, created_at, updated_at
	FROM causal_models WHERE id = $1`

	var row modelRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, id)
		}
		return nil, fmt.Errorf("failed to get causal model: %w", err)
	}

	return row.record()
}

// List retrieves every causal model, newest first
func (r *modelRepository) List(ctx context.Context) ([]*ports.ModelRecord, error) {
	query := `SELECT id, name, definition, created_at, updated_at
	FROM causal_models
	ORDER BY created_at DESC`

	var rows []modelRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query causal models: %w", err)
	}

	models := make([]*ports.ModelRecord, 0, len(rows))
	for _, row := range rows {
		model, err := row.record()
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}

	return models, nil
}

// Delete removes a causal model and its query history
func (r *modelRepository) Delete(ctx context.Context, id core.ModelID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM causal_models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete causal model: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrModelNotFound, id)
	}

	return nil
}

type impactRow struct {
	ID          string         `db:"id"`
	ModelID     string         `db:"model_id"`
	Query       []byte         `db:"query"`
	Identified  bool           `db:"identified"`
	Latex       sql.NullString `db:"latex"`
	Explanation string         `db:"explanation"`
	CreatedAt   time.Time      `db:"created_at"`
}

// SaveImpact records an evaluated query
func (r *modelRepository) SaveImpact(ctx context.Context, impact *ports.ImpactRecord) error {
	queryJSON, err := json.Marshal(impact.Query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	query := `INSERT INTO impact_results (
		id, model_id, query, identified, latex, explanation, created_at
	) VALUES (
		:id, :model_id, :query, :identified, :latex, :explanation, :created_at
	)`

	row := impactRow{
		ID:          impact.ID.String(),
		ModelID:     impact.ModelID.String(),
		Query:       queryJSON,
		Identified:  impact.Identified,
		Latex:       sql.NullString{String: impact.Latex, Valid: impact.Latex != ""},
		Explanation: impact.Explanation,
		CreatedAt:   impact.CreatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save impact result: %w", err)
	}

	return nil
}

// ListImpacts retrieves the most recent query results of a model
func (r *modelRepository) ListImpacts(ctx context.Context, modelID core.ModelID, limit int) ([]*ports.ImpactRecord, error) {
	query := `SELECT id, model_id, query, identified, latex, explanation, created_at
	FROM impact_results
	WHERE model_id = $1
	ORDER BY created_at DESC
	LIMIT $2`

	var rows []impactRow
	if err := r.db.SelectContext(ctx, &rows, query, modelID, limit); err != nil {
		return nil, fmt.Errorf("failed to query impact results: %w", err)
	}

	impacts := make([]*ports.ImpactRecord, 0, len(rows))
	for _, row := range rows {
		impact := &ports.ImpactRecord{
			ID:          core.ID(row.ID),
			ModelID:     core.ModelID(row.ModelID),
			Identified:  row.Identified,
			Latex:       row.Latex.String,
			Explanation: row.Explanation,
			CreatedAt:   row.CreatedAt,
		}
		if err := json.Unmarshal(row.Query, &impact.Query); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query: %w", err)
		}
		impacts = append(impacts, impact)
	}

	return impacts, nil
}
