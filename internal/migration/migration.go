package migration

import (
	"context"

	"gocausal/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createCausalModelsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create causal_models table")
	}

	if err := r.createImpactResultsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create impact_results table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createCausalModelsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS causal_models (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			definition JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createImpactResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS impact_results (
			id UUID PRIMARY KEY,
			model_id UUID NOT NULL REFERENCES causal_models(id) ON DELETE CASCADE,
			query JSONB NOT NULL,
			identified BOOLEAN NOT NULL,
			latex TEXT,
			explanation TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_causal_models_name ON causal_models(name)`,
		`CREATE INDEX IF NOT EXISTS idx_causal_models_created_at ON causal_models(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_impact_results_model_id ON impact_results(model_id, created_at DESC)`,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return err
		}
	}

	return nil
}
