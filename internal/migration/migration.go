package migration

import (
	"context"

	"gosuperior/internal/errors"

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

// Statements returns the DDL executed by Run, in order.
func (r *MigrationRunner) Statements() []string {
	return []string{superiorRunsDDL, superiorCellsDDL, indexesDDL}
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSuperiorRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create superior_runs table", err)
	}

	if err := r.createSuperiorCellsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create superior_cells table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

const superiorRunsDDL = `
		CREATE TABLE IF NOT EXISTS superior_runs (
			id UUID PRIMARY KEY,
			input_hash VARCHAR(64) NOT NULL,
			intensity DOUBLE PRECISION NOT NULL CHECK (intensity > 0 AND intensity <= 1),
			higher_is_better BOOLEAN NOT NULL DEFAULT true,
			samples INTEGER NOT NULL CHECK (samples > 0),
			genotypes INTEGER NOT NULL,
			environments INTEGER NOT NULL,
			regions INTEGER NOT NULL DEFAULT 0,
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`

// probability is NULL for cells that were never observed.
const superiorCellsDDL = `
		CREATE TABLE IF NOT EXISTS superior_cells (
			run_id UUID NOT NULL REFERENCES superior_runs(id) ON DELETE CASCADE,
			scope VARCHAR(16) NOT NULL CHECK (scope IN ('environment', 'region', 'marginal')),
			genotype TEXT NOT NULL,
			level TEXT NOT NULL DEFAULT '',
			probability DOUBLE PRECISION CHECK (probability >= 0 AND probability <= 1),
			std_err DOUBLE PRECISION,
			PRIMARY KEY (run_id, scope, genotype, level)
		)
	`

const indexesDDL = `
		CREATE INDEX IF NOT EXISTS idx_superior_runs_created_at ON superior_runs(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_superior_runs_input_hash ON superior_runs(input_hash);
		CREATE INDEX IF NOT EXISTS idx_superior_cells_genotype ON superior_cells(genotype);
	`

func (r *MigrationRunner) createSuperiorRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, superiorRunsDDL)
	return err
}

func (r *MigrationRunner) createSuperiorCellsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, superiorCellsDDL)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, indexesDDL)
	return err
}
