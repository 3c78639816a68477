package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"gosuperior/domain/core"
	"gosuperior/domain/superior"
	"gosuperior/ports"

	"github.com/jmoiron/sqlx"
)

// Cell scopes stored in superior_cells.
const (
	ScopeEnvironment = "environment"
	ScopeRegion      = "region"
	ScopeMarginal    = "marginal"
)

// cellRow is one probability cell in long form, so external tools can query
// results without decoding the run payload.
type cellRow struct {
	RunID       string          `db:"run_id"`
	Scope       string          `db:"scope"`
	Genotype    string          `db:"genotype"`
	Level       string          `db:"level"`
	Probability sql.NullFloat64 `db:"probability"`
	StdErr      sql.NullFloat64 `db:"std_err"`
}

// ResultRepository stores estimation results in PostgreSQL
type ResultRepository struct {
	db *sqlx.DB
}

var _ ports.ResultRepositoryPort = (*ResultRepository)(nil)

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save stores the run and its cells in one transaction
func (r *ResultRepository) Save(ctx context.Context, result *superior.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO superior_runs (
			id, input_hash, intensity, higher_is_better, samples,
			genotypes, environments, regions, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.RunID.String(),
		result.InputHash.String(),
		result.Spec.Intensity,
		result.Spec.Increase,
		result.Samples,
		len(result.Genotypes),
		len(result.Environments),
		len(result.Regions),
		payload,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	rows := cellRows(result)
	for _, batch := range cellBatches(rows, cellBatchSize) {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO superior_cells (run_id, scope, genotype, level, probability, std_err)
			VALUES (:run_id, :scope, :genotype, :level, :probability, :std_err)`, batch)
		if err != nil {
			return fmt.Errorf("failed to insert cells: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	log.Printf("[ResultRepository] Saved run %s (%d cells)", result.RunID, len(rows))
	return nil
}

// Get loads a run by ID
func (r *ResultRepository) Get(ctx context.Context, id core.RunID) (*superior.Result, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM superior_runs WHERE id = $1`, id.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result superior.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run payload: %w", err)
	}
	return &result, nil
}

// List returns run summaries, newest first
func (r *ResultRepository) List(ctx context.Context, limit, offset int) ([]ports.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []ports.RunSummary
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, input_hash, intensity, higher_is_better, samples,
			   genotypes, environments, regions, created_at
		FROM superior_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run and, by cascade, its cells
func (r *ResultRepository) Delete(ctx context.Context, id core.RunID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM superior_runs WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return nil
}

// cellRows flattens every matrix of a result. Missing cells are stored with a
// NULL probability.
func cellRows(result *superior.Result) []cellRow {
	var rows []cellRow
	runID := result.RunID.String()

	if result.GxE != nil {
		for i, g := range result.GxE.Rows {
			for k, env := range result.GxE.Columns {
				row := cellRow{RunID: runID, Scope: ScopeEnvironment, Genotype: g, Level: env}
				row.Probability = nullFloat(result.GxE.At(i, k))
				if result.GxEStdErr != nil {
					row.StdErr = nullFloat(result.GxEStdErr.At(i, k))
				}
				rows = append(rows, row)
			}
		}
	}

	if result.GxR != nil {
		for i, g := range result.GxR.Rows {
			for r, region := range result.GxR.Columns {
				rows = append(rows, cellRow{
					RunID:       runID,
					Scope:       ScopeRegion,
					Genotype:    g,
					Level:       region,
					Probability: nullFloat(result.GxR.At(i, r)),
				})
			}
		}
	}

	for j, c := range result.Marginal {
		if j >= len(result.Genotypes) {
			break
		}
		rows = append(rows, cellRow{
			RunID:       runID,
			Scope:       ScopeMarginal,
			Genotype:    result.Genotypes[j],
			Level:       "",
			Probability: nullFloat(c),
		})
	}

	return rows
}

// cellBatchSize keeps one multi-row insert under the 65535 bind parameter
// limit of the Postgres protocol (6 parameters per cell).
const cellBatchSize = 10000

// cellBatches splits rows into consecutive slices of at most size rows.
func cellBatches(rows []cellRow, size int) [][]cellRow {
	if size <= 0 {
		size = cellBatchSize
	}
	var batches [][]cellRow
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batches = append(batches, rows[start:end])
	}
	return batches
}

func nullFloat(c superior.Cell) sql.NullFloat64 {
	return sql.NullFloat64{Float64: c.Value, Valid: c.Valid}
}
