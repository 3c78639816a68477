package ports

import (
	"context"
	"time"

	"gosuperior/domain/core"
	"gosuperior/domain/superior"
)

// ResultRepositoryPort persists estimation results.
type ResultRepositoryPort interface {
	Save(ctx context.Context, result *superior.Result) error
	Get(ctx context.Context, id core.RunID) (*superior.Result, error)
	List(ctx context.Context, limit, offset int) ([]RunSummary, error)
	Delete(ctx context.Context, id core.RunID) error
}

// RunSummary is the listing view of a persisted run.
type RunSummary struct {
	ID           core.RunID `json:"id" db:"id"`
	InputHash    core.Hash  `json:"input_hash" db:"input_hash"`
	Intensity    float64    `json:"intensity" db:"intensity"`
	Increase     bool       `json:"increase" db:"higher_is_better"`
	Samples      int        `json:"samples" db:"samples"`
	Genotypes    int        `json:"genotypes" db:"genotypes"`
	Environments int        `json:"environments" db:"environments"`
	Regions      int        `json:"regions" db:"regions"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
