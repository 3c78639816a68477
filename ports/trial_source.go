package ports

import (
	"context"

	"gosuperior/domain/posterior"
	"gosuperior/domain/trial"
)

// ObservationSourcePort reads raw trial observations. Rows whose trait value
// is missing are dropped before they are returned.
type ObservationSourcePort interface {
	ReadObservations(ctx context.Context, columns trial.Columns) ([]trial.Observation, error)
}

// PosteriorSourcePort reads the posterior draws produced by the external model
// fit.
type PosteriorSourcePort interface {
	ReadPosterior(ctx context.Context) (*posterior.SampleSet, error)
}
