package engine_test

import (
	"context"
	"io"
	"testing"

	"gosuperior/domain/superior"
	"gosuperior/domain/trial"
	"gosuperior/internal"
	"gosuperior/internal/engine"
	"gosuperior/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_SimulatedTrialRecoversBestGenotype(t *testing.T) {
	cfg := testkit.DefaultMetConfig()
	cfg.Genotypes = 10
	cfg.Environments = 6
	cfg.Regions = 2
	cfg.Samples = 200
	cfg.GenotypeSD = 1000
	cfg.GxESD = 0
	cfg.GxRSD = 0
	cfg.PosteriorSD = 1
	out, err := testkit.NewMetDataGenerator(cfg).Generate()
	require.NoError(t, err)

	var best trial.GenotypeID
	for id, v := range out.TrueMain {
		if best == "" || v > out.TrueMain[best] {
			best = id
		}
	}

	eng := engine.New(4, internal.NewLoggerTo(io.Discard, internal.LogLevelError))
	result, err := eng.Run(context.Background(), engine.Input{
		Observations: out.Observations,
		Posterior:    out.Posterior,
		Spec:         superior.SelectionSpec{Intensity: 0.1, Increase: true},
		UseRegion:    true,
	})
	require.NoError(t, err)
	require.Len(t, result.Genotypes, cfg.Genotypes)
	require.Len(t, result.Regions, cfg.Regions)

	row := -1
	for j, g := range result.Genotypes {
		if g == string(best) {
			row = j
		}
	}
	require.GreaterOrEqual(t, row, 0)

	assert.Equal(t, superior.Prob(1), result.Marginal[row])
	for k := range result.Environments {
		c := result.GxE.At(row, k)
		if c.Valid {
			assert.Equal(t, 1.0, c.Value, "environment %s", result.Environments[k])
		}
	}
	for r := range result.Regions {
		if c := result.GxR.At(row, r); c.Valid {
			assert.Equal(t, 1.0, c.Value, "region %s", result.Regions[r])
		}
	}

	for _, s := range result.MainEffects {
		assert.InDelta(t, out.TrueMain[trial.GenotypeID(s.Genotype)], s.Mean, 1)
		assert.LessOrEqual(t, s.Q05, s.Q95)
	}
}
