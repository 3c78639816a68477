package engine

import (
	"sort"
	"time"

	"gosuperior/domain/core"
	"gosuperior/domain/superior"
	"gosuperior/internal/identity"
	"gosuperior/internal/posterior"

	"github.com/montanaflynn/stats"
	gonumstat "gonum.org/v1/gonum/stat"
)

// assemble packages the reduced matrices with the identity orderings that
// downstream exporters and renderers label them with.
func assemble(idx *identity.Index, acc *posterior.Accessor, spec superior.SelectionSpec, red *reduction) *superior.Result {
	result := &superior.Result{
		RunID:             core.NewRunID(),
		Spec:              spec,
		Samples:           acc.Samples(),
		Genotypes:         idx.GenotypeLabels(),
		Environments:      idx.EnvironmentLabels(),
		Regions:           idx.RegionLabels(),
		EnvironmentRegion: idx.EnvironmentRegionLabels(),
		GxE:               red.gxe,
		GxEStdErr:         red.stdErr,
		GxR:               red.gxr,
		Marginal:          red.marginal,
		MainEffects:       summarizeMainEffects(idx, acc),
		CreatedAt:         time.Now().UTC(),
	}
	result.InputHash = core.ComputeInputHash(
		[][]string{result.Genotypes, result.Environments, result.Regions},
		map[string]interface{}{
			"intensity": spec.Intensity,
			"increase":  spec.Increase,
			"samples":   result.Samples,
		},
	)
	return result
}

func summarizeMainEffects(idx *identity.Index, acc *posterior.Accessor) []superior.EffectSummary {
	out := make([]superior.EffectSummary, idx.NumGenotypes())
	for j, g := range idx.GenotypeLabels() {
		draws := stats.Float64Data(acc.MainDraws(j))
		mean, _ := draws.Mean()

		sorted := append([]float64(nil), draws...)
		sort.Float64s(sorted)
		q05 := gonumstat.Quantile(0.05, gonumstat.Empirical, sorted, nil)
		q95 := gonumstat.Quantile(0.95, gonumstat.Empirical, sorted, nil)

		// A single draw has no sample standard deviation.
		var sd float64
		if len(draws) > 1 {
			sd, _ = draws.StandardDeviationSample()
		}

		out[j] = superior.EffectSummary{Genotype: g, Mean: mean, StdDev: sd, Q05: q05, Q95: q95}
	}
	return out
}
