package engine

import (
	"math"

	"gosuperior/domain/superior"
	"gosuperior/internal/identity"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// tally is one worker's private indicator sum. Workers never touch each
// other's tallies; they are merged once every sample has been folded.
type tally struct {
	gxe      *mat.Dense // genotypes x environments, count of samples selected
	marginal []float64  // per genotype, count of samples selected on g alone
	samples  int
}

func newTally(nG, nE int) *tally {
	return &tally{
		gxe:      mat.NewDense(nG, nE, nil),
		marginal: make([]float64, nG),
	}
}

// addColumn folds the indicator of environment k.
func (t *tally) addColumn(k int, indicator []bool) {
	raw := t.gxe.RawMatrix()
	for j, selected := range indicator {
		if selected {
			raw.Data[j*raw.Stride+k]++
		}
	}
}

func (t *tally) addMarginal(indicator []bool) {
	for j, selected := range indicator {
		if selected {
			t.marginal[j]++
		}
	}
}

// merge sums tallies in order. Summation of integer counts is exact, so the
// result does not depend on how samples were split across workers.
func merge(parts []*tally) *tally {
	nG, nE := parts[0].gxe.Dims()
	total := newTally(nG, nE)
	for _, p := range parts {
		total.gxe.Add(total.gxe, p.gxe)
		floats.Add(total.marginal, p.marginal)
		total.samples += p.samples
	}
	return total
}

// reduction is the output of the probability reducer.
type reduction struct {
	gxe      *superior.Matrix
	stdErr   *superior.Matrix
	gxr      *superior.Matrix
	marginal []superior.Cell
}

// reduce turns merged counts into masked probabilities. Cells with no raw
// observation are missing, never zero. Region cells average the non-missing
// environment cells of the region and are missing only if all of them are.
func reduce(idx *identity.Index, t *tally) *reduction {
	nG, nE := t.gxe.Dims()
	s := float64(t.samples)

	var probs mat.Dense
	probs.Scale(1/s, t.gxe)

	out := &reduction{
		gxe:    superior.NewMatrix(idx.GenotypeLabels(), idx.EnvironmentLabels()),
		stdErr: superior.NewMatrix(idx.GenotypeLabels(), idx.EnvironmentLabels()),
	}
	for j := 0; j < nG; j++ {
		for k := 0; k < nE; k++ {
			if !idx.Observed(j, k) {
				continue
			}
			p := clamp01(probs.At(j, k))
			out.gxe.Set(j, k, p)
			out.stdErr.Set(j, k, math.Sqrt(p*(1-p)/s))
		}
	}

	marginal := make([]float64, nG)
	floats.ScaleTo(marginal, 1/s, t.marginal)
	out.marginal = make([]superior.Cell, nG)
	for j, p := range marginal {
		out.marginal[j] = superior.Prob(clamp01(p))
	}

	if idx.HasRegions() {
		out.gxr = aggregateRegions(idx, out.gxe)
	}
	return out
}

func aggregateRegions(idx *identity.Index, gxe *superior.Matrix) *superior.Matrix {
	gxr := superior.NewMatrix(idx.GenotypeLabels(), idx.RegionLabels())
	for r := 0; r < idx.NumRegions(); r++ {
		envs := idx.EnvironmentsIn(r)
		for j := 0; j < idx.NumGenotypes(); j++ {
			var present []float64
			for _, k := range envs {
				if c := gxe.At(j, k); c.Valid {
					present = append(present, c.Value)
				}
			}
			if len(present) == 0 {
				continue
			}
			mean, err := stats.Mean(present)
			if err != nil {
				continue
			}
			gxr.Set(j, r, clamp01(mean))
		}
	}
	return gxr
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
