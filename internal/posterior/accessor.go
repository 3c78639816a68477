package posterior

import (
	"math"

	"gosuperior/domain/core"
	domain "gosuperior/domain/posterior"
	"gosuperior/internal/identity"
)

// Accessor is the indexed, read-only view of a posterior sample set. Draws are
// stored sample-major in flat slices so one sample's slice is contiguous.
type Accessor struct {
	samples   int
	genotypes int
	envs      int
	regions   int

	main []float64 // [s][j]
	gxe  []float64 // [s][j][k]
	gxr  []float64 // [s][j][r], nil without regions
}

// NewAccessor indexes the sample set against the identity index. Columns for
// identities the index does not know are ignored; every parameter the index
// needs must be present exactly once with exactly set.Samples finite draws.
func NewAccessor(idx *identity.Index, set *domain.SampleSet) (*Accessor, error) {
	if set == nil || set.Samples < 1 {
		n := 0
		if set != nil {
			n = set.Samples
		}
		return nil, core.NewDimensionMismatch(string(domain.EffectMain), "declared sample count %d, need at least 1", n)
	}

	a := &Accessor{
		samples:   set.Samples,
		genotypes: idx.NumGenotypes(),
		envs:      idx.NumEnvironments(),
		regions:   idx.NumRegions(),
	}
	a.main = make([]float64, a.samples*a.genotypes)
	a.gxe = make([]float64, a.samples*a.genotypes*a.envs)
	if idx.HasRegions() {
		a.gxr = make([]float64, a.samples*a.genotypes*a.regions)
	}

	seenMain := make([]bool, a.genotypes)
	seenGxE := make([]bool, a.genotypes*a.envs)
	seenGxR := make([]bool, a.genotypes*a.regions)

	for i := range set.Columns {
		col := &set.Columns[i]
		if !col.Effect.Valid() {
			return nil, core.NewDimensionMismatch(string(col.Effect), "unknown effect family")
		}
		j, ok := idx.Genotype(col.Genotype)
		if !ok {
			continue
		}

		switch col.Effect {
		case domain.EffectMain:
			if err := checkDraws(col, set.Samples, seenMain[j]); err != nil {
				return nil, err
			}
			seenMain[j] = true
			for s, v := range col.Draws {
				a.main[s*a.genotypes+j] = v
			}

		case domain.EffectGxE:
			k, ok := idx.Environment(col.Environment)
			if !ok {
				continue
			}
			cell := j*a.envs + k
			if err := checkDraws(col, set.Samples, seenGxE[cell]); err != nil {
				return nil, err
			}
			seenGxE[cell] = true
			for s, v := range col.Draws {
				a.gxe[s*a.genotypes*a.envs+cell] = v
			}

		case domain.EffectGxR:
			if !idx.HasRegions() {
				continue
			}
			r, ok := idx.Region(col.Region)
			if !ok {
				continue
			}
			cell := j*a.regions + r
			if err := checkDraws(col, set.Samples, seenGxR[cell]); err != nil {
				return nil, err
			}
			seenGxR[cell] = true
			for s, v := range col.Draws {
				a.gxr[s*a.genotypes*a.regions+cell] = v
			}
		}
	}

	for j, ok := range seenMain {
		if !ok {
			return nil, core.NewDimensionMismatch(string(domain.EffectMain), "no posterior column for genotype %q", idx.Genotypes[j])
		}
	}
	for cell, ok := range seenGxE {
		if !ok {
			j, k := cell/a.envs, cell%a.envs
			return nil, core.NewDimensionMismatch(string(domain.EffectGxE), "no posterior column for genotype %q in environment %q",
				idx.Genotypes[j], idx.Environments[k])
		}
	}
	for cell, ok := range seenGxR {
		if !ok {
			j, r := cell/a.regions, cell%a.regions
			return nil, core.NewDimensionMismatch(string(domain.EffectGxR), "no posterior column for genotype %q in region %q",
				idx.Genotypes[j], idx.Regions[r])
		}
	}

	return a, nil
}

func checkDraws(col *domain.Column, samples int, seen bool) error {
	effect := string(col.Effect)
	if seen {
		return core.NewDimensionMismatch(effect, "duplicate posterior column %s", describe(col))
	}
	if len(col.Draws) != samples {
		return core.NewDimensionMismatch(effect, "column %s has %d draws, declared %d", describe(col), len(col.Draws), samples)
	}
	for s, v := range col.Draws {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewDimensionMismatch(effect, "column %s has non-finite draw at sample %d", describe(col), s)
		}
	}
	return nil
}

func describe(col *domain.Column) string {
	switch col.Effect {
	case domain.EffectGxE:
		return string(col.Genotype) + "/" + string(col.Environment)
	case domain.EffectGxR:
		return string(col.Genotype) + "/" + string(col.Region)
	}
	return string(col.Genotype)
}

// Samples returns the number of posterior draws S.
func (a *Accessor) Samples() int { return a.samples }

// HasRegions reports whether genotype by region draws are indexed.
func (a *Accessor) HasRegions() bool { return a.gxr != nil }

// Main returns g[s][j].
func (a *Accessor) Main(s, j int) float64 {
	return a.main[s*a.genotypes+j]
}

// GxE returns gl[s][(j, k)].
func (a *Accessor) GxE(s, j, k int) float64 {
	return a.gxe[(s*a.genotypes+j)*a.envs+k]
}

// GxR returns gm[s][(j, r)].
func (a *Accessor) GxR(s, j, r int) float64 {
	return a.gxr[(s*a.genotypes+j)*a.regions+r]
}

// MainSample returns the main effects of every genotype in sample s. The
// returned slice aliases internal storage and must not be modified.
func (a *Accessor) MainSample(s int) []float64 {
	return a.main[s*a.genotypes : (s+1)*a.genotypes]
}

// MainDraws copies the S main effect draws of genotype j.
func (a *Accessor) MainDraws(j int) []float64 {
	out := make([]float64, a.samples)
	for s := range out {
		out[s] = a.Main(s, j)
	}
	return out
}
