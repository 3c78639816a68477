package posterior

import "gosuperior/domain/trial"

// Effect names one of the posterior effect families produced by the fitted
// MET model.
type Effect string

const (
	EffectMain Effect = "g"  // genotype main effect
	EffectGxE  Effect = "gl" // genotype by environment interaction
	EffectGxR  Effect = "gm" // genotype by region interaction
)

// Valid reports whether e is a known effect family.
func (e Effect) Valid() bool {
	switch e {
	case EffectMain, EffectGxE, EffectGxR:
		return true
	}
	return false
}

// Column holds every posterior draw of a single effect parameter. The
// parameter is identified by an explicit (genotype, environment, region)
// triple: Environment is set only for gl, Region only for gm.
type Column struct {
	Effect      Effect              `json:"effect"`
	Genotype    trial.GenotypeID    `json:"genotype"`
	Environment trial.EnvironmentID `json:"environment,omitempty"`
	Region      trial.RegionID      `json:"region,omitempty"`
	Draws       []float64           `json:"draws"` // one value per posterior sample
}

// SampleSet is the complete set of posterior draws consumed by one estimation.
// Samples is the declared draw count S; every column must carry exactly S draws.
type SampleSet struct {
	Samples int      `json:"samples"`
	Columns []Column `json:"columns"`
}

// HasEffect reports whether any column of the given effect is present.
func (s *SampleSet) HasEffect(effect Effect) bool {
	for i := range s.Columns {
		if s.Columns[i].Effect == effect {
			return true
		}
	}
	return false
}

// MainDraws returns the main effect draws of a genotype, or nil.
func (s *SampleSet) MainDraws(genotype trial.GenotypeID) []float64 {
	for i := range s.Columns {
		c := &s.Columns[i]
		if c.Effect == EffectMain && c.Genotype == genotype {
			return c.Draws
		}
	}
	return nil
}
