package identity

import (
	"math"
	"sort"

	"gosuperior/domain/core"
	"gosuperior/domain/trial"
)

// NoRegion marks an environment that belongs to no region.
const NoRegion = -1

// Index is the identity arena shared by every estimation stage: canonical
// sorted genotype, environment and region lists with integer positions, the
// environment to region map, and the observation counts of the trial design.
type Index struct {
	Genotypes    []trial.GenotypeID
	Environments []trial.EnvironmentID
	Regions      []trial.RegionID // nil when regions are not used

	genotypePos    map[trial.GenotypeID]int
	environmentPos map[trial.EnvironmentID]int
	regionPos      map[trial.RegionID]int

	envRegion []int   // environment index -> region index or NoRegion
	counts    [][]int // counts[genotype][environment]
}

// Build derives the index from raw trial observations. Rows with a NaN trait
// value or an empty genotype/environment label are not counted. When
// useRegion is set, every environment must resolve to exactly one region.
func Build(observations []trial.Observation, useRegion bool) (*Index, error) {
	genotypeSet := make(map[trial.GenotypeID]struct{})
	environmentSet := make(map[trial.EnvironmentID]struct{})
	regionSet := make(map[trial.RegionID]struct{})
	envRegions := make(map[trial.EnvironmentID]map[trial.RegionID]struct{})
	cellCounts := make(map[[2]string]int)

	for _, obs := range observations {
		if obs.Genotype == "" || obs.Environment == "" || math.IsNaN(obs.Value) {
			continue
		}
		genotypeSet[obs.Genotype] = struct{}{}
		environmentSet[obs.Environment] = struct{}{}
		cellCounts[[2]string{string(obs.Genotype), string(obs.Environment)}]++

		if !useRegion {
			continue
		}
		if _, ok := envRegions[obs.Environment]; !ok {
			envRegions[obs.Environment] = make(map[trial.RegionID]struct{})
		}
		if obs.Region != "" {
			regionSet[obs.Region] = struct{}{}
			envRegions[obs.Environment][obs.Region] = struct{}{}
		}
	}

	if len(cellCounts) == 0 {
		return nil, &core.EmptyDesignError{Reason: "no genotype/environment pair has an observation"}
	}

	idx := &Index{
		Genotypes:    sortedKeys(genotypeSet),
		Environments: sortedKeys(environmentSet),
	}
	idx.genotypePos = positions(idx.Genotypes)
	idx.environmentPos = positions(idx.Environments)

	idx.envRegion = make([]int, len(idx.Environments))
	for k := range idx.envRegion {
		idx.envRegion[k] = NoRegion
	}
	if useRegion {
		idx.Regions = sortedKeys(regionSet)
		idx.regionPos = positions(idx.Regions)
		for k, env := range idx.Environments {
			regions := sortedKeys(envRegions[env])
			if len(regions) != 1 {
				names := make([]string, len(regions))
				for i, r := range regions {
					names[i] = string(r)
				}
				return nil, &core.InconsistentMappingError{Environment: string(env), Regions: names}
			}
			idx.envRegion[k] = idx.regionPos[regions[0]]
		}
	}

	idx.counts = make([][]int, len(idx.Genotypes))
	for j, g := range idx.Genotypes {
		idx.counts[j] = make([]int, len(idx.Environments))
		for k, e := range idx.Environments {
			idx.counts[j][k] = cellCounts[[2]string{string(g), string(e)}]
		}
	}

	return idx, nil
}

// NumGenotypes returns the number of genotypes.
func (x *Index) NumGenotypes() int { return len(x.Genotypes) }

// NumEnvironments returns the number of environments.
func (x *Index) NumEnvironments() int { return len(x.Environments) }

// NumRegions returns the number of regions, zero when regions are not used.
func (x *Index) NumRegions() int { return len(x.Regions) }

// HasRegions reports whether the index was built with a region mapping.
func (x *Index) HasRegions() bool { return x.Regions != nil }

// Genotype returns the position of a genotype.
func (x *Index) Genotype(id trial.GenotypeID) (int, bool) {
	j, ok := x.genotypePos[id]
	return j, ok
}

// Environment returns the position of an environment.
func (x *Index) Environment(id trial.EnvironmentID) (int, bool) {
	k, ok := x.environmentPos[id]
	return k, ok
}

// Region returns the position of a region.
func (x *Index) Region(id trial.RegionID) (int, bool) {
	r, ok := x.regionPos[id]
	return r, ok
}

// RegionOf returns the region index of environment k, or NoRegion.
func (x *Index) RegionOf(k int) int {
	return x.envRegion[k]
}

// EnvironmentsIn returns the environment indices that belong to region r, in
// canonical order.
func (x *Index) EnvironmentsIn(r int) []int {
	var out []int
	for k, region := range x.envRegion {
		if region == r {
			out = append(out, k)
		}
	}
	return out
}

// Count returns the number of raw observations of genotype j in environment k.
func (x *Index) Count(j, k int) int {
	return x.counts[j][k]
}

// Observed reports whether genotype j was tested in environment k.
func (x *Index) Observed(j, k int) bool {
	return x.counts[j][k] > 0
}

// GenotypeLabels returns the genotype identities as strings.
func (x *Index) GenotypeLabels() []string { return labels(x.Genotypes) }

// EnvironmentLabels returns the environment identities as strings.
func (x *Index) EnvironmentLabels() []string { return labels(x.Environments) }

// RegionLabels returns the region identities as strings, nil without regions.
func (x *Index) RegionLabels() []string {
	if x.Regions == nil {
		return nil
	}
	return labels(x.Regions)
}

// EnvironmentRegionLabels returns the environment to region map keyed by
// label, nil without regions.
func (x *Index) EnvironmentRegionLabels() map[string]string {
	if !x.HasRegions() {
		return nil
	}
	out := make(map[string]string, len(x.Environments))
	for k, env := range x.Environments {
		out[string(env)] = string(x.Regions[x.envRegion[k]])
	}
	return out
}

func sortedKeys[T ~string](set map[T]struct{}) []T {
	out := make([]T, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

func positions[T comparable](ids []T) map[T]int {
	pos := make(map[T]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return pos
}

func labels[T ~string](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
