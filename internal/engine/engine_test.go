package engine

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"gosuperior/domain/core"
	"gosuperior/domain/posterior"
	"gosuperior/domain/superior"
	"gosuperior/domain/trial"
	"gosuperior/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = internal.NewLoggerTo(io.Discard, internal.LogLevelError)

// scenario describes composed values directly: g is zero and gl carries the
// whole value, so value[s][genotype][env] = composed[s][env][genotype].
type scenario struct {
	genotypes    []string
	environments []string
	regions      map[string]string // environment -> region, nil without regions
	composed     [][][]float64     // [sample][environment][genotype]
	unobserved   map[[2]string]bool
}

func (sc scenario) input(spec superior.SelectionSpec) Input {
	var rows []trial.Observation
	for _, g := range sc.genotypes {
		for _, e := range sc.environments {
			if sc.unobserved[[2]string{g, e}] {
				continue
			}
			rows = append(rows, trial.Observation{
				Genotype:    trial.GenotypeID(g),
				Environment: trial.EnvironmentID(e),
				Region:      trial.RegionID(sc.regions[e]),
				Value:       1,
			})
		}
	}

	set := &posterior.SampleSet{Samples: len(sc.composed)}
	for j, g := range sc.genotypes {
		set.Columns = append(set.Columns, posterior.Column{
			Effect:   posterior.EffectMain,
			Genotype: trial.GenotypeID(g),
			Draws:    make([]float64, len(sc.composed)),
		})
		for k, e := range sc.environments {
			draws := make([]float64, len(sc.composed))
			for s := range sc.composed {
				draws[s] = sc.composed[s][k][j]
			}
			set.Columns = append(set.Columns, posterior.Column{
				Effect:      posterior.EffectGxE,
				Genotype:    trial.GenotypeID(g),
				Environment: trial.EnvironmentID(e),
				Draws:       draws,
			})
		}
		seen := map[string]bool{}
		for _, r := range sc.regions {
			if seen[r] {
				continue
			}
			seen[r] = true
			set.Columns = append(set.Columns, posterior.Column{
				Effect:   posterior.EffectGxR,
				Genotype: trial.GenotypeID(g),
				Region:   trial.RegionID(r),
				Draws:    make([]float64, len(sc.composed)),
			})
		}
	}

	return Input{Observations: rows, Posterior: set, Spec: spec, UseRegion: sc.regions != nil}
}

func threeByTwo() scenario {
	return scenario{
		genotypes:    []string{"A", "B", "C"},
		environments: []string{"E1", "E2"},
		composed: [][][]float64{
			{{5, 3, 1}, {2, 4, 6}},
			{{4, 6, 2}, {1, 5, 3}},
		},
	}
}

func cell(t *testing.T, m *superior.Matrix, row, column string) superior.Cell {
	t.Helper()
	c, ok := m.Lookup(row, column)
	require.True(t, ok, "no cell %s/%s", row, column)
	return c
}

func TestEngine_ConcreteScenario(t *testing.T) {
	spec := superior.SelectionSpec{Intensity: 0.34, Increase: true}
	result, err := New(1, quiet).Run(context.Background(), threeByTwo().input(spec))
	require.NoError(t, err)

	expected := map[[2]string]float64{
		{"A", "E1"}: 1, {"B", "E1"}: 1, {"C", "E1"}: 0,
		{"A", "E2"}: 0, {"B", "E2"}: 1, {"C", "E2"}: 1,
	}
	for key, want := range expected {
		c := cell(t, result.GxE, key[0], key[1])
		assert.True(t, c.Valid)
		assert.InDelta(t, want, c.Value, 1e-12, "%v", key)
	}

	assert.Equal(t, 2, result.Samples)
	assert.Nil(t, result.GxR)
	assert.False(t, result.HasRegions())
	assert.Equal(t, []string{"A", "B", "C"}, result.Genotypes)
	assert.Equal(t, []string{"E1", "E2"}, result.Environments)
	assert.False(t, result.InputHash.IsEmpty())
}

func TestEngine_MasksUnobservedCells(t *testing.T) {
	sc := threeByTwo()
	sc.unobserved = map[[2]string]bool{{"C", "E1"}: true}
	spec := superior.SelectionSpec{Intensity: 0.34, Increase: true}

	result, err := New(2, quiet).Run(context.Background(), sc.input(spec))
	require.NoError(t, err)

	assert.False(t, cell(t, result.GxE, "C", "E1").Valid)
	assert.False(t, cell(t, result.GxEStdErr, "C", "E1").Valid)
	assert.Equal(t, 1, result.GxE.MissingCount())
	// Selection still ranks C in E1, so A and B keep their probabilities.
	assert.Equal(t, 1.0, cell(t, result.GxE, "A", "E1").Value)
	assert.Equal(t, 1.0, cell(t, result.GxE, "C", "E2").Value)
}

func TestEngine_MaskingIgnoresPosteriorValues(t *testing.T) {
	sc := threeByTwo()
	sc.unobserved = map[[2]string]bool{{"A", "E2"}: true}
	for s := range sc.composed {
		sc.composed[s][1][0] = 1e9
	}

	result, err := New(1, quiet).Run(context.Background(), sc.input(superior.SelectionSpec{Intensity: 0.34, Increase: true}))
	require.NoError(t, err)
	assert.False(t, cell(t, result.GxE, "A", "E2").Valid)
}

func randomScenario(rng *rand.Rand, nG, nE, nS int) scenario {
	sc := scenario{unobserved: map[[2]string]bool{}}
	for j := 0; j < nG; j++ {
		sc.genotypes = append(sc.genotypes, string(rune('A'+j)))
	}
	for k := 0; k < nE; k++ {
		sc.environments = append(sc.environments, "E"+string(rune('0'+k)))
	}
	sc.composed = make([][][]float64, nS)
	for s := range sc.composed {
		sc.composed[s] = make([][]float64, nE)
		for k := range sc.composed[s] {
			sc.composed[s][k] = make([]float64, nG)
			for j := range sc.composed[s][k] {
				sc.composed[s][k][j] = rng.NormFloat64()
			}
		}
	}
	for _, g := range sc.genotypes {
		for _, e := range sc.environments {
			if rng.Float64() < 0.25 {
				sc.unobserved[[2]string{g, e}] = true
			}
		}
	}
	return sc
}

func TestEngine_ValueRangeAndWorkerInvariance(t *testing.T) {
	sc := randomScenario(rand.New(rand.NewSource(3)), 9, 5, 101)
	spec := superior.SelectionSpec{Intensity: 0.3, Increase: false}

	serial, err := New(1, quiet).Run(context.Background(), sc.input(spec))
	require.NoError(t, err)
	parallel, err := New(7, quiet).Run(context.Background(), sc.input(spec))
	require.NoError(t, err)

	assert.Equal(t, serial.GxE.Cells, parallel.GxE.Cells)
	assert.Equal(t, serial.Marginal, parallel.Marginal)

	for _, row := range serial.GxE.Cells {
		for _, c := range row {
			if c.Valid {
				assert.GreaterOrEqual(t, c.Value, 0.0)
				assert.LessOrEqual(t, c.Value, 1.0)
			}
		}
	}
	for _, c := range serial.Marginal {
		assert.True(t, c.Valid)
		assert.GreaterOrEqual(t, c.Value, 0.0)
		assert.LessOrEqual(t, c.Value, 1.0)
	}
}

func TestEngine_MonotoneInIntensity(t *testing.T) {
	sc := randomScenario(rand.New(rand.NewSource(5)), 8, 3, 60)
	var previous *superior.Result
	for _, intensity := range []float64{0.1, 0.2, 0.35, 0.5, 0.75, 1} {
		result, err := New(3, quiet).Run(context.Background(), sc.input(superior.SelectionSpec{Intensity: intensity, Increase: true}))
		require.NoError(t, err)
		if previous != nil {
			for j := range result.GxE.Cells {
				for k, c := range result.GxE.Cells[j] {
					if c.Valid {
						assert.GreaterOrEqual(t, c.Value, previous.GxE.Cells[j][k].Value)
					}
				}
			}
		}
		previous = result
	}
	for _, row := range previous.GxE.Cells {
		for _, c := range row {
			if c.Valid {
				assert.Equal(t, 1.0, c.Value)
			}
		}
	}
}

func TestEngine_DirectionSymmetry(t *testing.T) {
	sc := randomScenario(rand.New(rand.NewSource(9)), 6, 4, 40)
	negated := sc
	negated.composed = make([][][]float64, len(sc.composed))
	for s := range sc.composed {
		negated.composed[s] = make([][]float64, len(sc.composed[s]))
		for k := range sc.composed[s] {
			negated.composed[s][k] = make([]float64, len(sc.composed[s][k]))
			for j, v := range sc.composed[s][k] {
				negated.composed[s][k][j] = -v
			}
		}
	}

	up, err := New(2, quiet).Run(context.Background(), sc.input(superior.SelectionSpec{Intensity: 0.5, Increase: true}))
	require.NoError(t, err)
	down, err := New(2, quiet).Run(context.Background(), negated.input(superior.SelectionSpec{Intensity: 0.5, Increase: false}))
	require.NoError(t, err)
	assert.Equal(t, up.GxE.Cells, down.GxE.Cells)
}

func TestEngine_RegionAggregation(t *testing.T) {
	sc := scenario{
		genotypes:    []string{"A", "B", "C"},
		environments: []string{"E1", "E2", "E3"},
		regions:      map[string]string{"E1": "North", "E2": "North", "E3": "South"},
		composed: [][][]float64{
			{{3, 2, 1}, {1, 2, 3}, {1, 3, 2}},
			{{3, 2, 1}, {3, 2, 1}, {1, 3, 2}},
		},
		unobserved: map[[2]string]bool{{"C", "E1"}: true, {"A", "E3"}: true},
	}

	result, err := New(2, quiet).Run(context.Background(), sc.input(superior.SelectionSpec{Intensity: 0.34, Increase: true}))
	require.NoError(t, err)
	require.NotNil(t, result.GxR)
	assert.Equal(t, []string{"North", "South"}, result.Regions)
	assert.Equal(t, "South", result.EnvironmentRegion["E3"])

	// Region cells are the unweighted mean of the non-missing environment cells.
	for _, g := range sc.genotypes {
		for _, region := range result.Regions {
			var sum float64
			var n int
			for _, e := range sc.environments {
				if sc.regions[e] != region {
					continue
				}
				if c := cell(t, result.GxE, g, e); c.Valid {
					sum += c.Value
					n++
				}
			}
			got := cell(t, result.GxR, g, region)
			if n == 0 {
				assert.False(t, got.Valid, "%s/%s", g, region)
				continue
			}
			require.True(t, got.Valid, "%s/%s", g, region)
			assert.InDelta(t, sum/float64(n), got.Value, 1e-12)
		}
	}

	assert.False(t, cell(t, result.GxR, "A", "South").Valid)
	assert.Equal(t, 1.0, cell(t, result.GxR, "C", "South").Value)
	// C is missing in E1 and selected once in E2.
	assert.Equal(t, 0.5, cell(t, result.GxR, "C", "North").Value)
}

func TestEngine_RegionEffectEntersComposition(t *testing.T) {
	sc := scenario{
		genotypes:    []string{"A", "B"},
		environments: []string{"E1"},
		regions:      map[string]string{"E1": "R"},
		composed:     [][][]float64{{{1, 2}}},
	}
	in := sc.input(superior.SelectionSpec{Intensity: 0.5, Increase: true})
	for i := range in.Posterior.Columns {
		c := &in.Posterior.Columns[i]
		if c.Effect == posterior.EffectGxR && c.Genotype == "A" {
			c.Draws[0] = 5
		}
	}

	result, err := New(1, quiet).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cell(t, result.GxE, "A", "E1").Value)
	assert.Equal(t, 0.0, cell(t, result.GxE, "B", "E1").Value)
}

func TestEngine_MarginalUsesMainEffectOnly(t *testing.T) {
	sc := threeByTwo()
	in := sc.input(superior.SelectionSpec{Intensity: 0.34, Increase: true})
	for i := range in.Posterior.Columns {
		c := &in.Posterior.Columns[i]
		if c.Effect == posterior.EffectMain {
			switch c.Genotype {
			case "A":
				c.Draws = []float64{3, 3}
			case "B":
				c.Draws = []float64{2, 0}
			case "C":
				c.Draws = []float64{1, 1}
			}
		}
	}

	result, err := New(1, quiet).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []superior.Cell{superior.Prob(1), superior.Prob(0.5), superior.Prob(0.5)}, result.Marginal)
	require.Len(t, result.MainEffects, 3)
	assert.Equal(t, "A", result.MainEffects[0].Genotype)
	assert.Equal(t, 3.0, result.MainEffects[0].Mean)
	assert.Equal(t, 0.0, result.MainEffects[0].StdDev)
}

func TestEngine_StandardError(t *testing.T) {
	sc := scenario{
		genotypes:    []string{"A", "B"},
		environments: []string{"E1"},
		composed:     [][][]float64{{{1, 0}}, {{0, 1}}, {{1, 0}}, {{0, 1}}},
	}
	result, err := New(2, quiet).Run(context.Background(), sc.input(superior.SelectionSpec{Intensity: 0.5, Increase: true}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, cell(t, result.GxE, "A", "E1").Value)
	assert.InDelta(t, 0.25, cell(t, result.GxEStdErr, "A", "E1").Value, 1e-12)
}

func TestEngine_FailFast(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Input)
		sentinel error
	}{
		{"intensity", func(in *Input) { in.Spec.Intensity = 0 }, core.ErrInvalidIntensity},
		{"dimension", func(in *Input) { in.Posterior.Samples = 3 }, core.ErrDimensionMismatch},
		{"empty", func(in *Input) { in.Observations = nil }, core.ErrEmptyDesign},
		{"mapping", func(in *Input) { in.UseRegion = true }, core.ErrInconsistentMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := threeByTwo().input(superior.SelectionSpec{Intensity: 0.34, Increase: true})
			tt.mutate(&in)
			result, err := New(2, quiet).Run(context.Background(), in)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestEngine_CancelledContextReturnsNoResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(2, quiet).Run(ctx, threeByTwo().input(superior.SelectionSpec{Intensity: 0.34, Increase: true}))
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
}
