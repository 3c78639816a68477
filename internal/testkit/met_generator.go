package testkit

import (
	"fmt"
	"math/rand/v2"

	"gosuperior/domain/posterior"
	"gosuperior/domain/trial"

	"gonum.org/v1/gonum/stat/distuv"
)

// MetGeneratorConfig configures the multi-environment trial generator
type MetGeneratorConfig struct {
	Genotypes    int     `json:"genotypes"`
	Environments int     `json:"environments"`
	Regions      int     `json:"regions"` // zero disables the region level
	Replicates   int     `json:"replicates"`
	Samples      int     `json:"samples"`
	MissingRate  float64 `json:"missing_rate"`
	Mean         float64 `json:"mean"`
	GenotypeSD   float64 `json:"genotype_sd"`
	GxESD        float64 `json:"gxe_sd"`
	GxRSD        float64 `json:"gxr_sd"`
	ResidualSD   float64 `json:"residual_sd"`
	PosteriorSD  float64 `json:"posterior_sd"`
	Seed         uint64  `json:"seed"`
}

// DefaultMetConfig returns sensible defaults for trial generation
func DefaultMetConfig() MetGeneratorConfig {
	return MetGeneratorConfig{
		Genotypes:    20,
		Environments: 8,
		Regions:      2,
		Replicates:   2,
		Samples:      500,
		MissingRate:  0.15,
		Mean:         5000,
		GenotypeSD:   300,
		GxESD:        150,
		GxRSD:        80,
		ResidualSD:   250,
		PosteriorSD:  60,
		Seed:         42,
	}
}

// Validate checks the configuration
func (c MetGeneratorConfig) Validate() error {
	switch {
	case c.Genotypes < 1 || c.Environments < 1:
		return fmt.Errorf("need at least one genotype and one environment")
	case c.Regions < 0 || c.Regions > c.Environments:
		return fmt.Errorf("regions must be between 0 and %d", c.Environments)
	case c.Replicates < 1 || c.Samples < 1:
		return fmt.Errorf("replicates and samples must be positive")
	case c.MissingRate < 0 || c.MissingRate >= 1:
		return fmt.Errorf("missing rate must be in [0, 1)")
	case c.GenotypeSD < 0 || c.GxESD < 0 || c.GxRSD < 0 || c.ResidualSD < 0 || c.PosteriorSD < 0:
		return fmt.Errorf("standard deviations must be non-negative")
	}
	return nil
}

// MetTrial is a generated trial with a posterior centred on the true effects
type MetTrial struct {
	Observations []trial.Observation
	Posterior    *posterior.SampleSet
	TrueMain     map[trial.GenotypeID]float64
}

// MetDataGenerator generates synthetic trials and posterior draws
type MetDataGenerator struct {
	config MetGeneratorConfig
	src    rand.Source
}

// NewMetDataGenerator creates a new generator
func NewMetDataGenerator(config MetGeneratorConfig) *MetDataGenerator {
	return &MetDataGenerator{
		config: config,
		src:    rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15),
	}
}

// GenotypeLabel names genotype j
func GenotypeLabel(j int) string { return fmt.Sprintf("G%03d", j+1) }

// EnvironmentLabel names environment k
func EnvironmentLabel(k int) string { return fmt.Sprintf("E%02d", k+1) }

// RegionLabel names region r
func RegionLabel(r int) string { return fmt.Sprintf("R%d", r+1) }

// Generate produces the trial. The first genotype is observed in every
// environment so no environment is empty, and genotype j is always observed
// in environment j mod Environments so no genotype is empty.
func (g *MetDataGenerator) Generate() (*MetTrial, error) {
	cfg := g.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	normal := func(sd float64) distuv.Normal {
		return distuv.Normal{Mu: 0, Sigma: sd, Src: g.src}
	}
	draw := func(d distuv.Normal) float64 {
		if d.Sigma == 0 {
			return d.Mu
		}
		return d.Rand()
	}
	drop := distuv.Bernoulli{P: cfg.MissingRate, Src: g.src}

	gEff := make([]float64, cfg.Genotypes)
	for j := range gEff {
		gEff[j] = draw(normal(cfg.GenotypeSD))
	}
	glEff := make([][]float64, cfg.Genotypes)
	for j := range glEff {
		glEff[j] = make([]float64, cfg.Environments)
		for k := range glEff[j] {
			glEff[j][k] = draw(normal(cfg.GxESD))
		}
	}
	var gmEff [][]float64
	if cfg.Regions > 0 {
		gmEff = make([][]float64, cfg.Genotypes)
		for j := range gmEff {
			gmEff[j] = make([]float64, cfg.Regions)
			for r := range gmEff[j] {
				gmEff[j][r] = draw(normal(cfg.GxRSD))
			}
		}
	}

	out := &MetTrial{TrueMain: make(map[trial.GenotypeID]float64, cfg.Genotypes)}
	residual := normal(cfg.ResidualSD)
	for k := 0; k < cfg.Environments; k++ {
		var region trial.RegionID
		if cfg.Regions > 0 {
			region = trial.RegionID(RegionLabel(k % cfg.Regions))
		}
		for j := 0; j < cfg.Genotypes; j++ {
			kept := j == 0 || j%cfg.Environments == k
			if !kept && cfg.MissingRate > 0 && drop.Rand() == 1 {
				continue
			}
			base := cfg.Mean + gEff[j] + glEff[j][k]
			if gmEff != nil {
				base += gmEff[j][k%cfg.Regions]
			}
			for rep := 0; rep < cfg.Replicates; rep++ {
				out.Observations = append(out.Observations, trial.Observation{
					Genotype:    trial.GenotypeID(GenotypeLabel(j)),
					Environment: trial.EnvironmentID(EnvironmentLabel(k)),
					Region:      region,
					Value:       base + draw(residual),
				})
			}
		}
	}

	set := &posterior.SampleSet{Samples: cfg.Samples}
	column := func(truth float64) []float64 {
		d := distuv.Normal{Mu: truth, Sigma: cfg.PosteriorSD, Src: g.src}
		draws := make([]float64, cfg.Samples)
		for s := range draws {
			draws[s] = draw(d)
		}
		return draws
	}
	for j := 0; j < cfg.Genotypes; j++ {
		id := trial.GenotypeID(GenotypeLabel(j))
		out.TrueMain[id] = gEff[j]
		set.Columns = append(set.Columns, posterior.Column{
			Effect: posterior.EffectMain, Genotype: id, Draws: column(gEff[j]),
		})
		for k := 0; k < cfg.Environments; k++ {
			set.Columns = append(set.Columns, posterior.Column{
				Effect:      posterior.EffectGxE,
				Genotype:    id,
				Environment: trial.EnvironmentID(EnvironmentLabel(k)),
				Draws:       column(glEff[j][k]),
			})
		}
		for r := 0; r < cfg.Regions; r++ {
			set.Columns = append(set.Columns, posterior.Column{
				Effect:   posterior.EffectGxR,
				Genotype: id,
				Region:   trial.RegionID(RegionLabel(r)),
				Draws:    column(gmEff[j][r]),
			})
		}
	}
	out.Posterior = set
	return out, nil
}
