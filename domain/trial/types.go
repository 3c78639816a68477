package trial

// Identities of the three trial factors. They are plain labels taken from the
// raw trial data; ordering and integer indices live in internal/identity.
type (
	GenotypeID    string
	EnvironmentID string
	RegionID      string
)

// Observation is one raw trial row after missing trait values were dropped.
type Observation struct {
	Genotype    GenotypeID    `json:"genotype"`
	Environment EnvironmentID `json:"environment"`
	Region      RegionID      `json:"region,omitempty"` // empty when no region column was read
	Value       float64       `json:"value"`
}

// Columns names the raw data columns that carry each factor.
type Columns struct {
	Genotype    string `json:"genotype"`
	Environment string `json:"environment"`
	Region      string `json:"region,omitempty"` // empty disables region analysis
	Trait       string `json:"trait"`
}

// UsesRegion reports whether a region column was named.
func (c Columns) UsesRegion() bool {
	return c.Region != ""
}
