package engine

import (
	"gosuperior/internal/identity"
	"gosuperior/internal/posterior"
)

// Composer builds the genotype by environment values of one posterior sample:
// g[j] + gl[j,k], plus gm[j, region(k)] when regions are used. Every cell is
// composed, observed or not; masking happens only after selection.
type Composer struct {
	idx *identity.Index
	acc *posterior.Accessor
}

// NewComposer binds a composer to an index and its posterior accessor.
func NewComposer(idx *identity.Index, acc *posterior.Accessor) *Composer {
	return &Composer{idx: idx, acc: acc}
}

// Compose writes sample s into dst, environment-major: the column of
// environment k occupies dst[k*G : (k+1)*G]. dst must hold G*E values.
func (c *Composer) Compose(s int, dst []float64) {
	nG, nE := c.idx.NumGenotypes(), c.idx.NumEnvironments()
	withRegion := c.acc.HasRegions()

	for k := 0; k < nE; k++ {
		column := dst[k*nG : (k+1)*nG]
		region := c.idx.RegionOf(k)
		for j := 0; j < nG; j++ {
			v := c.acc.Main(s, j) + c.acc.GxE(s, j, k)
			if withRegion && region != identity.NoRegion {
				v += c.acc.GxR(s, j, region)
			}
			column[j] = v
		}
	}
}

// Column returns the composed values of environment k from a buffer filled by
// Compose.
func (c *Composer) Column(buf []float64, k int) []float64 {
	nG := c.idx.NumGenotypes()
	return buf[k*nG : (k+1)*nG]
}
