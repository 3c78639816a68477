package superior

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"gosuperior/domain/core"
)

// SelectionSpec controls which genotypes count as superior in one sample.
type SelectionSpec struct {
	Intensity float64 `json:"intensity"` // fraction of genotypes retained, in (0, 1]
	Increase  bool    `json:"increase"`  // true when higher trait values are better
}

// Validate rejects intensities outside (0, 1].
func (s SelectionSpec) Validate() error {
	if math.IsNaN(s.Intensity) || s.Intensity <= 0 || s.Intensity > 1 {
		return &core.InvalidIntensityError{Intensity: s.Intensity}
	}
	return nil
}

// SelectedCount returns k = ceil(Intensity * n) clamped to [1, n]. The product
// is rounded to 1e-9 first so that e.g. 0.3*10 selects 3 genotypes, not 4.
func (s SelectionSpec) SelectedCount(n int) int {
	if n <= 0 {
		return 0
	}
	product := math.Round(s.Intensity*float64(n)*1e9) / 1e9
	k := int(math.Ceil(product))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// Cell is one matrix entry: a probability or a missing marker.
type Cell struct {
	Value float64
	Valid bool
}

// Missing is the masked cell.
var Missing = Cell{}

// Prob builds a valid cell.
func Prob(v float64) Cell { return Cell{Value: v, Valid: true} }

// MarshalJSON encodes missing cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(c.Value, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Missing
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid probability cell %s: %w", data, err)
	}
	*c = Prob(v)
	return nil
}

// Matrix is a labelled genotype by environment (or region) table.
type Matrix struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Cells   [][]Cell `json:"cells"` // Cells[row][column]
}

// NewMatrix returns a matrix with every cell missing.
func NewMatrix(rows, columns []string) *Matrix {
	cells := make([][]Cell, len(rows))
	for i := range cells {
		cells[i] = make([]Cell, len(columns))
	}
	return &Matrix{Rows: rows, Columns: columns, Cells: cells}
}

// At returns the cell at (i, j).
func (m *Matrix) At(i, j int) Cell {
	return m.Cells[i][j]
}

// Set stores a probability at (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.Cells[i][j] = Prob(v)
}

// Lookup finds a cell by row and column label.
func (m *Matrix) Lookup(row, column string) (Cell, bool) {
	i, j := indexOf(m.Rows, row), indexOf(m.Columns, column)
	if i < 0 || j < 0 {
		return Missing, false
	}
	return m.Cells[i][j], true
}

// MissingCount returns the number of masked cells.
func (m *Matrix) MissingCount() int {
	n := 0
	for _, row := range m.Cells {
		for _, c := range row {
			if !c.Valid {
				n++
			}
		}
	}
	return n
}

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}

// EffectSummary describes the posterior distribution of one genotype's main
// effect.
type EffectSummary struct {
	Genotype string  `json:"genotype"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Q05      float64 `json:"q05"`
	Q95      float64 `json:"q95"`
}

// Result is everything one estimation produces. GxR is nil when no region
// analysis was requested.
type Result struct {
	RunID             core.RunID        `json:"run_id"`
	InputHash         core.Hash         `json:"input_hash"`
	Spec              SelectionSpec     `json:"spec"`
	Samples           int               `json:"samples"`
	Genotypes         []string          `json:"genotypes"`
	Environments      []string          `json:"environments"`
	Regions           []string          `json:"regions,omitempty"`
	EnvironmentRegion map[string]string `json:"environment_region,omitempty"`
	GxE               *Matrix           `json:"gxe"`
	GxEStdErr         *Matrix           `json:"gxe_std_err"`
	GxR               *Matrix           `json:"gxr,omitempty"`
	Marginal          []Cell            `json:"marginal"` // aligned to Genotypes
	MainEffects       []EffectSummary   `json:"main_effects"`
	CreatedAt         time.Time         `json:"created_at"`
}

// HasRegions reports whether the result carries a genotype by region matrix.
func (r *Result) HasRegions() bool {
	return r.GxR != nil
}
