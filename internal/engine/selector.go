package engine

import (
	"sort"

	"gosuperior/domain/superior"
)

// Selector picks the superior subset of one value column. It owns scratch
// space, so a Selector must not be shared between goroutines.
type Selector struct {
	spec  superior.SelectionSpec
	n     int
	k     int
	order []int
}

// NewSelector prepares a selector for columns of n genotypes.
func NewSelector(spec superior.SelectionSpec, n int) (*Selector, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Selector{
		spec:  spec,
		n:     n,
		k:     spec.SelectedCount(n),
		order: make([]int, n),
	}, nil
}

// K returns the size of the superior set.
func (sel *Selector) K() int { return sel.k }

// Select ranks values (aligned to genotype index order) by the selection
// direction and marks the first K positions in indicator. Ties keep genotype
// index order, so exactly K entries are set whatever the values are.
func (sel *Selector) Select(values []float64, indicator []bool) {
	for i := range sel.order {
		sel.order[i] = i
	}
	if sel.spec.Increase {
		sort.SliceStable(sel.order, func(a, b int) bool {
			return values[sel.order[a]] > values[sel.order[b]]
		})
	} else {
		sort.SliceStable(sel.order, func(a, b int) bool {
			return values[sel.order[a]] < values[sel.order[b]]
		})
	}

	for i := range indicator {
		indicator[i] = false
	}
	for _, j := range sel.order[:sel.k] {
		indicator[j] = true
	}
}

// SelectSuperior is the one-shot form of Selector.Select.
func SelectSuperior(values []float64, spec superior.SelectionSpec) ([]bool, error) {
	sel, err := NewSelector(spec, len(values))
	if err != nil {
		return nil, err
	}
	indicator := make([]bool, len(values))
	if len(values) > 0 {
		sel.Select(values, indicator)
	}
	return indicator, nil
}
