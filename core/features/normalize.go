package features

import (
	"github.com/viterin/vek"
)

// Normalizer holds per-column min-max parameters fitted once per dataset
// load. A constant column maps to 0 rather than dividing by zero.
type Normalizer struct {
	Min []float64
	Max []float64
}

// FitNormalizer computes per-column minima and maxima across the population.
// An empty population yields a normalizer of zero-width columns, which maps
// every value to 0.
func FitNormalizer(rows [][]float64, width int) *Normalizer {
	n := &Normalizer{
		Min: make([]float64, width),
		Max: make([]float64, width),
	}
	if len(rows) == 0 {
		return n
	}

	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		n.Min[j] = vek.Min(col)
		n.Max[j] = vek.Max(col)
	}
	return n
}

// Apply normalizes a raw vector in place to [0,1] per column.
func (n *Normalizer) Apply(v []float64) {
	for j := range v {
		span := n.Max[j] - n.Min[j]
		if span == 0 {
			v[j] = 0
			continue
		}
		v[j] = (v[j] - n.Min[j]) / span
	}
}

// ApplyAll normalizes every row in place.
func (n *Normalizer) ApplyAll(rows [][]float64) {
	for _, row := range rows {
		n.Apply(row)
	}
}
