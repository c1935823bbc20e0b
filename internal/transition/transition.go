// Package transition tabulates window-to-window triad code changes.
package transition

import (
	"math"

	"triadbalance/domain/balance"
	"triadbalance/internal/triad"

	"gonum.org/v1/gonum/mat"
)

// Counter accumulates canonical code transitions. Pairs where either code is
// outside {+3,-1,+1,-3} (undefined windows, zero-sign sums) are skipped on
// purpose: they have no row or column in the matrix.
type Counter struct {
	counts [4][4]int
}

// Add counts every consecutive pair of one triangle's code sequence
func (c *Counter) Add(codes []balance.Code) {
	for t := 0; t+1 < len(codes); t++ {
		from, to := codes[t].Index(), codes[t+1].Index()
		if from < 0 || to < 0 {
			continue
		}
		c.counts[from][to]++
	}
}

// Merge adds the counts of other
func (c *Counter) Merge(other *Counter) {
	for i := range c.counts {
		for j := range c.counts[i] {
			c.counts[i][j] += other.counts[i][j]
		}
	}
}

// Matrix is the normalized 4×4 transition matrix in balance.Canonical order.
// The diagonal is NaN; off-diagonal cells sum to 1. When no off-diagonal
// transition was observed the off-diagonal cells are NaN as well.
type Matrix struct {
	Counts [4][4]int
	P      *mat.Dense
}

// Matrix normalizes the accumulated counts
func (c *Counter) Matrix() Matrix {
	m := Matrix{Counts: c.counts, P: mat.NewDense(4, 4, nil)}

	total := 0
	for i := range c.counts {
		for j := range c.counts[i] {
			if i != j {
				total += c.counts[i][j]
			}
		}
	}

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			switch {
			case i == j, total == 0:
				m.P.Set(i, j, math.NaN())
			default:
				m.P.Set(i, j, float64(c.counts[i][j])/float64(total))
			}
		}
	}
	return m
}

// FromCodes builds the matrix from per-triangle code sequences
func FromCodes(seqs [][]balance.Code) Matrix {
	var c Counter
	for _, codes := range seqs {
		c.Add(codes)
	}
	return c.Matrix()
}

// Build tabulates transitions over every triangle of a code tensor
func Build(t *triad.Tensor) Matrix {
	return FromCodes(t.Codes)
}

// At returns the normalized value for a pair of canonical codes, NaN otherwise
func (m Matrix) At(from, to balance.Code) float64 {
	i, j := from.Index(), to.Index()
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.P.At(i, j)
}

// Count returns the raw count for a pair of canonical codes
func (m Matrix) Count(from, to balance.Code) int {
	i, j := from.Index(), to.Index()
	if i < 0 || j < 0 {
		return 0
	}
	return m.Counts[i][j]
}

// Rows returns the matrix as nested slices with nil for NaN, for JSON output
func (m Matrix) Rows() [][]*float64 {
	rows := make([][]*float64, 4)
	for i := range rows {
		rows[i] = make([]*float64, 4)
		for j := range rows[i] {
			v := m.P.At(i, j)
			if !math.IsNaN(v) {
				rows[i][j] = &v
			}
		}
	}
	return rows
}
