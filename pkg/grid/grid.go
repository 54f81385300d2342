// Package grid builds regular evaluation grids over the bounding box of a
// dataset, for smoothing when no explicit query locations are given.
package grid

import (
	"errors"
	"fmt"

	"github.com/aclements/go-moremath/stats"
	"github.com/aclements/go-moremath/vec"

	"rloess/internal/models"
)

var (
	// ErrNoFiniteRows is returned when a dataset has no finite row to bound
	ErrNoFiniteRows = errors.New("grid: dataset has no finite rows")

	// ErrTooLarge is returned when a grid would exceed MaxNodes
	ErrTooLarge = errors.New("grid: too many nodes")
)

// MaxNodes bounds the total node count of a grid built by Bounds
const MaxNodes = 1 << 24

// Grid is an axis-aligned lattice with Steps[d] nodes from Min[d] to Max[d]
// along axis d, both ends included.
type Grid struct {
	Min   []float64
	Max   []float64
	Steps []int
}

// Bounds builds a grid with n nodes per axis spanning the bounding box of
// the finite rows of ds. The box is scaled by widen around its centre, so
// 1.1 adds 5% on each side.
func Bounds(ds *models.Dataset, n int, widen float64) (*Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("grid: need at least 2 nodes per axis, got %d", n)
	}
	if !(widen > 0) {
		return nil, fmt.Errorf("grid: widen must be positive, got %v", widen)
	}

	dims := ds.Dims()
	total := 1
	for d := 0; d < dims; d++ {
		if total > MaxNodes/n {
			return nil, fmt.Errorf("%d nodes per axis in %d dimensions exceeds %d: %w", n, dims, MaxNodes, ErrTooLarge)
		}
		total *= n
	}

	g := &Grid{
		Min:   make([]float64, dims),
		Max:   make([]float64, dims),
		Steps: make([]int, dims),
	}

	column := make([]float64, 0, ds.Len())
	for d := 0; d < dims; d++ {
		column = column[:0]
		for i, loc := range ds.Locations {
			if ds.Finite(i) {
				column = append(column, loc[d])
			}
		}
		if len(column) == 0 {
			return nil, ErrNoFiniteRows
		}

		lo, hi := stats.Bounds(column)
		span := hi - lo
		g.Min[d] = lo - span*(widen-1)/2
		g.Max[d] = hi + span*(widen-1)/2
		g.Steps[d] = n
	}
	if dims == 0 {
		return nil, ErrNoFiniteRows
	}
	return g, nil
}

// Dims returns the number of axes
func (g *Grid) Dims() int {
	return len(g.Steps)
}

// Shape returns the node count along each axis
func (g *Grid) Shape() []int {
	return append([]int(nil), g.Steps...)
}

// Len returns the total number of nodes
func (g *Grid) Len() int {
	if len(g.Steps) == 0 {
		return 0
	}
	n := 1
	for _, s := range g.Steps {
		n *= s
	}
	return n
}

// Axis returns the node coordinates along axis d
func (g *Grid) Axis(d int) []float64 {
	if g.Steps[d] == 1 {
		return []float64{(g.Min[d] + g.Max[d]) / 2}
	}
	return vec.Linspace(g.Min[d], g.Max[d], g.Steps[d])
}

// Points enumerates every node in row-major order: the last axis varies
// fastest.
func (g *Grid) Points() [][]float64 {
	dims := g.Dims()
	total := g.Len()
	if total == 0 {
		return nil
	}

	axes := make([][]float64, dims)
	for d := range axes {
		axes[d] = g.Axis(d)
	}

	points := make([][]float64, total)
	index := make([]int, dims)
	for i := range points {
		p := make([]float64, dims)
		for d, k := range index {
			p[d] = axes[d][k]
		}
		points[i] = p

		// Advance the odometer, last axis first
		for d := dims - 1; d >= 0; d-- {
			index[d]++
			if index[d] < g.Steps[d] {
				break
			}
			index[d] = 0
		}
	}
	return points
}
