package loess

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rloess/pkg/spatial"
)

// buildIndex samples f at n random locations in [0,1]^dims
func buildIndex(t *testing.T, rng *rand.Rand, n, dims int, f func([]float64) float64) *spatial.Index {
	t.Helper()
	points := make([]spatial.Point, n)
	for i := range points {
		coords := make([]float64, dims)
		for d := range coords {
			coords[d] = rng.Float64()
		}
		points[i] = spatial.Point{Coords: coords, Value: f(coords)}
	}
	idx, err := spatial.New(points)
	require.NoError(t, err)
	return idx
}

func TestNumTerms(t *testing.T) {
	tests := []struct {
		dims, order, want int
	}{
		{1, 1, 2},
		{2, 1, 3},
		{3, 1, 4},
		{1, 2, 3},
		{2, 2, 6},
		{3, 2, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NumTerms(tt.dims, tt.order), "dims=%d order=%d", tt.dims, tt.order)
	}
}

// TestFitConstant verifies that constant data is reproduced exactly up to
// rounding
func TestFitConstant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	idx := buildIndex(t, rng, 100, 2, func([]float64) float64 { return 4.25 })

	s := NewSolver(idx, 15, 1)
	for i := 0; i < 20; i++ {
		loc := []float64{rng.Float64(), rng.Float64()}
		assert.InDelta(t, 4.25, s.Fit(loc), 1e-10)
	}
}

// TestFitLinear verifies that a first order fit reproduces planes
func TestFitLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	plane := func(x []float64) float64 { return 1 + 2*x[0] - 3*x[1] + 0.5*x[2] }
	idx := buildIndex(t, rng, 200, 3, plane)

	s := NewSolver(idx, 20, 1)
	for i := 0; i < 20; i++ {
		loc := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		assert.InDelta(t, plane(loc), s.Fit(loc), 1e-9)
	}
}

// TestFitQuadratic verifies that a second order fit reproduces quadrics,
// cross terms included
func TestFitQuadratic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	quad := func(x []float64) float64 {
		return 2 - x[0] + 3*x[1] + 4*x[0]*x[0] - 2*x[0]*x[1] + x[1]*x[1]
	}
	idx := buildIndex(t, rng, 150, 2, quad)

	s := NewSolver(idx, 25, 2)
	require.Equal(t, 6, s.Terms())
	for i := 0; i < 20; i++ {
		loc := []float64{0.2 + 0.6*rng.Float64(), 0.2 + 0.6*rng.Float64()}
		assert.InDelta(t, quad(loc), s.Fit(loc), 1e-8)
	}

	// A first order fit cannot follow the curvature
	lin := NewSolver(idx, 25, 1)
	loc := []float64{0.5, 0.5}
	assert.Greater(t, math.Abs(lin.Fit(loc)-quad(loc)), 1e-6)
}

// TestFitTooFewNeighbors verifies the missing sentinel when the neighbour
// count does not determine the polynomial
func TestFitTooFewNeighbors(t *testing.T) {
	idx, err := spatial.New([]spatial.Point{
		{Coords: []float64{0, 0}, Value: 1},
		{Coords: []float64{1, 0}, Value: 2},
		{Coords: []float64{0, 1}, Value: 3},
		{Coords: []float64{1, 1}, Value: 4},
	})
	require.NoError(t, err)

	// Six terms, four points
	s := NewSolver(idx, 4, 2)
	assert.True(t, math.IsNaN(s.Fit([]float64{0.5, 0.5})))

	// Three terms, two usable points
	idx.SetWeight(0, 0)
	idx.SetWeight(1, 0)
	s = NewSolver(idx, 4, 1)
	assert.True(t, math.IsNaN(s.Fit([]float64{0.5, 0.5})))
}

func TestFitNonFiniteQuery(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	idx := buildIndex(t, rng, 30, 2, func(x []float64) float64 { return x[0] })

	s := NewSolver(idx, 10, 1)
	assert.True(t, math.IsNaN(s.Fit([]float64{math.NaN(), 0.5})))
	assert.True(t, math.IsNaN(s.Fit([]float64{0.5, math.Inf(-1)})))
	assert.False(t, math.IsNaN(s.Fit([]float64{0.5, 0.5})))
}

// TestFitRankDeficient uses collinear samples in two dimensions; the
// design matrix has rank two out of three columns and the minimum-norm
// solution must still recover the values along the line.
func TestFitRankDeficient(t *testing.T) {
	var points []spatial.Point
	for i := 0; i < 20; i++ {
		x := float64(i) / 19
		points = append(points, spatial.Point{Coords: []float64{x, x}, Value: 3 + 2*x})
	}
	idx, err := spatial.New(points)
	require.NoError(t, err)

	s := NewSolver(idx, 8, 1)
	got := s.Fit([]float64{0.5, 0.5})
	require.False(t, math.IsNaN(got))
	assert.InDelta(t, 4.0, got, 1e-9)
}

// TestSelectGrowsWithQ verifies that a larger q never finds fewer usable
// neighbours
func TestSelectGrowsWithQ(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	idx := buildIndex(t, rng, 60, 2, func([]float64) float64 { return 0 })
	for i := 0; i < 60; i += 4 {
		idx.SetWeight(i, 0)
	}

	loc := []float64{0.4, 0.6}
	prev := 0
	for q := 1; q <= 70; q++ {
		n := len(NewSolver(idx, q, 1).Select(loc))
		assert.GreaterOrEqual(t, n, prev)
		for _, nb := range NewSolver(idx, q, 1).Select(loc) {
			assert.NotZero(t, nb.Weight)
		}
		prev = n
	}
	assert.Equal(t, 45, prev)
}
