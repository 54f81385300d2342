package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rloess/internal/models"
)

func TestBounds(t *testing.T) {
	ds := &models.Dataset{
		Locations: [][]float64{{0, 10}, {4, 20}, {2, 15}, {100, math.NaN()}},
		Values:    []float64{1, 2, 3, 4},
	}

	g, err := Bounds(ds, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10}, g.Min)
	assert.Equal(t, []float64{4, 20}, g.Max)
	assert.Equal(t, []int{5, 5}, g.Shape())
	assert.Equal(t, 25, g.Len())

	g, err = Bounds(ds, 3, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, g.Min[0], 1e-12)
	assert.InDelta(t, 5.0, g.Max[0], 1e-12)
	assert.InDelta(t, 7.5, g.Min[1], 1e-12)
	assert.InDelta(t, 22.5, g.Max[1], 1e-12)
}

func TestBoundsErrors(t *testing.T) {
	ds := &models.Dataset{
		Locations: [][]float64{{math.NaN()}},
		Values:    []float64{1},
	}
	_, err := Bounds(ds, 10, 1)
	assert.True(t, errors.Is(err, ErrNoFiniteRows))

	_, err = Bounds(&models.Dataset{}, 10, 1)
	assert.True(t, errors.Is(err, ErrNoFiniteRows))

	ok := &models.Dataset{Locations: [][]float64{{0}, {1}}, Values: []float64{0, 1}}
	_, err = Bounds(ok, 1, 1)
	assert.Error(t, err)
	_, err = Bounds(ok, 10, 0)
	assert.Error(t, err)
}

func TestPointsRowMajor(t *testing.T) {
	g := &Grid{
		Min:   []float64{0, 10},
		Max:   []float64{1, 30},
		Steps: []int{2, 3},
	}

	points := g.Points()
	require.Len(t, points, 6)
	assert.Equal(t, [][]float64{
		{0, 10}, {0, 20}, {0, 30},
		{1, 10}, {1, 20}, {1, 30},
	}, points)

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, []float64{float64(i), 10 + 10*float64(j)}, points[i*3+j])
		}
	}
}

// TestBoundsNodeLimit verifies that high-dimensional grids are refused
// before any node is allocated
func TestBoundsNodeLimit(t *testing.T) {
	row := []float64{0, 1, 2, 3, 4}
	ds := &models.Dataset{
		Locations: [][]float64{row, {5, 6, 7, 8, 9}},
		Values:    []float64{1, 2},
	}

	_, err := Bounds(ds, 50, 1)
	assert.True(t, errors.Is(err, ErrTooLarge), "got %v", err)

	g, err := Bounds(ds, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 1024, g.Len())

	ds.Locations = [][]float64{row[:4], {5, 6, 7, 8}}
	g, err = Bounds(ds, 64, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxNodes, g.Len())

	_, err = Bounds(ds, 65, 1)
	assert.True(t, errors.Is(err, ErrTooLarge), "got %v", err)
}

func TestAxisSingleNode(t *testing.T) {
	g := &Grid{Min: []float64{2}, Max: []float64{4}, Steps: []int{1}}
	assert.Equal(t, []float64{3}, g.Axis(0))
	assert.Equal(t, [][]float64{{3}}, g.Points())
}

func TestEmptyGrid(t *testing.T) {
	g := &Grid{}
	assert.Equal(t, 0, g.Len())
	assert.Nil(t, g.Points())
}
