package loess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rloess/pkg/spatial"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{5, 3, 1, 4, 2}, 3},
		{"even picks upper middle", []float64{1, 2, 3, 4}, 3},
		{"single", []float64{7}, 7},
		{"duplicates", []float64{2, 2, 2, 1, 2}, 2},
		{"reversed", []float64{9, 8, 7, 6, 5, 4, 3, 2, 1}, 5},
		{"with infinity", []float64{math.Inf(1), 1, math.Inf(1)}, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.values))
		})
	}

	assert.True(t, math.IsNaN(Median(nil)))
}

// TestMedianKeepsInput verifies that the caller's slice is left untouched
func TestMedianKeepsInput(t *testing.T) {
	values := []float64{5, 3, 1, 4, 2}
	Median(values)
	assert.Equal(t, []float64{5, 3, 1, 4, 2}, values)
}

// TestSelectKth checks every rank of a shuffled slice
func TestSelectKth(t *testing.T) {
	base := []float64{13, 2, 8, 8, 21, 1, 5, 3, 1, 34, 8}
	sorted := []float64{1, 1, 2, 3, 5, 8, 8, 8, 13, 21, 34}
	for k := range base {
		v := append([]float64(nil), base...)
		assert.Equal(t, sorted[k], selectKth(v, k), "k=%d", k)
	}
}

func TestTricube(t *testing.T) {
	assert.Equal(t, 1.0, Tricube(0))
	assert.Equal(t, 0.0, Tricube(1))
	assert.Equal(t, 0.0, Tricube(2))
	assert.Equal(t, 0.0, Tricube(math.NaN()))
	assert.InDelta(t, math.Pow(1-math.Pow(0.25, 1.5), 3), Tricube(0.25), 1e-15)

	prev := Tricube(0)
	for u := 0.05; u < 1; u += 0.05 {
		w := Tricube(u)
		assert.LessOrEqual(t, w, prev)
		prev = w
	}
}

func TestBicube(t *testing.T) {
	assert.Equal(t, 1.0, Bicube(0))
	assert.Equal(t, 0.0, Bicube(1))
	assert.Equal(t, 0.0, Bicube(1.5))
	assert.InDelta(t, 0.5625, Bicube(0.5), 1e-15)
}

// TestNeighborWeights verifies the kernel is non-increasing with distance
// rank and zero at the farthest neighbour
func TestNeighborWeights(t *testing.T) {
	neighbors := []spatial.Neighbor{
		{Dist: 0, Weight: 1},
		{Dist: 1, Weight: 1},
		{Dist: 1, Weight: 1},
		{Dist: 4, Weight: 1},
		{Dist: 9, Weight: 1},
	}
	w := NeighborWeights(neighbors, nil)
	require.Len(t, w, len(neighbors))

	assert.Equal(t, 1.0, w[0])
	assert.Equal(t, w[1], w[2])
	for i := 1; i < len(w); i++ {
		assert.LessOrEqual(t, w[i], w[i-1])
	}
	assert.Equal(t, 0.0, w[len(w)-1])
}

// TestNeighborWeightsRobustness verifies that robustness weights scale the
// kernel
func TestNeighborWeightsRobustness(t *testing.T) {
	neighbors := []spatial.Neighbor{
		{Dist: 0, Weight: 0.5},
		{Dist: 1, Weight: 0.25},
		{Dist: 2, Weight: 1},
	}
	w := NeighborWeights(neighbors, nil)
	assert.Equal(t, 0.5, w[0])
	assert.InDelta(t, 0.25*Tricube(0.5), w[1], 1e-15)
	assert.Equal(t, 0.0, w[2])
}

// TestNeighborWeightsCoincident covers neighbours that all sit on the query
func TestNeighborWeightsCoincident(t *testing.T) {
	neighbors := []spatial.Neighbor{
		{Dist: 0, Weight: 1},
		{Dist: 0, Weight: 0.5},
	}
	assert.Equal(t, []float64{1, 0.5}, NeighborWeights(neighbors, nil))
	assert.Empty(t, NeighborWeights(nil, nil))
}

func TestRobustWeights(t *testing.T) {
	residuals := []float64{0, 1, -1, 2, 6, 100, math.NaN()}
	prev := []float64{1, 1, 1, 1, 1, 1, 1}

	w, scale, ok := RobustWeights(residuals, prev)
	require.True(t, ok)

	// |r| = 0 1 1 2 6 100 +Inf, median 2
	assert.Equal(t, 12.0, scale)
	assert.Equal(t, 1.0, w[0])
	assert.InDelta(t, Bicube(1.0/12), w[1], 1e-15)
	assert.Equal(t, w[1], w[2])
	assert.InDelta(t, Bicube(0.5), w[4], 1e-15)
	assert.Equal(t, 0.0, w[5])
	assert.Equal(t, 0.0, w[6])
}

// TestRobustWeightsCutoff verifies residuals at six medians get weight zero
func TestRobustWeightsCutoff(t *testing.T) {
	residuals := []float64{1, 1, 1, 6, 7}
	w, _, ok := RobustWeights(residuals, make([]float64, 5))
	require.True(t, ok)
	assert.Equal(t, 0.0, w[3])
	assert.Equal(t, 0.0, w[4])
	assert.Greater(t, w[0], 0.0)
}

// TestRobustWeightsZeroScale verifies the previous weights survive when
// the median residual is zero
func TestRobustWeightsZeroScale(t *testing.T) {
	prev := []float64{0.2, 0.4, 0.6, 0.8}
	w, scale, ok := RobustWeights([]float64{0, 0, 0, 5}, prev)
	assert.False(t, ok)
	assert.Equal(t, 0.0, scale)
	assert.Equal(t, prev, w)

	w, _, ok = RobustWeights([]float64{math.NaN(), math.NaN(), 1}, prev[:3])
	assert.False(t, ok)
	assert.Equal(t, prev[:3], w)
}
