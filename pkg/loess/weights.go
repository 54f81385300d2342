package loess

import (
	"math"

	"rloess/pkg/spatial"
)

// Tricube is the neighbour kernel (1-u^1.5)^3 on [0,1), zero beyond.
// u is a ratio of squared distances, so the exponent 1.5 gives the
// classic cubic falloff in plain distance.
func Tricube(u float64) float64 {
	if !(u < 1) {
		return 0
	}
	if u < 0 {
		u = 0
	}
	t := 1 - math.Pow(u, 1.5)
	return t * t * t
}

// Bicube is the robustness kernel (1-u^2)^2 on [0,1), zero beyond.
func Bicube(u float64) float64 {
	if !(u < 1) {
		return 0
	}
	t := 1 - u*u
	return t * t
}

// NeighborWeights appends the regression weight of every neighbour to dst.
// Neighbours must be ordered by increasing distance; the last one defines
// the bandwidth and therefore always gets weight zero, unless all of them
// coincide with the query location.
func NeighborWeights(neighbors []spatial.Neighbor, dst []float64) []float64 {
	if len(neighbors) == 0 {
		return dst
	}
	dmax := neighbors[len(neighbors)-1].Dist
	for _, n := range neighbors {
		u := 0.0
		if dmax > 0 {
			u = n.Dist / dmax
		}
		dst = append(dst, n.Weight*Tricube(u))
	}
	return dst
}

// RobustWeights computes bicube robustness weights from absolute
// residuals, scaled by six times their median. NaN residuals count as
// infinitely large. When the scale is zero or not finite the weights
// cannot be computed; prev is returned unchanged together with ok=false.
func RobustWeights(residuals, prev []float64) (weights []float64, scale float64, ok bool) {
	abs := make([]float64, len(residuals))
	for i, r := range residuals {
		if math.IsNaN(r) {
			abs[i] = math.Inf(1)
			continue
		}
		abs[i] = math.Abs(r)
	}

	scale = 6 * Median(abs)
	if !(scale > 0) || math.IsInf(scale, 0) {
		return prev, scale, false
	}

	weights = make([]float64, len(abs))
	for i, r := range abs {
		weights[i] = Bicube(r / scale)
	}
	return weights, scale, true
}

// Median returns the element that would sit at index len/2 if values were
// sorted: the exact median for odd lengths, the upper of the two middle
// elements for even lengths. values is not modified. An empty slice has a
// NaN median.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	v := append([]float64(nil), values...)
	return selectKth(v, len(v)/2)
}

// selectKth partially orders v so that v[k] holds its sorted-position
// element and returns it. Hoare-style quickselect with a
// median-of-three pivot.
func selectKth(v []float64, k int) float64 {
	lo, hi := 0, len(v)-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if v[mid] < v[lo] {
			v[mid], v[lo] = v[lo], v[mid]
		}
		if v[hi] < v[lo] {
			v[hi], v[lo] = v[lo], v[hi]
		}
		if v[hi] < v[mid] {
			v[hi], v[mid] = v[mid], v[hi]
		}
		pivot := v[mid]

		i, j := lo, hi
		for i <= j {
			for v[i] < pivot {
				i++
			}
			for pivot < v[j] {
				j--
			}
			if i <= j {
				v[i], v[j] = v[j], v[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return v[k]
		}
	}
	return v[k]
}
