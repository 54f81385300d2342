package models

import "math"

// Dataset holds scattered input samples: one coordinate row per sample
// and the observed value at that location.
type Dataset struct {
	// Locations holds one coordinate vector per sample.
	// All rows are expected to share the same length.
	Locations [][]float64

	// Values holds the observed value for each row of Locations
	Values []float64

	// Name identifies the dataset when it is persisted
	Name string
}

// Len returns the number of samples
func (d *Dataset) Len() int {
	return len(d.Locations)
}

// Dims returns the dimensionality of the first row, or 0 for an empty dataset
func (d *Dataset) Dims() int {
	if len(d.Locations) == 0 {
		return 0
	}
	return len(d.Locations[0])
}

// Finite reports whether row i has finite coordinates and a finite value
func (d *Dataset) Finite(i int) bool {
	if math.IsNaN(d.Values[i]) || math.IsInf(d.Values[i], 0) {
		return false
	}
	for _, c := range d.Locations[i] {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Result pairs the query locations with the smoothed estimates
type Result struct {
	// Queries holds one coordinate vector per estimate
	Queries [][]float64

	// Values holds the smoothed estimate for each query; NaN marks a
	// query where no fit could be made
	Values []float64

	// Weights holds the final robustness weight of each input sample,
	// in input row order; NaN marks rows dropped as non-finite
	Weights []float64
}
