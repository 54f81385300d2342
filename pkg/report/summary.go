// Package report summarises the estimates and robustness weights produced
// by a smoothing run.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of smoothed estimates and of the
// final robustness weights
type Summary struct {
	// Count is the number of finite estimates
	Count int
	// Missing is the number of NaN estimates
	Missing int

	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64

	// MeanWeight is the mean robustness weight over the usable input rows
	MeanWeight float64
	// Downweighted counts usable rows with a weight below one
	Downweighted int
	// Rejected counts usable rows with a weight of zero
	Rejected int
}

// Summarize computes a Summary. Non-finite estimates count as missing and
// NaN weights (rows the smoother dropped) are ignored.
func Summarize(values, weights []float64) Summary {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite = append(finite, v)
	}

	s := Summary{
		Count:   len(finite),
		Missing: len(values) - len(finite),
	}
	if len(finite) > 0 {
		sample := stats.Sample{Xs: finite}
		s.Mean = sample.Mean()
		s.Min, s.Max = sample.Bounds()
		s.Median = sample.Quantile(0.5)
		if len(finite) > 1 {
			s.StdDev = sample.StdDev()
		}
	} else {
		s.Mean, s.StdDev, s.Min, s.Max, s.Median = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
	}

	used := make([]float64, 0, len(weights))
	for _, w := range weights {
		if math.IsNaN(w) {
			continue
		}
		used = append(used, w)
		if w < 1 {
			s.Downweighted++
		}
		if w == 0 {
			s.Rejected++
		}
	}
	s.MeanWeight = math.NaN()
	if len(used) > 0 {
		s.MeanWeight = stat.Mean(used, nil)
	}
	return s
}

// String renders the summary as an aligned multi-line block
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimates:        %d (%d missing)\n", s.Count, s.Missing)
	fmt.Fprintf(&b, "Mean:             %.6g\n", s.Mean)
	fmt.Fprintf(&b, "Std deviation:    %.6g\n", s.StdDev)
	fmt.Fprintf(&b, "Range:            [%.6g, %.6g]\n", s.Min, s.Max)
	fmt.Fprintf(&b, "Median:           %.6g\n", s.Median)
	fmt.Fprintf(&b, "Mean weight:      %.4f\n", s.MeanWeight)
	fmt.Fprintf(&b, "Down-weighted:    %d (%d rejected)\n", s.Downweighted, s.Rejected)
	return b.String()
}
