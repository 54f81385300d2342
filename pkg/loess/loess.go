// Package loess implements robust multivariate LOESS smoothing.
//
// For every query location a polynomial of degree one or two is fitted by
// weighted least squares to the nearest input samples. Neighbours are
// weighted with a tricube kernel over their distance and with a per-sample
// robustness weight. Robustness weights start at one and are refined by
// Iterations passes that fit the inputs themselves and down-weight samples
// with large residuals through a bicube kernel.
//
// Example:
//
//	res, err := loess.SmoothPoints(locations, values, queries, loess.Params{
//		Span:       0.3,
//		Iterations: 3,
//		Order:      1,
//	})
package loess

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"

	"rloess/pkg/spatial"
)

var (
	// ErrValueCount reports a value count that differs from the number of
	// input rows.
	ErrValueCount = errors.New("loess: values must have one entry per input row")

	// ErrColumnCount reports query or input rows whose width differs from
	// the input dimensionality.
	ErrColumnCount = errors.New("loess: rows must have the same number of columns as the input locations")

	// ErrOrder reports a polynomial order other than 1 or 2.
	ErrOrder = errors.New("loess: order must be 1 or 2")

	// ErrSpan reports a span that is not a positive number.
	ErrSpan = errors.New("loess: span must be positive")

	// ErrIterations reports a negative number of robustness iterations.
	ErrIterations = errors.New("loess: iterations must not be negative")
)

// ProgressFunc receives the overall completion fraction in [0,1]. It is
// called from the goroutine running Smooth.
type ProgressFunc func(fraction float64)

// Params controls a smoothing run
type Params struct {
	// Span is the neighbourhood size: a neighbour count when greater than
	// one, otherwise a fraction of the number of input rows.
	Span float64

	// Iterations is the number of robustness passes; zero gives plain
	// (non-robust) local regression.
	Iterations int

	// Order is the degree of the local polynomial, 1 or 2
	Order int

	// NumThreads bounds the number of goroutines fitting in parallel.
	// Zero uses one per available CPU.
	NumThreads int

	// PollInterval is the progress reporting period; zero means one second
	PollInterval time.Duration

	// Progress, when set, is called as the computation proceeds
	Progress ProgressFunc
}

// Result holds the output of a smoothing run
type Result struct {
	// Values holds one estimate per query row; NaN marks rows with
	// non-finite coordinates or too few usable neighbours.
	Values []float64

	// Weights holds the final robustness weight of every input row.
	// Rows dropped for non-finite data have NaN.
	Weights []float64

	// Passes describes each robustness pass
	Passes []PassStats

	// Neighbors is the number of neighbours used per fit
	Neighbors int
}

// NeighborCount converts a span into the number of neighbours per fit:
// span itself (truncated) when it exceeds one, otherwise span·n. The result
// is clamped to [3, n].
func NeighborCount(span float64, n int) int {
	var q int
	if span > 1 {
		q = int(math.Floor(span))
	} else {
		q = int(math.Floor(span * float64(n)))
	}
	if q > n {
		q = n
	}
	if q < 3 {
		q = 3
	}
	return q
}

// Smooth estimates the smoothed function at the rows of xi from samples at
// the rows of x with values v.
func Smooth(x mat.Matrix, v []float64, xi mat.Matrix, p Params) (*Result, error) {
	nin, nd := x.Dims()
	nout, qd := xi.Dims()
	if len(v) != nin {
		return nil, fmt.Errorf("%d values for %d rows: %w", len(v), nin, ErrValueCount)
	}
	if qd != nd {
		return nil, fmt.Errorf("query has %d columns, input has %d: %w", qd, nd, ErrColumnCount)
	}

	locations := make([][]float64, nin)
	for i := range locations {
		locations[i] = mat.Row(nil, i, x)
	}
	queries := make([][]float64, nout)
	for i := range queries {
		queries[i] = mat.Row(nil, i, xi)
	}
	return SmoothPoints(locations, v, queries, p)
}

// SmoothPoints is Smooth for row slices. All rows of locations and queries
// must have the same length.
func SmoothPoints(locations [][]float64, values []float64, queries [][]float64, p Params) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(values) != len(locations) {
		return nil, fmt.Errorf("%d values for %d rows: %w", len(values), len(locations), ErrValueCount)
	}

	dims := -1
	if len(locations) > 0 {
		dims = len(locations[0])
	}
	for i, row := range locations {
		if len(row) != dims {
			return nil, fmt.Errorf("input row %d has %d columns, want %d: %w", i, len(row), dims, ErrColumnCount)
		}
	}
	for i, row := range queries {
		if dims >= 0 && len(row) != dims {
			return nil, fmt.Errorf("query row %d has %d columns, want %d: %w", i, len(row), dims, ErrColumnCount)
		}
	}

	// Drop rows with any non-finite coordinate or value
	points := make([]spatial.Point, 0, len(locations))
	slots := make([]int, 0, len(locations))
	for i, row := range locations {
		if !isFinite(row) || math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			continue
		}
		points = append(points, spatial.Point{Coords: row, Value: values[i]})
		slots = append(slots, i)
	}

	// An empty index yields NaN for every query
	index, err := spatial.New(points)
	if err != nil {
		return nil, fmt.Errorf("loess: building index: %w", err)
	}

	// Spans are relative to the usable rows, so that dropping invalid rows
	// never changes the fit of the others.
	q := NeighborCount(p.Span, len(points))

	threads := p.NumThreads
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	s := &smoother{
		index: index,
		coord: &coordinator{
			index:    index,
			q:        q,
			order:    p.Order,
			threads:  threads,
			interval: p.PollInterval,
		},
		niter:    p.Iterations,
		progress: p.Progress,
	}
	out, passes, err := s.run(queries)
	if err != nil {
		return nil, err
	}

	weights := make([]float64, len(locations))
	for i := range weights {
		weights[i] = math.NaN()
	}
	for slot, row := range slots {
		weights[row] = index.Weight(slot)
	}

	return &Result{
		Values:    out,
		Weights:   weights,
		Passes:    passes,
		Neighbors: q,
	}, nil
}

func (p Params) validate() error {
	if p.Order != 1 && p.Order != 2 {
		return fmt.Errorf("order %d: %w", p.Order, ErrOrder)
	}
	if !(p.Span > 0) || math.IsInf(p.Span, 0) {
		return fmt.Errorf("span %v: %w", p.Span, ErrSpan)
	}
	if p.Iterations < 0 {
		return fmt.Errorf("%d iterations: %w", p.Iterations, ErrIterations)
	}
	if p.NumThreads < 0 {
		return fmt.Errorf("loess: %d threads, must not be negative", p.NumThreads)
	}
	return nil
}
