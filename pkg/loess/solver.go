package loess

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"rloess/pkg/spatial"
)

// NumTerms returns the number of regression terms of a local polynomial
// of the given order in dims dimensions: the intercept, one linear term
// per dimension and, for order 2, every product of two coordinates
// including squares.
func NumTerms(dims, order int) int {
	n := dims + 1
	if order == 2 {
		n += dims * (dims + 1) / 2
	}
	return n
}

// Solver fits local weighted polynomials around query locations. A Solver
// keeps scratch buffers between fits and must not be shared between
// goroutines; several Solvers may share one Index.
type Solver struct {
	index *spatial.Index
	q     int
	order int
	dims  int
	terms int

	neighbors []spatial.Neighbor
	weights   []float64
	design    []float64
	response  []float64
	centered  []float64
}

// NewSolver creates a solver that uses the q nearest usable neighbours of
// every query location.
func NewSolver(index *spatial.Index, q, order int) *Solver {
	dims := index.Dims()
	return &Solver{
		index:    index,
		q:        q,
		order:    order,
		dims:     dims,
		terms:    NumTerms(dims, order),
		centered: make([]float64, dims),
	}
}

// Terms returns the number of regression terms per fit
func (s *Solver) Terms() int { return s.terms }

// Select returns the neighbours a fit at loc would use. The slice is
// reused by the next call.
func (s *Solver) Select(loc []float64) []spatial.Neighbor {
	s.neighbors = s.neighbors[:0]
	if !isFinite(loc) {
		return s.neighbors
	}
	it := s.index.NeighborsHint(loc, s.q+1)
	s.neighbors = it.Take(s.q, s.neighbors)
	return s.neighbors
}

// Fit returns the local regression estimate at loc, or NaN when loc is not
// finite or too few usable neighbours exist to determine the polynomial.
func (s *Solver) Fit(loc []float64) float64 {
	neighbors := s.Select(loc)
	rows := len(neighbors)
	if rows == 0 || rows < s.terms {
		return math.NaN()
	}

	s.weights = NeighborWeights(neighbors, s.weights[:0])

	if cap(s.design) < rows*s.terms {
		s.design = make([]float64, rows*s.terms)
	}
	s.design = s.design[:rows*s.terms]
	if cap(s.response) < rows {
		s.response = make([]float64, rows)
	}
	s.response = s.response[:rows]

	for r, n := range neighbors {
		w := s.weights[r]
		row := s.design[r*s.terms : (r+1)*s.terms]

		// Intercept
		row[0] = w
		s.response[r] = w * n.Value

		// Linear terms on coordinates centred at the query location
		floats.SubTo(s.centered, n.Coords, loc)
		for d, c := range s.centered {
			row[d+1] = w * c
		}

		if s.order == 2 {
			col := s.dims + 1
			for d1 := 0; d1 < s.dims; d1++ {
				for d2 := d1; d2 < s.dims; d2++ {
					row[col] = w * s.centered[d1] * s.centered[d2]
					col++
				}
			}
		}
	}

	a := mat.NewDense(rows, s.terms, s.design)
	b := mat.NewVecDense(rows, s.response)
	return solveIntercept(a, b)
}

// solveIntercept returns the first component of the minimum-norm least
// squares solution of a·x ≈ b. Rank deficiency is handled by truncating
// singular values below the numerical threshold.
func solveIntercept(a *mat.Dense, b *mat.VecDense) float64 {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return math.NaN()
	}

	rows, cols := a.Dims()
	rcond := float64(min(rows, cols)) * eps
	rank := svd.Rank(rcond)
	if rank == 0 {
		return math.NaN()
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)
	return x.AtVec(0)
}

// eps is the double precision machine epsilon
const eps = 0x1p-52

func isFinite(loc []float64) bool {
	for _, v := range loc {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
