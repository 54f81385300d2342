package loess

import (
	"math"

	"rloess/pkg/spatial"
)

// PassStats describes one robustness pass
type PassStats struct {
	// Pass is the zero-based robustness pass number
	Pass int

	// Scale is six times the median absolute residual of the pass
	Scale float64

	// Zeroed counts the points whose robustness weight became zero
	Zeroed int

	// Skipped is set when the residual scale was zero or not finite and
	// the weights of the previous pass were kept
	Skipped bool
}

// smoother drives the robust iteration: niter passes that fit at the input
// locations and update robustness weights, then one pass at the queries.
type smoother struct {
	index    *spatial.Index
	coord    *coordinator
	niter    int
	progress ProgressFunc
}

// run smooths at queries and returns the estimates together with the
// statistics of every robustness pass.
func (s *smoother) run(queries [][]float64) ([]float64, []PassStats, error) {
	nin := s.index.Len()
	nout := len(queries)

	total := float64(nin*s.niter + nout)
	fracRobust, fracFinal := 0.0, 1.0
	if total > 0 {
		fracRobust = float64(nin) / total
		fracFinal = float64(nout) / total
	}

	inputs := make([][]float64, nin)
	for i := range inputs {
		inputs[i] = s.index.PointAt(i).Coords
	}

	fitted := make([]float64, nin)
	residuals := make([]float64, nin)
	weights := make([]float64, nin)
	for i := range weights {
		weights[i] = s.index.Weight(i)
	}

	stats := make([]PassStats, 0, s.niter)
	for pass := 0; pass < s.niter; pass++ {
		err := s.coord.fitAll(inputs, fitted, s.reporter(func(p float64) float64 {
			return (float64(pass) + p) * fracRobust
		}))
		if err != nil {
			return nil, stats, err
		}

		for i := range residuals {
			residuals[i] = math.Abs(s.index.PointAt(i).Value - fitted[i])
		}

		next, scale, ok := RobustWeights(residuals, weights)
		st := PassStats{Pass: pass, Scale: scale, Skipped: !ok}
		for i, w := range next {
			s.index.SetWeight(i, w)
			if w == 0 {
				st.Zeroed++
			}
		}
		weights = next
		stats = append(stats, st)
	}

	out := make([]float64, nout)
	err := s.coord.fitAll(queries, out, s.reporter(func(p float64) float64 {
		return float64(s.niter)*fracRobust + p*fracFinal
	}))
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// reporter maps a stage-local progress fraction onto the overall progress
func (s *smoother) reporter(blend func(float64) float64) func(float64) {
	if s.progress == nil {
		return nil
	}
	return func(p float64) {
		s.progress(blend(p))
	}
}
