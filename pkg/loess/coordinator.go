package loess

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"rloess/pkg/spatial"
)

// span is a half-open range [start, end) of query indices
type span struct {
	start, end int
}

// partition splits m items into min(n, m) contiguous spans of near-equal
// size; the first m mod k spans get one extra item. n is clamped to at
// least one.
func partition(m, n int) []span {
	if n < 1 {
		n = 1
	}
	if n > m {
		n = m
	}
	if n == 0 {
		return nil
	}

	spans := make([]span, n)
	size, rem := m/n, m%n
	start := 0
	for i := range spans {
		end := start + size
		if i < rem {
			end++
		}
		spans[i] = span{start: start, end: end}
		start = end
	}
	return spans
}

// workerProgress is a per-worker completion fraction that can be read
// while the worker is writing it.
type workerProgress struct {
	bits atomic.Uint64
}

func (p *workerProgress) store(f float64) { p.bits.Store(math.Float64bits(f)) }
func (p *workerProgress) load() float64   { return math.Float64frombits(p.bits.Load()) }

// coordinator runs solvers over a sequence of query locations on a fixed
// number of goroutines.
type coordinator struct {
	index    *spatial.Index
	q        int
	order    int
	threads  int
	interval time.Duration
}

// fitAll writes the local regression estimate for queries[i] into out[i].
// report, when non-nil, receives the mean worker progress every interval
// and once more after all workers finished. A panic inside a worker is
// returned as an error once every worker has stopped.
func (c *coordinator) fitAll(queries [][]float64, out []float64, report func(float64)) error {
	spans := partition(len(queries), c.threads)
	if len(spans) == 0 {
		if report != nil {
			report(1)
		}
		return nil
	}

	progress := make([]workerProgress, len(spans))
	errs := make([]error, len(spans))

	var wg sync.WaitGroup
	for w, sp := range spans {
		wg.Add(1)
		go func(w int, sp span) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[w] = fmt.Errorf("loess: worker %d (queries %d-%d) failed: %v", w, sp.start, sp.end-1, r)
				}
			}()

			solver := NewSolver(c.index, c.q, c.order)
			total := float64(sp.end - sp.start)
			for i := sp.start; i < sp.end; i++ {
				out[i] = solver.Fit(queries[i])
				progress[w].store(float64(i-sp.start+1) / total)
			}
			progress[w].store(1)
		}(w, sp)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	mean := func() float64 {
		var sum float64
		for i := range progress {
			sum += progress[i].load()
		}
		return sum / float64(len(progress))
	}

	interval := c.interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for running := true; running; {
		select {
		case <-ticker.C:
			if report != nil {
				report(mean())
			}
		case <-done:
			running = false
		}
	}
	if report != nil {
		report(mean())
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
