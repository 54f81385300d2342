// Package spatial provides the nearest-neighbour index used by the local
// regression engine. Points are stored in stable slots so that their
// robustness weights can be updated in place after the tree is built.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrDimensionMismatch is returned when points of different
// dimensionality are mixed in one index or query.
var ErrDimensionMismatch = errors.New("spatial: dimension mismatch")

// defaultBatch is the first number of entries requested from the tree
// when a neighbour sequence is started without a size hint.
const defaultBatch = 16

// Point is an input sample owned by the index
type Point struct {
	Coords []float64
	Value  float64
}

// Neighbor is one element of a neighbour sequence
type Neighbor struct {
	// ID is the stable slot of the point inside the index
	ID int

	// Coords and Value are the stored point's coordinates and value
	Coords []float64
	Value  float64

	// Weight is the robustness weight of the point when it was produced
	Weight float64

	// Dist is the squared Euclidean distance to the query location
	Dist float64
}

// entry is the kd-tree element; the tree reorders entries freely, id
// refers back to the stable slot.
type entry struct {
	coords []float64
	id     int
}

// Compare implements the kdtree.Comparable interface
func (e entry) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(entry)
	return e.coords[d] - q.coords[d]
}

// Dims returns the number of dimensions for the KD-tree
func (e entry) Dims() int { return len(e.coords) }

// Distance returns the squared Euclidean distance between two entries
func (e entry) Distance(c kdtree.Comparable) float64 {
	q := c.(entry)
	var sum float64
	for i, v := range e.coords {
		d := v - q.coords[i]
		sum += d * d
	}
	return sum
}

// entries is a collection of entry that satisfies kdtree.Interface
type entries []entry

func (p entries) Index(i int) kdtree.Comparable         { return p[i] }
func (p entries) Len() int                              { return len(p) }
func (p entries) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p entries) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{entries: p, Dim: d}, kdtree.MedianOfRandoms(plane{entries: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for entries
type plane struct {
	entries
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.entries[i].coords[p.Dim] < p.entries[j].coords[p.Dim]
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{entries: p.entries[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
}

// Index is a static kd-tree over a fixed point set with mutable
// per-point robustness weights.
//
// Queries may run concurrently. SetWeight must not run concurrently with
// queries; callers mutate weights only between query rounds.
type Index struct {
	points  []Point
	weights []float64
	dims    int
	tree    *kdtree.Tree
}

// New builds an index over points. Every point starts with weight 1.
// The coordinates are copied, so the caller may reuse its slices.
func New(points []Point) (*Index, error) {
	idx := &Index{
		points:  make([]Point, len(points)),
		weights: make([]float64, len(points)),
	}
	if len(points) == 0 {
		return idx, nil
	}

	idx.dims = len(points[0].Coords)
	elems := make(entries, len(points))
	for i, p := range points {
		if len(p.Coords) != idx.dims {
			return nil, fmt.Errorf("point %d has %d coordinates, want %d: %w", i, len(p.Coords), idx.dims, ErrDimensionMismatch)
		}
		coords := append([]float64(nil), p.Coords...)
		idx.points[i] = Point{Coords: coords, Value: p.Value}
		idx.weights[i] = 1
		elems[i] = entry{coords: coords, id: i}
	}

	idx.tree = kdtree.New(elems, true)
	return idx, nil
}

// Len returns the number of stored points
func (idx *Index) Len() int { return len(idx.points) }

// Dims returns the dimensionality of the stored points
func (idx *Index) Dims() int { return idx.dims }

// PointAt returns the point stored in slot i
func (idx *Index) PointAt(i int) Point { return idx.points[i] }

// Weight returns the robustness weight of slot i
func (idx *Index) Weight(i int) float64 { return idx.weights[i] }

// SetWeight replaces the robustness weight of slot i. Points with weight
// zero are skipped by neighbour sequences started afterwards.
func (idx *Index) SetWeight(i int, w float64) {
	if i < 0 || i >= len(idx.weights) {
		panic(fmt.Sprintf("spatial: SetWeight slot %d out of range [0,%d)", i, len(idx.weights)))
	}
	idx.weights[i] = w
}

// Neighbors starts a lazy neighbour sequence around loc
func (idx *Index) Neighbors(loc []float64) *NeighborIter {
	return idx.NeighborsHint(loc, defaultBatch)
}

// NeighborsHint is like Neighbors but sizes the first tree search for
// roughly k results.
func (idx *Index) NeighborsHint(loc []float64, k int) *NeighborIter {
	if k < 1 {
		k = defaultBatch
	}
	it := &NeighborIter{
		idx:   idx,
		query: entry{coords: loc, id: -1},
		next:  k,
	}
	if idx.tree == nil || len(loc) != idx.dims || !finite(loc) {
		it.exhausted = true
	}
	return it
}

// NeighborIter produces the points of an Index in order of increasing
// distance from a query location (ties broken by slot), skipping points
// whose robustness weight is zero. It is finite and can be restarted with
// Reset. A NeighborIter must not be shared between goroutines.
type NeighborIter struct {
	idx   *Index
	query entry

	// buf holds the confirmed prefix of the distance ordering
	buf []Neighbor
	pos int

	next      int
	exhausted bool
}

// Next returns the next neighbour, or false once the index is exhausted
func (it *NeighborIter) Next() (Neighbor, bool) {
	for {
		for it.pos < len(it.buf) {
			n := it.buf[it.pos]
			it.pos++
			w := it.idx.weights[n.ID]
			if w == 0 {
				continue
			}
			n.Weight = w
			return n, true
		}
		if it.exhausted {
			return Neighbor{}, false
		}
		it.fetch()
	}
}

// Take appends up to k further neighbours to dst
func (it *NeighborIter) Take(k int, dst []Neighbor) []Neighbor {
	for i := 0; i < k; i++ {
		n, ok := it.Next()
		if !ok {
			break
		}
		dst = append(dst, n)
	}
	return dst
}

// Reset restarts the sequence from the nearest point
func (it *NeighborIter) Reset() { it.pos = 0 }

// fetch asks the tree for the nearest it.next entries and extends the
// confirmed prefix. Entries tied with the farthest returned entry are held
// back unless the tree is exhausted, since the tree may have dropped other
// members of the tie.
func (it *NeighborIter) fetch() {
	k := it.next
	keeper := kdtree.NewNKeeper(k)
	it.idx.tree.NearestSet(keeper, it.query)

	found := make([]Neighbor, 0, k)
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		e := item.Comparable.(entry)
		p := it.idx.points[e.id]
		found = append(found, Neighbor{ID: e.id, Coords: p.Coords, Value: p.Value, Dist: item.Dist})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Dist != found[j].Dist {
			return found[i].Dist < found[j].Dist
		}
		return found[i].ID < found[j].ID
	})

	if len(found) < k || k >= len(it.idx.points) {
		it.buf = found
		it.exhausted = true
		return
	}

	last := found[len(found)-1].Dist
	cut := len(found)
	for cut > 0 && found[cut-1].Dist == last {
		cut--
	}
	if cut > len(it.buf) {
		it.buf = found[:cut]
	}
	it.next = 2 * k
	if it.next > len(it.idx.points) {
		it.next = len(it.idx.points)
	}
}

func finite(loc []float64) bool {
	for _, v := range loc {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
