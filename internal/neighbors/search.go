package neighbors

import (
	"math"

	"github.com/abdulachik/bookrec/internal/features"
)

// searcher finds the k nearest vectors to q, never returning exclude.
// Results are ordered by ascending distance, then ascending id.
type searcher interface {
	search(q features.Vector, k, exclude int) []candidate
}

func squaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// bruteForce scans every vector per query: O(N) per query, O(N^2) for a
// full table. It is the reference the ball tree is checked against and is
// adequate for catalogs of a few thousand entries.
type bruteForce struct {
	vectors []features.Vector
}

func (b *bruteForce) search(q features.Vector, k, exclude int) []candidate {
	h := newBoundedHeap(k)
	for id, v := range b.vectors {
		if id == exclude {
			continue
		}
		h.offer(candidate{id: id, dist2: squaredL2(q, v)})
	}
	return h.sorted()
}

// ballNode covers order[start:end] with a ball around center.
type ballNode struct {
	center      []float64
	radius      float64
	start, end  int
	left, right *ballNode
}

// ballTree is an exact metric tree. Building is O(N log N) expected using
// median selection on the widest dimension.
type ballTree struct {
	vectors  []features.Vector
	order    []int
	root     *ballNode
	leafSize int
}

func newBallTree(vectors []features.Vector, leafSize int) *ballTree {
	if leafSize < 1 {
		leafSize = DefaultLeafSize
	}
	t := &ballTree{
		vectors:  vectors,
		order:    make([]int, len(vectors)),
		leafSize: leafSize,
	}
	for i := range t.order {
		t.order[i] = i
	}
	if len(vectors) > 0 {
		t.root = t.build(0, len(vectors))
	}
	return t
}

func (t *ballTree) build(start, end int) *ballNode {
	dim := len(t.vectors[t.order[start]])
	node := &ballNode{
		center: make([]float64, dim),
		start:  start,
		end:    end,
	}

	n := float64(end - start)
	for _, id := range t.order[start:end] {
		for d, x := range t.vectors[id] {
			node.center[d] += x
		}
	}
	for d := range node.center {
		node.center[d] /= n
	}
	for _, id := range t.order[start:end] {
		node.radius = math.Max(node.radius, math.Sqrt(squaredL2(node.center, t.vectors[id])))
	}

	if end-start <= t.leafSize {
		return node
	}

	split, spread := t.widestDimension(start, end, dim)
	if spread == 0 {
		// every point in the range is identical
		return node
	}

	mid := start + (end-start)/2
	t.selectNth(start, end-1, mid, split)
	node.left = t.build(start, mid)
	node.right = t.build(mid, end)
	return node
}

func (t *ballTree) widestDimension(start, end, dim int) (int, float64) {
	best, bestSpread := 0, 0.0
	for d := 0; d < dim; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, id := range t.order[start:end] {
			x := t.vectors[id][d]
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
		if spread := hi - lo; spread > bestSpread {
			best, bestSpread = d, spread
		}
	}
	return best, bestSpread
}

// selectNth partially orders order[lo:hi+1] on dimension dim so that
// position nth holds the element that would be there if fully sorted.
// Ties on the coordinate are broken by id, so keys are distinct.
func (t *ballTree) selectNth(lo, hi, nth, dim int) {
	less := func(a, b int) bool {
		va, vb := t.vectors[a][dim], t.vectors[b][dim]
		if va != vb {
			return va < vb
		}
		return a < b
	}

	for lo < hi {
		mid := lo + (hi-lo)/2
		t.order[mid], t.order[hi] = t.order[hi], t.order[mid]
		pivot := t.order[hi]
		store := lo
		for i := lo; i < hi; i++ {
			if less(t.order[i], pivot) {
				t.order[i], t.order[store] = t.order[store], t.order[i]
				store++
			}
		}
		t.order[store], t.order[hi] = t.order[hi], t.order[store]

		switch {
		case nth == store:
			return
		case nth < store:
			hi = store - 1
		default:
			lo = store + 1
		}
	}
}

func (t *ballTree) search(q features.Vector, k, exclude int) []candidate {
	h := newBoundedHeap(k)
	if t.root != nil && k > 0 {
		t.visit(t.root, q, exclude, h)
	}
	return h.sorted()
}

// pruneSlack keeps rounding in the ball bound from discarding a point that
// ties the current k-th distance.
const pruneSlack = 1e-9

func (t *ballTree) visit(n *ballNode, q features.Vector, exclude int, h *boundedHeap) {
	if h.full() {
		lb := math.Sqrt(squaredL2(q, n.center)) - n.radius
		if lb > 0 && lb*lb > h.top().dist2*(1+pruneSlack)+pruneSlack {
			return
		}
	}

	if n.left == nil {
		for _, id := range t.order[n.start:n.end] {
			if id == exclude {
				continue
			}
			h.offer(candidate{id: id, dist2: squaredL2(q, t.vectors[id])})
		}
		return
	}

	first, second := n.left, n.right
	if squaredL2(q, n.right.center) < squaredL2(q, n.left.center) {
		first, second = n.right, n.left
	}
	t.visit(first, q, exclude, h)
	t.visit(second, q, exclude, h)
}
