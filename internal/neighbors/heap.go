package neighbors

// candidate is a scored entry during a k-nearest search.
type candidate struct {
	id    int
	dist2 float64
}

// worse reports whether a ranks after b: farther, or equally far with a
// larger id.
func worse(a, b candidate) bool {
	if a.dist2 != b.dist2 {
		return a.dist2 > b.dist2
	}
	return a.id > b.id
}

// boundedHeap keeps the k best candidates seen so far. The root is the
// worst kept candidate so it can be evicted in O(log k).
type boundedHeap struct {
	k     int
	items []candidate
}

func newBoundedHeap(k int) *boundedHeap {
	return &boundedHeap{k: k, items: make([]candidate, 0, k)}
}

func (h *boundedHeap) full() bool {
	return len(h.items) >= h.k
}

// top returns the worst kept candidate.
func (h *boundedHeap) top() candidate {
	return h.items[0]
}

// offer inserts c if the heap has room or c beats the current worst.
func (h *boundedHeap) offer(c candidate) {
	if h.k <= 0 {
		return
	}
	if !h.full() {
		h.items = append(h.items, c)
		h.siftUp(len(h.items) - 1)
		return
	}
	if !worse(h.items[0], c) {
		return
	}
	h.items[0] = c
	h.siftDown(0)
}

// sorted drains the heap into best-first order.
func (h *boundedHeap) sorted() []candidate {
	out := make([]candidate, len(h.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.items[0]
		last := len(h.items) - 1
		h.items[0] = h.items[last]
		h.items = h.items[:last]
		if last > 0 {
			h.siftDown(0)
		}
	}
	return out
}

func (h *boundedHeap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(h.items[i], h.items[p]) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *boundedHeap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && worse(h.items[r], h.items[l]) {
			best = r
		}
		if !worse(h.items[best], h.items[i]) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
