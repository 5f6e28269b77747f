// Package neighbors precomputes exact Euclidean k-nearest neighbors for every
// catalog entry.
package neighbors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/abdulachik/bookrec/internal/features"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned for an entry id that has no neighbor list.
	// For a consistent catalog this indicates a bug, not a user error.
	ErrNotFound = errors.New("entry not in neighbor table")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrDimensionMismatch is returned when vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Algorithm selects the search structure used to build a table.
type Algorithm string

const (
	// AlgorithmBallTree searches a ball tree. This is the default.
	AlgorithmBallTree Algorithm = "balltree"
	// AlgorithmBrute compares every pair of vectors.
	AlgorithmBrute Algorithm = "brute"
)

// ParseAlgorithm validates an algorithm name. Empty selects the ball tree.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", AlgorithmBallTree:
		return AlgorithmBallTree, nil
	case AlgorithmBrute:
		return AlgorithmBrute, nil
	default:
		return "", fmt.Errorf("unknown neighbor algorithm %q (must be %q or %q)", s, AlgorithmBallTree, AlgorithmBrute)
	}
}

// Defaults.
const (
	DefaultK        = 5
	DefaultLeafSize = 40
)

// Options configures Build.
type Options struct {
	K         int       // neighbors per entry (default: 5)
	Algorithm Algorithm // search structure (default: balltree)
	LeafSize  int       // ball tree leaf size (default: 40)
	Workers   int       // parallel queries (default: runtime.NumCPU())
}

// Neighbor is one entry in a neighbor list.
type Neighbor struct {
	ID       int
	Distance float64
}

// Table maps every entry id to its nearest other entries. It is read-only
// after construction and safe for concurrent use.
type Table struct {
	k     int
	lists [][]Neighbor
}

// Build computes the neighbor list of every vector.
func Build(ctx context.Context, vectors []features.Vector, opts Options) (*Table, error) {
	if opts.K == 0 {
		opts.K = DefaultK
	}
	if opts.K < 0 {
		return nil, ErrInvalidK
	}
	algo, err := ParseAlgorithm(string(opts.Algorithm))
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), len(vectors[0]))
		}
	}

	n := len(vectors)
	k := min(opts.K, max(n-1, 0))

	start := time.Now()
	var s searcher
	switch algo {
	case AlgorithmBrute:
		s = &bruteForce{vectors: vectors}
	default:
		s = newBallTree(vectors, opts.LeafSize)
	}

	lists := make([][]Neighbor, n)
	chunk := max(64, n/(workers*4)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		if gctx.Err() != nil {
			break
		}
		lo := lo
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				lists[i] = toNeighbors(s.search(vectors[i], k, i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build neighbor table: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build neighbor table: %w", err)
	}

	slog.Debug("neighbor table built",
		"entries", n,
		"k", k,
		"algorithm", algo,
		"workers", workers,
		"duration", time.Since(start),
	)

	return &Table{k: opts.K, lists: lists}, nil
}

func toNeighbors(cands []candidate) []Neighbor {
	out := make([]Neighbor, len(cands))
	for i, c := range cands {
		out[i] = Neighbor{ID: c.id, Distance: math.Sqrt(c.dist2)}
	}
	return out
}

// FromLists restores a table from persisted neighbor lists. Every list must
// hold at most k in-range ids, none equal to its own index.
func FromLists(k int, lists [][]Neighbor) (*Table, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	for id, list := range lists {
		if len(list) > k {
			return nil, fmt.Errorf("entry %d has %d neighbors, more than k=%d", id, len(list), k)
		}
		for _, nb := range list {
			if nb.ID == id {
				return nil, fmt.Errorf("entry %d lists itself as a neighbor", id)
			}
			if nb.ID < 0 || nb.ID >= len(lists) {
				return nil, fmt.Errorf("entry %d has out of range neighbor %d", id, nb.ID)
			}
		}
	}
	return &Table{k: k, lists: lists}, nil
}

// K returns the configured neighbor count.
func (t *Table) K() int {
	return t.k
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.lists)
}

// Neighbors returns the neighbor list of id, nearest first.
// The returned slice must not be modified.
func (t *Table) Neighbors(id int) ([]Neighbor, error) {
	if id < 0 || id >= len(t.lists) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t.lists[id], nil
}

// IDs returns the neighbor ids of id, nearest first.
func (t *Table) IDs(id int) ([]int, error) {
	list, err := t.Neighbors(id)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(list))
	for i, nb := range list {
		ids[i] = nb.ID
	}
	return ids, nil
}

// Lists returns every neighbor list, indexed by entry id.
func (t *Table) Lists() [][]Neighbor {
	return t.lists
}
