package neighbors

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/abdulachik/bookrec/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeBooks() []features.Vector {
	return []features.Vector{
		{1, 1, 0.5, 100.0 / 1100.0},
		{1, 1, 0, 0},
		{1, 1, 1, 1},
	}
}

// randomVectors quantizes coordinates to a small grid so exact distance ties
// are common.
func randomVectors(rng *rand.Rand, n, dim int) []features.Vector {
	vectors := make([]features.Vector, n)
	for i := range vectors {
		v := make(features.Vector, dim)
		for d := range v {
			v[d] = float64(rng.Intn(5)) / 4
		}
		vectors[i] = v
	}
	return vectors
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmBallTree, false},
		{"balltree", AlgorithmBallTree, false},
		{"brute", AlgorithmBrute, false},
		{"kdtree", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	for _, algo := range []Algorithm{AlgorithmBallTree, AlgorithmBrute} {
		t.Run(string(algo), func(t *testing.T) {
			table, err := Build(ctx, threeBooks(), Options{K: 5, Algorithm: algo})
			require.NoError(t, err)
			assert.Equal(t, 3, table.Len())
			assert.Equal(t, 5, table.K())

			ids, err := table.IDs(0)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2}, ids)

			list, err := table.Neighbors(0)
			require.NoError(t, err)
			assert.InDelta(t, 0.5082, list[0].Distance, 0.001)
			assert.InDelta(t, 1.0375, list[1].Distance, 0.001)

			ids, err = table.IDs(1)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 2}, ids)

			ids, err = table.IDs(2)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1}, ids)
		})
	}
}

func TestBuild_EdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		table, err := Build(ctx, nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, 0, table.Len())
		assert.Equal(t, DefaultK, table.K())
	})

	t.Run("single entry has no neighbors", func(t *testing.T) {
		table, err := Build(ctx, []features.Vector{{1, 2}}, Options{})
		require.NoError(t, err)
		list, err := table.Neighbors(0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("k larger than catalog", func(t *testing.T) {
		table, err := Build(ctx, threeBooks(), Options{K: 50})
		require.NoError(t, err)
		list, err := table.Neighbors(2)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("duplicates never include self", func(t *testing.T) {
		vectors := []features.Vector{{0, 0}, {0, 0}, {0, 0}, {1, 1}}
		table, err := Build(ctx, vectors, Options{K: 2})
		require.NoError(t, err)

		ids, err := table.IDs(1)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, ids)
	})

	t.Run("negative k", func(t *testing.T) {
		_, err := Build(ctx, threeBooks(), Options{K: -1})
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := Build(ctx, threeBooks(), Options{Algorithm: "annoy"})
		assert.Error(t, err)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Build(ctx, []features.Vector{{1, 2}, {1}}, Options{})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Build(cctx, randomVectors(rand.New(rand.NewSource(1)), 500, 4), Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vectors := randomVectors(rng, 700, 6)

	table, err := Build(context.Background(), vectors, Options{K: 5, LeafSize: 8, Workers: 3})
	require.NoError(t, err)

	for id := 0; id < table.Len(); id++ {
		list, err := table.Neighbors(id)
		require.NoError(t, err)
		require.Len(t, list, 5)

		for i, nb := range list {
			assert.NotEqual(t, id, nb.ID)
			assert.GreaterOrEqual(t, nb.ID, 0)
			assert.Less(t, nb.ID, len(vectors))
			assert.InDelta(t, math.Sqrt(squaredL2(vectors[id], vectors[nb.ID])), nb.Distance, 1e-12)
			if i > 0 {
				assert.GreaterOrEqual(t, nb.Distance, list[i-1].Distance)
			}
		}
	}
}

func TestBuild_BallTreeMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for _, dim := range []int{2, 5, 12} {
		vectors := randomVectors(rng, 400, dim)

		brute, err := Build(ctx, vectors, Options{K: 5, Algorithm: AlgorithmBrute})
		require.NoError(t, err)

		for _, leaf := range []int{1, 4, 40} {
			tree, err := Build(ctx, vectors, Options{K: 5, Algorithm: AlgorithmBallTree, LeafSize: leaf})
			require.NoError(t, err)
			assert.Equal(t, brute.Lists(), tree.Lists(), "dim=%d leaf=%d", dim, leaf)
		}
	}
}

func TestTable_Neighbors_NotFound(t *testing.T) {
	table, err := Build(context.Background(), threeBooks(), Options{})
	require.NoError(t, err)

	_, err = table.Neighbors(3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = table.IDs(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromLists(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		lists := [][]Neighbor{
			{{ID: 1, Distance: 0.5}},
			{{ID: 0, Distance: 0.5}},
		}
		table, err := FromLists(1, lists)
		require.NoError(t, err)
		ids, err := table.IDs(1)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, ids)
	})

	tests := []struct {
		name  string
		k     int
		lists [][]Neighbor
	}{
		{"zero k", 0, nil},
		{"self reference", 1, [][]Neighbor{{{ID: 0}}}},
		{"out of range", 1, [][]Neighbor{{{ID: 4}}}},
		{"too many", 1, [][]Neighbor{{{ID: 1}, {ID: 2}}, nil, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLists(tt.k, tt.lists)
			assert.Error(t, err)
		})
	}
}

func TestBoundedHeap(t *testing.T) {
	h := newBoundedHeap(3)
	for _, c := range []candidate{
		{id: 4, dist2: 1},
		{id: 1, dist2: 3},
		{id: 2, dist2: 1},
		{id: 0, dist2: 2},
		{id: 3, dist2: 1},
	} {
		h.offer(c)
	}

	got := h.sorted()
	assert.Equal(t, []candidate{{id: 2, dist2: 1}, {id: 3, dist2: 1}, {id: 4, dist2: 1}}, got)
}

func BenchmarkBuild(b *testing.B) {
	vectors := randomVectors(rand.New(rand.NewSource(1)), 5000, 8)
	for _, algo := range []Algorithm{AlgorithmBallTree, AlgorithmBrute} {
		b.Run(string(algo), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := Build(context.Background(), vectors, Options{Algorithm: algo}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
