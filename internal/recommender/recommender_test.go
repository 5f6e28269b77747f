package recommender

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/abdulachik/bookrec/internal/catalog"
	"github.com/abdulachik/bookrec/internal/neighbors"
	"github.com/abdulachik/bookrec/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeBooks(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Record{
		{Title: "Harry Potter and the Sorcerer's Stone", AverageRating: 4.5, RatingsCount: 1000, LanguageCode: "eng"},
		{Title: "Harry Potter and the Chamber of Secrets", AverageRating: 4.3, RatingsCount: 900, LanguageCode: "eng"},
		{Title: "The Hobbit", AverageRating: 4.7, RatingsCount: 2000, LanguageCode: "eng"},
	})
	require.NoError(t, err)
	return cat
}

func publishedEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	snap, err := Build(context.Background(), threeBooks(t), opts)
	require.NoError(t, err)
	e := NewEngine(nil)
	e.Publish(snap)
	return e
}

func titles(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestEngine_Recommend(t *testing.T) {
	e := publishedEngine(t, Options{})

	t.Run("substring match", func(t *testing.T) {
		res, err := e.Recommend("Harry Potter")
		require.NoError(t, err)
		assert.Equal(t, "Harry Potter and the Sorcerer's Stone", res.MatchedTitle())
		assert.Equal(t, resolver.MethodSubstring, res.Match.Method)
		assert.Equal(t, []string{"Harry Potter and the Chamber of Secrets", "The Hobbit"}, titles(res.Recommendations))
		assert.InDelta(t, 0.5082, res.Recommendations[0].Distance, 0.001)
	})

	t.Run("fuzzy match", func(t *testing.T) {
		res, err := e.Recommend("the hobit")
		require.NoError(t, err)
		assert.Equal(t, "The Hobbit", res.MatchedTitle())
		assert.Equal(t, resolver.MethodFuzzy, res.Match.Method)
		assert.Equal(t, []string{"Harry Potter and the Sorcerer's Stone", "Harry Potter and the Chamber of Secrets"}, titles(res.Recommendations))
	})

	t.Run("no match", func(t *testing.T) {
		_, err := e.Recommend("Hary Poter")
		assert.ErrorIs(t, err, resolver.ErrNoMatch)
		assert.NotErrorIs(t, err, ErrInternal)
	})

	t.Run("matched entry never recommended", func(t *testing.T) {
		for _, q := range []string{"harry", "chamber", "hobbit"} {
			res, err := e.Recommend(q)
			require.NoError(t, err)
			for _, r := range res.Recommendations {
				assert.NotEqual(t, res.Match.Entry.ID, r.ID)
			}
		}
	})
}

func TestEngine_Limit(t *testing.T) {
	e := publishedEngine(t, Options{Limit: 1})

	res, err := e.Recommend("Harry Potter")
	require.NoError(t, err)
	assert.Equal(t, []string{"Harry Potter and the Chamber of Secrets"}, titles(res.Recommendations))
}

func TestEngine_Suggest(t *testing.T) {
	e := publishedEngine(t, Options{})

	got, err := e.Suggest("Harry", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Harry Potter and the Sorcerer's Stone", "Harry Potter and the Chamber of Secrets"}, got)

	got, err = e.Suggest("Harry", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = e.Suggest("H", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_Unavailable(t *testing.T) {
	e := NewEngine(nil)
	assert.False(t, e.Ready())

	_, err := e.Recommend("Harry Potter")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = e.Suggest("Harry", 10)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = e.Resolve("Harry")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = e.Stats()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEngine_InternalError(t *testing.T) {
	cat := threeBooks(t)
	snap, err := Build(context.Background(), cat, Options{})
	require.NoError(t, err)

	// a table that lost the last entry
	short, err := neighbors.FromLists(5, [][]neighbors.Neighbor{
		{{ID: 1, Distance: 0.5}},
		{{ID: 0, Distance: 0.5}},
	})
	require.NoError(t, err)
	broken := *snap
	broken.Table = short

	e := NewEngine(nil)
	e.Publish(&broken)

	_, err = e.Recommend("The Hobbit")
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, neighbors.ErrNotFound)

	res, err := e.Recommend("Harry Potter")
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 1)
}

func TestEngine_Stats(t *testing.T) {
	e := publishedEngine(t, Options{K: 4, Algorithm: neighbors.AlgorithmBrute})

	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 1, stats.Languages)
	assert.Equal(t, 4, stats.Dimension)
	assert.Equal(t, 4, stats.K)
	assert.Equal(t, DefaultLimit, stats.Limit)
	assert.Equal(t, neighbors.AlgorithmBrute, stats.Algorithm)
	assert.Equal(t, "catalog", stats.Source)
	assert.False(t, stats.BuiltAt.IsZero())
}

func TestRestore(t *testing.T) {
	cat := threeBooks(t)
	built, err := Build(context.Background(), cat, Options{})
	require.NoError(t, err)

	table, err := neighbors.FromLists(built.Table.K(), built.Table.Lists())
	require.NoError(t, err)
	restored, err := Restore(cat, table, Options{})
	require.NoError(t, err)
	assert.Equal(t, "store", restored.Source)
	assert.Equal(t, built.Vectors, restored.Vectors)

	a, b := NewEngine(nil), NewEngine(nil)
	a.Publish(built)
	b.Publish(restored)
	for _, q := range []string{"Harry Potter", "hobbit", "the hobit", "chamber"} {
		want, err := a.Recommend(q)
		require.NoError(t, err)
		got, err := b.Recommend(q)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("size mismatch", func(t *testing.T) {
		short, err := neighbors.FromLists(5, [][]neighbors.Neighbor{{}})
		require.NoError(t, err)
		_, err = Restore(cat, short, Options{})
		assert.Error(t, err)
	})
}

func TestBuild_Errors(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		records := make([]catalog.Record, 300)
		for i := range records {
			records[i] = catalog.Record{Title: fmt.Sprintf("Book %d", i), AverageRating: float64(i%50) / 10, RatingsCount: int64(i), LanguageCode: "eng"}
		}
		cat, err := catalog.New(records)
		require.NoError(t, err)

		_, err = Build(ctx, cat, Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("bad algorithm", func(t *testing.T) {
		_, err := Build(context.Background(), threeBooks(t), Options{Algorithm: "lsh"})
		assert.Error(t, err)
	})
}

func TestEngine_ConcurrentPublish(t *testing.T) {
	cat := threeBooks(t)
	first, err := Build(context.Background(), cat, Options{})
	require.NoError(t, err)
	second, err := Build(context.Background(), cat, Options{Algorithm: neighbors.AlgorithmBrute})
	require.NoError(t, err)

	e := NewEngine(nil)
	e.Publish(first)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				res, err := e.Recommend("Harry Potter")
				if assert.NoError(t, err) {
					assert.Equal(t, "Harry Potter and the Chamber of Secrets", res.Recommendations[0].Title)
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			e.Publish(second)
		} else {
			e.Publish(first)
		}
	}
	wg.Wait()
}
