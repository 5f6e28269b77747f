package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdulachik/bookrec/internal/api"
	"github.com/abdulachik/bookrec/internal/config"
	"github.com/abdulachik/bookrec/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const booksCSV = `bookID,title,authors,average_rating,isbn,language_code,num_pages,ratings_count
1,Harry Potter and the Sorcerer's Stone,J.K. Rowling,4.5,0439554934,eng,320,1000
2,Harry Potter and the Chamber of Secrets,J.K. Rowling,4.3,0439554896,eng,352,900
3,The Hobbit,J.R.R. Tolkien,4.7,0618260307,eng,366,2000
4,Broken,row
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "books.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte(booksCSV), 0644))

	return &config.Config{
		CatalogPath:       catalogPath,
		DatabasePath:      filepath.Join(dir, "bookrec.db"),
		NeighborsK:        5,
		NeighborAlgorithm: "balltree",
		RecommendLimit:    5,
		ResolveCutoff:     0.5,
		SuggestCutoff:     0.4,
		SuggestLimit:      10,
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_Load(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first := newApp(t, cfg)
	assert.False(t, first.Engine.Ready())

	snap, err := first.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "catalog", snap.Source)
	assert.Equal(t, 3, snap.Catalog.Len())
	assert.True(t, first.Engine.Ready())
	assert.True(t, first.Health.IsOverallHealthy())

	want, err := first.Engine.Recommend("Harry Potter")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newApp(t, cfg)
	snap, err = second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "store", snap.Source)

	got, err := second.Engine.Recommend("Harry Potter")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "Harry Potter and the Chamber of Secrets", got.Recommendations[0].Title)
}

func TestApp_Load_RebuildsOnDifferentK(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := newApp(t, cfg)
	_, err := a.Build(ctx)
	require.NoError(t, err)

	a.Config.NeighborsK = 1
	snap, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "catalog", snap.Source)
	assert.Equal(t, 1, snap.Table.K())

	stored, err := a.Store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Table.K())
	assert.Equal(t, cfg.CatalogPath, stored.Meta.CatalogPath)
}

func TestApp_Load_RebuildsOnCatalogChange(t *testing.T) {
	ctx := context.Background()

	t.Run("different catalog path", func(t *testing.T) {
		cfg := testConfig(t)
		a := newApp(t, cfg)
		_, err := a.Build(ctx)
		require.NoError(t, err)

		other := filepath.Join(t.TempDir(), "other.csv")
		require.NoError(t, os.WriteFile(other, []byte(`title,average_rating,ratings_count,language_code
Dune,4.2,500,eng
Emma,4.0,300,eng
`), 0644))
		a.Config.CatalogPath = other

		snap, err := a.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "catalog", snap.Source)
		assert.Equal(t, 2, snap.Catalog.Len())

		stored, err := a.Store.LoadSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, other, stored.Meta.CatalogPath)
		assert.Len(t, stored.Records, 2)
	})

	t.Run("edited catalog", func(t *testing.T) {
		cfg := testConfig(t)
		a := newApp(t, cfg)
		_, err := a.Build(ctx)
		require.NoError(t, err)

		edited := booksCSV + "5,Dune,Frank Herbert,4.2,0441013597,eng,604,500\n"
		require.NoError(t, os.WriteFile(cfg.CatalogPath, []byte(edited), 0644))

		snap, err := a.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "catalog", snap.Source)
		assert.Equal(t, 4, snap.Catalog.Len())

		snap, err = a.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "store", snap.Source)
		assert.Equal(t, 4, snap.Catalog.Len())
	})

	t.Run("missing catalog serves stored index", func(t *testing.T) {
		cfg := testConfig(t)
		a := newApp(t, cfg)
		_, err := a.Build(ctx)
		require.NoError(t, err)

		require.NoError(t, os.Remove(cfg.CatalogPath))
		chdir(t, t.TempDir())

		snap, err := a.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "store", snap.Source)
		assert.Equal(t, 3, snap.Catalog.Len())
	})
}

func TestApp_Build_SaveFailureDegrades(t *testing.T) {
	a := newApp(t, testConfig(t))
	require.NoError(t, a.Store.Close())

	snap, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Catalog.Len())
	assert.True(t, a.Engine.Ready())
	assert.True(t, a.Health.IsOverallHealthy())
	assert.True(t, a.Health.IsDegraded())

	st := a.Health.GetStatus(api.ComponentStore)
	require.NotNil(t, st)
	assert.True(t, st.Degraded)
	assert.Error(t, st.LastError)
}

func TestApp_Build_MissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogPath = filepath.Join(t.TempDir(), "nested", "missing.csv")
	chdir(t, t.TempDir())

	a := newApp(t, cfg)
	_, err := a.Load(context.Background())
	assert.Error(t, err)
	assert.False(t, a.Engine.Ready())
	assert.False(t, a.Health.IsOverallHealthy())
	assert.False(t, a.Health.GetStatus(api.ComponentCatalog).Healthy)

	_, err = a.Store.LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, db.ErrNoSnapshot)
}

func TestApp_New_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.DatabasePath = filepath.Join(blocker, "bookrec.db")

	a, err := New(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, a)
}

func TestApp_Options(t *testing.T) {
	cfg := testConfig(t)
	cfg.NeighborAlgorithm = "brute"
	cfg.BuildWorkers = 2

	opts := newApp(t, cfg).Options()
	assert.Equal(t, 5, opts.K)
	assert.Equal(t, "brute", string(opts.Algorithm))
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 0.5, opts.ResolveCutoff)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
