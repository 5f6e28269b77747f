// Package recommender ties the catalog, feature encoding, neighbor table and
// query matchers into an immutable snapshot served by an Engine.
package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/bookrec/internal/autocomplete"
	"github.com/abdulachik/bookrec/internal/catalog"
	"github.com/abdulachik/bookrec/internal/features"
	"github.com/abdulachik/bookrec/internal/neighbors"
	"github.com/abdulachik/bookrec/internal/resolver"
)

// DefaultLimit is the number of recommendations returned per query.
const DefaultLimit = 5

// Options configures snapshot construction.
type Options struct {
	K             int                 // neighbors stored per entry (default: 5)
	Algorithm     neighbors.Algorithm // neighbor search structure (default: balltree)
	LeafSize      int                 // ball tree leaf size
	Workers       int                 // parallel neighbor queries (default: NumCPU)
	Limit         int                 // recommendations per query (default: 5)
	ResolveCutoff float64             // fuzzy title threshold (default: 0.5)
	SuggestCutoff float64             // fuzzy suggestion threshold (default: 0.4)
	SuggestLimit  int                 // suggestions when the caller passes none (default: 10)
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = neighbors.DefaultK
	}
	if o.Algorithm == "" {
		o.Algorithm = neighbors.AlgorithmBallTree
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.SuggestLimit <= 0 {
		o.SuggestLimit = autocomplete.DefaultMaxResults
	}
	return o
}

// Snapshot is everything needed to answer queries. It is never modified after
// construction.
type Snapshot struct {
	Catalog  *catalog.Catalog
	Encoder  *features.Encoder
	Vectors  []features.Vector
	Table    *neighbors.Table
	Resolver *resolver.Resolver
	Matcher  *autocomplete.Matcher

	Options       Options
	Source        string
	BuiltAt       time.Time
	BuildDuration time.Duration
}

// Build encodes the catalog and computes the neighbor table.
func Build(ctx context.Context, cat *catalog.Catalog, opts Options) (*Snapshot, error) {
	opts = opts.withDefaults()
	start := time.Now()

	vectors, enc, err := features.EncodeAll(cat.Entries())
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}

	table, err := neighbors.Build(ctx, vectors, neighbors.Options{
		K:         opts.K,
		Algorithm: opts.Algorithm,
		LeafSize:  opts.LeafSize,
		Workers:   opts.Workers,
	})
	if err != nil {
		return nil, err
	}

	s := newSnapshot(cat, enc, vectors, table, opts)
	s.Source = "catalog"
	s.BuildDuration = time.Since(start)

	slog.Info("recommender built",
		"entries", cat.Len(),
		"dimension", enc.Dim(),
		"k", opts.K,
		"algorithm", opts.Algorithm,
		"duration", s.BuildDuration,
	)
	return s, nil
}

// Restore assembles a snapshot from a catalog and a previously built table.
// Vectors are re-encoded so Stats and later Encode calls stay consistent.
func Restore(cat *catalog.Catalog, table *neighbors.Table, opts Options) (*Snapshot, error) {
	opts = opts.withDefaults()
	if table.Len() != cat.Len() {
		return nil, fmt.Errorf("restore snapshot: table has %d entries, catalog has %d", table.Len(), cat.Len())
	}
	opts.K = table.K()

	vectors, enc, err := features.EncodeAll(cat.Entries())
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}

	s := newSnapshot(cat, enc, vectors, table, opts)
	s.Source = "store"
	return s, nil
}

func newSnapshot(cat *catalog.Catalog, enc *features.Encoder, vectors []features.Vector, table *neighbors.Table, opts Options) *Snapshot {
	return &Snapshot{
		Catalog:  cat,
		Encoder:  enc,
		Vectors:  vectors,
		Table:    table,
		Resolver: resolver.New(cat, resolver.Options{Cutoff: opts.ResolveCutoff}),
		Matcher:  autocomplete.New(cat, autocomplete.Options{Cutoff: opts.SuggestCutoff}),
		Options:  opts,
		BuiltAt:  time.Now().UTC(),
	}
}
