// Package resolver maps a free-text title query onto one catalog entry.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdulachik/bookrec/internal/catalog"
	"github.com/abdulachik/bookrec/internal/similarity"
)

var (
	// ErrNoMatch is returned when no title contains or resembles the query.
	ErrNoMatch = errors.New("no similar book title found")

	// ErrLookup is returned when a matched title cannot be found again by
	// exact equality. It means the catalog is inconsistent.
	ErrLookup = errors.New("matched title missing from catalog")
)

// DefaultCutoff is the minimum similarity for a fuzzy match.
const DefaultCutoff = 0.5

// Method records how a query was matched.
type Method string

const (
	MethodSubstring Method = "substring"
	MethodFuzzy     Method = "fuzzy"
)

// Match is the resolved entry for a query.
type Match struct {
	Entry  catalog.Entry
	Title  string
	Method Method
	Score  float64 // 1 for substring matches
}

// Options configures a Resolver.
type Options struct {
	Cutoff float64 // fuzzy threshold in (0, 1] (default: 0.5)
}

// Resolver resolves queries against a fixed catalog. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	cat    *catalog.Catalog
	cutoff float64
}

// New creates a resolver over cat.
func New(cat *catalog.Catalog, opts Options) *Resolver {
	if opts.Cutoff <= 0 || opts.Cutoff > 1 {
		opts.Cutoff = DefaultCutoff
	}
	return &Resolver{cat: cat, cutoff: opts.Cutoff}
}

// Cutoff returns the fuzzy threshold in use.
func (r *Resolver) Cutoff() float64 {
	return r.cutoff
}

// Resolve returns the catalog entry a query refers to.
//
// The first title in catalog order that contains the query wins, even when a
// later title matches it more closely. Only when no title contains the query
// is the most similar title above the cutoff chosen; equal scores go to the
// lexicographically largest title.
func (r *Resolver) Resolve(query string) (Match, error) {
	q := catalog.Fold(query)
	if q == "" {
		return Match{}, fmt.Errorf("%w: empty query", ErrNoMatch)
	}

	title, method, score, ok := r.substring(q)
	if !ok {
		title, score, ok = r.fuzzy(q)
		method = MethodFuzzy
	}
	if !ok {
		return Match{}, fmt.Errorf("%w: %q", ErrNoMatch, strings.TrimSpace(query))
	}

	entry, ok := r.cat.Lookup(title)
	if !ok {
		return Match{}, fmt.Errorf("%w: %q", ErrLookup, title)
	}

	return Match{
		Entry:  entry,
		Title:  entry.Title,
		Method: method,
		Score:  score,
	}, nil
}

func (r *Resolver) substring(q string) (string, Method, float64, bool) {
	for id, e := range r.cat.Entries() {
		if strings.Contains(r.cat.FoldedTitle(id), q) {
			return e.Title, MethodSubstring, 1, true
		}
	}
	return "", "", 0, false
}

func (r *Resolver) fuzzy(q string) (string, float64, bool) {
	scorer := similarity.NewScorer(q)
	seen := make(map[string]bool)

	var (
		best      string
		bestScore float64
		found     bool
	)
	for id, e := range r.cat.Entries() {
		if seen[e.Title] {
			continue
		}
		seen[e.Title] = true

		threshold := r.cutoff
		if found {
			threshold = bestScore
		}
		score, ok := scorer.Above(r.cat.FoldedTitle(id), threshold)
		if !ok {
			continue
		}
		if found && (score < bestScore || (score == bestScore && e.Title <= best)) {
			continue
		}
		best, bestScore, found = e.Title, score, true
	}
	return best, bestScore, found
}
