// Package autocomplete suggests catalog titles for a partial query.
package autocomplete

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/abdulachik/bookrec/internal/catalog"
	"github.com/abdulachik/bookrec/internal/similarity"
)

// Defaults.
const (
	DefaultMaxResults = 10
	DefaultCutoff     = 0.4
	MinQueryLength    = 2
)

// Options configures a Matcher.
type Options struct {
	Cutoff float64 // fuzzy fill threshold in (0, 1] (default: 0.4)
}

// Matcher produces suggestions from a fixed catalog. It is safe for
// concurrent use.
type Matcher struct {
	cat    *catalog.Catalog
	cutoff float64
}

// New creates a matcher over cat.
func New(cat *catalog.Catalog, opts Options) *Matcher {
	if opts.Cutoff <= 0 || opts.Cutoff > 1 {
		opts.Cutoff = DefaultCutoff
	}
	return &Matcher{cat: cat, cutoff: opts.Cutoff}
}

type scored struct {
	title string
	score float64
}

// Suggest returns up to maxResults distinct titles for query. Titles that
// contain the query come first in catalog order; remaining slots are filled
// with the most similar other titles. A query shorter than two characters
// yields no suggestions.
func (m *Matcher) Suggest(query string, maxResults int) []string {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	q := catalog.Fold(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return []string{}
	}

	results := make([]string, 0, maxResults)
	taken := make(map[string]bool)
	for id, e := range m.cat.Entries() {
		if len(results) == maxResults {
			return results
		}
		if taken[e.Title] || !strings.Contains(m.cat.FoldedTitle(id), q) {
			continue
		}
		taken[e.Title] = true
		results = append(results, e.Title)
	}
	if len(results) == maxResults {
		return results
	}

	scorer := similarity.NewScorer(q)
	var fuzzy []scored
	for id, e := range m.cat.Entries() {
		if taken[e.Title] {
			continue
		}
		taken[e.Title] = true
		if score, ok := scorer.Above(m.cat.FoldedTitle(id), m.cutoff); ok {
			fuzzy = append(fuzzy, scored{title: e.Title, score: score})
		}
	}
	sort.SliceStable(fuzzy, func(i, j int) bool {
		return fuzzy[i].score > fuzzy[j].score
	})

	for _, s := range fuzzy {
		if len(results) == maxResults {
			break
		}
		results = append(results, s.title)
	}
	return results
}
