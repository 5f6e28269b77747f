// Package catalog holds the immutable set of books the recommender serves.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

var (
	// ErrSchema is returned when the catalog source lacks required fields or
	// no usable records remain. The system must refuse to serve on it.
	ErrSchema = errors.New("catalog schema error")

	// ErrDomain is returned when a record value is outside its domain,
	// e.g. an average rating outside [0, 5].
	ErrDomain = errors.New("catalog domain error")
)

// Required column names in a catalog source.
const (
	ColumnTitle         = "title"
	ColumnAverageRating = "average_rating"
	ColumnRatingsCount  = "ratings_count"
	ColumnLanguageCode  = "language_code"
)

// RequiredColumns lists the columns every catalog source must provide.
var RequiredColumns = []string{ColumnTitle, ColumnAverageRating, ColumnRatingsCount, ColumnLanguageCode}

// MaxRating is the upper bound of an average rating.
const MaxRating = 5.0

// Record is a raw catalog row before validation.
type Record struct {
	Title         string
	AverageRating float64
	RatingsCount  int64
	LanguageCode  string
}

// Entry is a validated catalog book. ID is its position in the catalog.
type Entry struct {
	ID            int
	Title         string
	AverageRating float64
	RatingsCount  int64
	LanguageCode  string
}

// Catalog is an ordered, read-only sequence of entries.
// It is safe for concurrent use once constructed.
type Catalog struct {
	entries      []Entry
	folded       []string
	firstByTitle map[string]int
}

// Validate checks a record against the catalog domain.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: missing %s", ErrSchema, ColumnTitle)
	}
	if strings.TrimSpace(r.LanguageCode) == "" {
		return fmt.Errorf("%w: missing %s", ErrSchema, ColumnLanguageCode)
	}
	if math.IsNaN(r.AverageRating) || r.AverageRating < 0 || r.AverageRating > MaxRating {
		return fmt.Errorf("%w: %s %v outside [0, %v]", ErrDomain, ColumnAverageRating, r.AverageRating, MaxRating)
	}
	if r.RatingsCount < 0 {
		return fmt.Errorf("%w: negative %s %d", ErrDomain, ColumnRatingsCount, r.RatingsCount)
	}
	return nil
}

// New builds a catalog from records. Invalid records are dropped and logged;
// if none remain, ErrSchema is returned.
func New(records []Record) (*Catalog, error) {
	entries := make([]Entry, 0, len(records))
	rejected := 0
	for i, r := range records {
		if err := r.Validate(); err != nil {
			rejected++
			slog.Warn("rejecting catalog record", "row", i, "title", r.Title, "error", err)
			continue
		}
		entries = append(entries, Entry{
			ID:            len(entries),
			Title:         r.Title,
			AverageRating: r.AverageRating,
			RatingsCount:  r.RatingsCount,
			LanguageCode:  strings.TrimSpace(r.LanguageCode),
		})
	}

	if len(entries) == 0 {
		if rejected > 0 {
			return nil, fmt.Errorf("%w: all %d records invalid", ErrSchema, rejected)
		}
		return nil, fmt.Errorf("%w: catalog is empty", ErrSchema)
	}

	c := &Catalog{
		entries:      entries,
		folded:       make([]string, len(entries)),
		firstByTitle: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		c.folded[i] = Fold(e.Title)
		if _, ok := c.firstByTitle[e.Title]; !ok {
			c.firstByTitle[e.Title] = i
		}
	}

	slog.Debug("catalog built", "entries", len(entries), "rejected", rejected)
	return c, nil
}

// Fold normalizes text for case-insensitive matching.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the entry with the given ID.
func (c *Catalog) Entry(id int) (Entry, bool) {
	if id < 0 || id >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[id], true
}

// Entries returns the entries in catalog order. Callers must not modify it.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// FoldedTitle returns the case-folded title of entry id.
func (c *Catalog) FoldedTitle(id int) string {
	return c.folded[id]
}

// Lookup returns the first entry whose title equals title exactly.
func (c *Catalog) Lookup(title string) (Entry, bool) {
	id, ok := c.firstByTitle[title]
	if !ok {
		return Entry{}, false
	}
	return c.entries[id], true
}

// Records converts the catalog back into records, e.g. for persistence.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.entries))
	for i, e := range c.entries {
		out[i] = Record{
			Title:         e.Title,
			AverageRating: e.AverageRating,
			RatingsCount:  e.RatingsCount,
			LanguageCode:  e.LanguageCode,
		}
	}
	return out
}

// Languages returns the number of entries per language code.
func (c *Catalog) Languages() map[string]int {
	counts := make(map[string]int)
	for _, e := range c.entries {
		counts[e.LanguageCode]++
	}
	return counts
}
