package recommender

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/abdulachik/bookrec/internal/neighbors"
	"github.com/abdulachik/bookrec/internal/resolver"
)

var (
	// ErrUnavailable is returned while no snapshot has been published.
	ErrUnavailable = errors.New("recommender not loaded")

	// ErrInternal wraps catalog or table inconsistencies.
	ErrInternal = errors.New("internal recommender error")
)

// Recommendation is one similar book.
type Recommendation struct {
	ID       int
	Title    string
	Distance float64
}

// Result is the answer to a recommendation query.
type Result struct {
	Query           string
	Match           resolver.Match
	Recommendations []Recommendation
}

// MatchedTitle returns the catalog title the query resolved to.
func (r *Result) MatchedTitle() string {
	return r.Match.Title
}

// Stats describes the published snapshot.
type Stats struct {
	Entries       int
	Languages     int
	Dimension     int
	K             int
	Limit         int
	Algorithm     neighbors.Algorithm
	Source        string
	BuiltAt       time.Time
	BuildDuration time.Duration
}

// Engine serves queries from the most recently published snapshot. Reads
// never block; Publish swaps the snapshot atomically.
type Engine struct {
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// NewEngine creates an engine with no snapshot. A nil logger uses the
// default slog logger.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Publish makes s the snapshot used by subsequent queries.
func (e *Engine) Publish(s *Snapshot) {
	e.current.Store(s)
	e.logger.Info("snapshot published", "entries", s.Catalog.Len(), "source", s.Source)
}

// Snapshot returns the published snapshot, or nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

func (e *Engine) snapshot() (*Snapshot, error) {
	s := e.current.Load()
	if s == nil {
		return nil, ErrUnavailable
	}
	return s, nil
}

// Resolve maps query onto a catalog entry.
func (e *Engine) Resolve(query string) (resolver.Match, error) {
	s, err := e.snapshot()
	if err != nil {
		return resolver.Match{}, err
	}
	m, err := s.Resolver.Resolve(query)
	if err != nil {
		return resolver.Match{}, e.classify(query, err)
	}
	return m, nil
}

// Recommend resolves query and returns the nearest neighbors of the matched
// entry, nearest first. The matched entry is never among them.
func (e *Engine) Recommend(query string) (*Result, error) {
	s, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	m, err := s.Resolver.Resolve(query)
	if err != nil {
		return nil, e.classify(query, err)
	}

	list, err := s.Table.Neighbors(m.Entry.ID)
	if err != nil {
		return nil, e.classify(query, err)
	}

	limit := min(s.Options.Limit, len(list))
	recs := make([]Recommendation, 0, limit)
	for _, nb := range list[:limit] {
		entry, ok := s.Catalog.Entry(nb.ID)
		if !ok || nb.ID == m.Entry.ID {
			return nil, e.classify(query, fmt.Errorf("%w: bad neighbor %d of entry %d", neighbors.ErrNotFound, nb.ID, m.Entry.ID))
		}
		recs = append(recs, Recommendation{
			ID:       entry.ID,
			Title:    entry.Title,
			Distance: nb.Distance,
		})
	}

	return &Result{
		Query:           query,
		Match:           m,
		Recommendations: recs,
	}, nil
}

// Suggest returns autocomplete titles for query. maxResults <= 0 uses the
// snapshot's configured limit.
func (e *Engine) Suggest(query string, maxResults int) ([]string, error) {
	s, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = s.Options.SuggestLimit
	}
	return s.Matcher.Suggest(query, maxResults), nil
}

// Stats describes the published snapshot.
func (e *Engine) Stats() (Stats, error) {
	s, err := e.snapshot()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Entries:       s.Catalog.Len(),
		Languages:     len(s.Catalog.Languages()),
		Dimension:     s.Encoder.Dim(),
		K:             s.Table.K(),
		Limit:         s.Options.Limit,
		Algorithm:     s.Options.Algorithm,
		Source:        s.Source,
		BuiltAt:       s.BuiltAt,
		BuildDuration: s.BuildDuration,
	}, nil
}

// classify passes user-facing misses through and converts everything else
// into ErrInternal after logging it.
func (e *Engine) classify(query string, err error) error {
	if errors.Is(err, resolver.ErrNoMatch) {
		return err
	}
	e.logger.Error("recommendation failed", "query", query, "error", err)
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
