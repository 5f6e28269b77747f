// Package similarity scores approximate string matches with the
// Ratcliff/Obershelp sequence-matching ratio.
//
// Scores are in [0, 1]: 2*M/T where M is the number of characters in
// matching blocks and T the total length of both strings. Strings are
// compared per Unicode code point and the automatic junk heuristic is on,
// so results agree with difflib.SequenceMatcher(None, candidate, query).
package similarity

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the similarity of query and candidate.
func Ratio(query, candidate string) float64 {
	return NewScorer(query).Score(candidate)
}

// Scorer compares one query against many candidates, reusing the analysis of
// the query between calls. A Scorer is not safe for concurrent use.
type Scorer struct {
	query   string
	matcher *difflib.SequenceMatcher
}

// NewScorer prepares a scorer for query.
func NewScorer(query string) *Scorer {
	return &Scorer{
		query:   query,
		matcher: difflib.NewMatcher(nil, split(query)),
	}
}

// Query returns the string the scorer was built for.
func (s *Scorer) Query() string {
	return s.query
}

// Score returns the full ratio between the query and candidate.
func (s *Scorer) Score(candidate string) float64 {
	s.matcher.SetSeq1(split(candidate))
	return s.matcher.Ratio()
}

// Above reports whether candidate scores at least cutoff, checking the cheap
// upper bounds before computing the full ratio.
func (s *Scorer) Above(candidate string, cutoff float64) (float64, bool) {
	s.matcher.SetSeq1(split(candidate))
	if s.matcher.RealQuickRatio() < cutoff {
		return 0, false
	}
	if s.matcher.QuickRatio() < cutoff {
		return 0, false
	}
	score := s.matcher.Ratio()
	return score, score >= cutoff
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
