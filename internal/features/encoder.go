// Package features encodes catalog entries as fixed-width numeric vectors.
//
// The layout of a vector is:
//
//	[rating buckets] [language codes] [scaled average rating] [scaled ratings count]
//
// Bucket and language blocks are one-hot over the categories observed when
// the encoder was fitted. The numeric tail is min-max scaled with catalog
// wide statistics captured at fit time.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/abdulachik/bookrec/internal/catalog"
)

// Vector is the numeric encoding of a catalog entry.
type Vector []float64

// Bucket identifies one of the five rating ranges.
type Bucket int

// Rating buckets. Zero is included in the first bucket.
const (
	Bucket0To1 Bucket = iota
	Bucket1To2
	Bucket2To3
	Bucket3To4
	Bucket4To5
	bucketCount
)

func (b Bucket) String() string {
	switch b {
	case Bucket0To1:
		return "between 0 and 1"
	case Bucket1To2:
		return "between 1 and 2"
	case Bucket2To3:
		return "between 2 and 3"
	case Bucket3To4:
		return "between 3 and 4"
	case Bucket4To5:
		return "between 4 and 5"
	default:
		return fmt.Sprintf("Unknown(%d)", int(b))
	}
}

// BucketOf assigns a rating to its bucket.
func BucketOf(rating float64) (Bucket, error) {
	if math.IsNaN(rating) || rating < 0 || rating > catalog.MaxRating {
		return 0, fmt.Errorf("%w: rating %v outside [0, %v]", catalog.ErrDomain, rating, catalog.MaxRating)
	}
	switch {
	case rating <= 1:
		return Bucket0To1, nil
	case rating <= 2:
		return Bucket1To2, nil
	case rating <= 3:
		return Bucket2To3, nil
	case rating <= 4:
		return Bucket3To4, nil
	default:
		return Bucket4To5, nil
	}
}

// MinMax holds the observed range of one numeric dimension.
type MinMax struct {
	Min float64
	Max float64
}

// Scale maps x into [0, 1] for values inside the fitted range.
// A degenerate range scales everything to 0.
func (m MinMax) Scale(x float64) float64 {
	span := m.Max - m.Min
	if span == 0 {
		return 0
	}
	return (x - m.Min) / span
}

// ScaleParams are the fitted encoding parameters. They must be reused for any
// vector encoded after the fit.
type ScaleParams struct {
	Buckets      []Bucket
	Languages    []string
	Rating       MinMax
	RatingsCount MinMax
}

// Encoder turns entries into vectors using fitted parameters.
type Encoder struct {
	params      ScaleParams
	bucketIndex map[Bucket]int
	langIndex   map[string]int
	dim         int
}

// Fit computes encoding parameters over the whole catalog.
func Fit(entries []catalog.Entry) (*Encoder, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: cannot fit encoder on empty catalog", catalog.ErrSchema)
	}

	seenBuckets := make(map[Bucket]bool)
	seenLangs := make(map[string]bool)
	rating := MinMax{Min: math.Inf(1), Max: math.Inf(-1)}
	count := MinMax{Min: math.Inf(1), Max: math.Inf(-1)}

	for _, e := range entries {
		if e.Title == "" {
			return nil, fmt.Errorf("%w: entry %d has no title", catalog.ErrSchema, e.ID)
		}
		if e.LanguageCode == "" {
			return nil, fmt.Errorf("%w: entry %d has no language code", catalog.ErrSchema, e.ID)
		}
		b, err := BucketOf(e.AverageRating)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		seenBuckets[b] = true
		seenLangs[e.LanguageCode] = true

		rating.Min = math.Min(rating.Min, e.AverageRating)
		rating.Max = math.Max(rating.Max, e.AverageRating)
		c := float64(e.RatingsCount)
		count.Min = math.Min(count.Min, c)
		count.Max = math.Max(count.Max, c)
	}

	params := ScaleParams{
		Rating:       rating,
		RatingsCount: count,
	}
	for b := Bucket(0); b < bucketCount; b++ {
		if seenBuckets[b] {
			params.Buckets = append(params.Buckets, b)
		}
	}
	for lang := range seenLangs {
		params.Languages = append(params.Languages, lang)
	}
	sort.Strings(params.Languages)

	return NewEncoder(params), nil
}

// NewEncoder creates an encoder from previously fitted parameters.
func NewEncoder(params ScaleParams) *Encoder {
	enc := &Encoder{
		params:      params,
		bucketIndex: make(map[Bucket]int, len(params.Buckets)),
		langIndex:   make(map[string]int, len(params.Languages)),
	}
	for i, b := range params.Buckets {
		enc.bucketIndex[b] = i
	}
	offset := len(params.Buckets)
	for i, lang := range params.Languages {
		enc.langIndex[lang] = offset + i
	}
	enc.dim = len(params.Buckets) + len(params.Languages) + 2
	return enc
}

// EncodeAll fits an encoder on entries and encodes every one of them.
func EncodeAll(entries []catalog.Entry) ([]Vector, *Encoder, error) {
	enc, err := Fit(entries)
	if err != nil {
		return nil, nil, err
	}

	vectors := make([]Vector, len(entries))
	for i, e := range entries {
		v, err := enc.Encode(e)
		if err != nil {
			return nil, nil, fmt.Errorf("encode entry %d: %w", e.ID, err)
		}
		vectors[i] = v
	}
	return vectors, enc, nil
}

// Encode returns the vector for e using the fitted parameters.
// Categories not seen at fit time leave their block at zero.
func (enc *Encoder) Encode(e catalog.Entry) (Vector, error) {
	b, err := BucketOf(e.AverageRating)
	if err != nil {
		return nil, err
	}

	v := make(Vector, enc.dim)
	if i, ok := enc.bucketIndex[b]; ok {
		v[i] = 1
	}
	if i, ok := enc.langIndex[e.LanguageCode]; ok {
		v[i] = 1
	}
	v[enc.dim-2] = enc.params.Rating.Scale(e.AverageRating)
	v[enc.dim-1] = enc.params.RatingsCount.Scale(float64(e.RatingsCount))
	return v, nil
}

// Dim returns the vector dimensionality.
func (enc *Encoder) Dim() int {
	return enc.dim
}

// Params returns a copy of the fitted parameters.
func (enc *Encoder) Params() ScaleParams {
	p := enc.params
	p.Buckets = append([]Bucket(nil), enc.params.Buckets...)
	p.Languages = append([]string(nil), enc.params.Languages...)
	return p
}
