package catalog

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// ReadCSV reads catalog records from CSV with a header row.
// Missing required columns yield ErrSchema. Rows that cannot be parsed
// (wrong field count, non-numeric rating or count, empty title or
// language) are skipped.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", ErrSchema)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns %v", ErrSchema, missing)
	}

	width := len(header)
	titleIdx := columns[ColumnTitle]
	ratingIdx := columns[ColumnAverageRating]
	countIdx := columns[ColumnRatingsCount]
	langIdx := columns[ColumnLanguageCode]

	var records []Record
	skipped := 0
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(row) != width {
			skipped++
			continue
		}

		rec, ok := parseRow(row[titleIdx], row[ratingIdx], row[countIdx], row[langIdx])
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		slog.Debug("skipped malformed catalog rows", "skipped", skipped, "kept", len(records))
	}
	return records, nil
}

// LoadCSV opens path and reads catalog records from it.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return records, nil
}

// Checksum returns the hex sha256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash catalog %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func parseRow(title, rating, count, lang string) (Record, bool) {
	title = strings.TrimSpace(title)
	lang = strings.TrimSpace(lang)
	if title == "" || lang == "" {
		return Record{}, false
	}

	avg, err := strconv.ParseFloat(strings.TrimSpace(rating), 64)
	if err != nil {
		return Record{}, false
	}

	n, ok := parseCount(strings.TrimSpace(count))
	if !ok {
		return Record{}, false
	}

	return Record{
		Title:         title,
		AverageRating: avg,
		RatingsCount:  n,
		LanguageCode:  lang,
	}, true
}

// parseCount accepts integers and integral floats such as "1200.0".
// Floats outside the int64 range are rejected.
func parseCount(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
