package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/abdulachik/bookrec/internal/catalog"
	"github.com/abdulachik/bookrec/internal/neighbors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoSnapshot is returned when the store holds no built index.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Build metadata keys.
const (
	MetaK             = "k"
	MetaAlgorithm     = "algorithm"
	MetaBuiltAt       = "built_at"
	MetaBuildDuration = "build_duration"
	MetaCatalogPath   = "catalog_path"
	MetaCatalogSum    = "catalog_sum"
)

// BuildMeta describes how a stored snapshot was produced.
type BuildMeta struct {
	K             int
	Algorithm     string
	BuiltAt       time.Time
	BuildDuration time.Duration
	CatalogPath   string
	CatalogSum    string // sha256 of the catalog CSV
}

// Snapshot is the persisted form of a built recommender: the validated
// catalog in entry order and its neighbor table.
type Snapshot struct {
	Records []catalog.Record
	Table   *neighbors.Table
	Meta    BuildMeta
}

// storedNeighbor is the msgpack encoding of one neighbor.
type storedNeighbor struct {
	ID       int     `msgpack:"i"`
	Distance float64 `msgpack:"d"`
}

func encodeNeighbors(list []neighbors.Neighbor) ([]byte, error) {
	out := make([]storedNeighbor, len(list))
	for i, nb := range list {
		out[i] = storedNeighbor{ID: nb.ID, Distance: nb.Distance}
	}
	return msgpack.Marshal(out)
}

func decodeNeighbors(blob []byte) ([]neighbors.Neighbor, error) {
	var stored []storedNeighbor
	if err := msgpack.Unmarshal(blob, &stored); err != nil {
		return nil, err
	}
	list := make([]neighbors.Neighbor, len(stored))
	for i, s := range stored {
		list[i] = neighbors.Neighbor{ID: s.ID, Distance: s.Distance}
	}
	return list, nil
}

// SaveSnapshot replaces the stored snapshot in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.Table.Len() != len(snap.Records) {
		return fmt.Errorf("save snapshot: table has %d entries, catalog has %d", snap.Table.Len(), len(snap.Records))
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.WithTx(tx)
	if err := q.DeleteNeighbors(ctx); err != nil {
		return fmt.Errorf("clear neighbors: %w", err)
	}
	if err := q.DeleteBooks(ctx); err != nil {
		return fmt.Errorf("clear books: %w", err)
	}

	for id, r := range snap.Records {
		err := q.InsertBook(ctx, Book{
			ID:            int64(id),
			Title:         r.Title,
			AverageRating: r.AverageRating,
			RatingsCount:  r.RatingsCount,
			LanguageCode:  r.LanguageCode,
		})
		if err != nil {
			return fmt.Errorf("insert book %d: %w", id, err)
		}
	}

	for id, list := range snap.Table.Lists() {
		blob, err := encodeNeighbors(list)
		if err != nil {
			return fmt.Errorf("encode neighbors %d: %w", id, err)
		}
		if err := q.InsertNeighbors(ctx, int64(id), blob); err != nil {
			return fmt.Errorf("insert neighbors %d: %w", id, err)
		}
	}

	meta := map[string]string{
		MetaK:             strconv.Itoa(snap.Table.K()),
		MetaAlgorithm:     snap.Meta.Algorithm,
		MetaBuiltAt:       snap.Meta.BuiltAt.UTC().Format(time.RFC3339Nano),
		MetaBuildDuration: snap.Meta.BuildDuration.String(),
		MetaCatalogPath:   snap.Meta.CatalogPath,
		MetaCatalogSum:    snap.Meta.CatalogSum,
	}
	for key, value := range meta {
		if err := q.SetMeta(ctx, key, value); err != nil {
			return fmt.Errorf("set meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.Info("snapshot saved", "entries", len(snap.Records), "k", snap.Table.K())
	return nil
}

// LoadSnapshot reads the stored snapshot. It returns ErrNoSnapshot when
// nothing has been built yet.
func (s *Store) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		return nil, ErrNoSnapshot
	}

	meta, err := s.loadMeta(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]catalog.Record, len(books))
	for i, b := range books {
		if b.ID != int64(i) {
			return nil, fmt.Errorf("load snapshot: book ids not contiguous at %d (got %d)", i, b.ID)
		}
		records[i] = catalog.Record{
			Title:         b.Title,
			AverageRating: b.AverageRating,
			RatingsCount:  b.RatingsCount,
			LanguageCode:  b.LanguageCode,
		}
	}

	rows, err := s.ListNeighbors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list neighbors: %w", err)
	}
	if len(rows) != len(books) {
		return nil, fmt.Errorf("load snapshot: %d neighbor lists for %d books", len(rows), len(books))
	}

	lists := make([][]neighbors.Neighbor, len(rows))
	for i, row := range rows {
		if row.EntryID != int64(i) {
			return nil, fmt.Errorf("load snapshot: neighbor lists not contiguous at %d (got %d)", i, row.EntryID)
		}
		list, err := decodeNeighbors(row.Neighbors)
		if err != nil {
			return nil, fmt.Errorf("decode neighbors %d: %w", i, err)
		}
		lists[i] = list
	}

	table, err := neighbors.FromLists(meta.K, lists)
	if err != nil {
		return nil, fmt.Errorf("restore neighbor table: %w", err)
	}

	slog.Debug("snapshot loaded", "entries", len(records), "k", meta.K, "built_at", meta.BuiltAt)
	return &Snapshot{Records: records, Table: table, Meta: meta}, nil
}

func (s *Store) loadMeta(ctx context.Context) (BuildMeta, error) {
	values := make(map[string]string)
	for _, key := range []string{MetaK, MetaAlgorithm, MetaBuiltAt, MetaBuildDuration, MetaCatalogPath, MetaCatalogSum} {
		v, err := s.GetMeta(ctx, key)
		if errors.Is(err, sql.ErrNoRows) {
			return BuildMeta{}, fmt.Errorf("%w: missing build meta %q", ErrNoSnapshot, key)
		}
		if err != nil {
			return BuildMeta{}, fmt.Errorf("get meta %s: %w", key, err)
		}
		values[key] = v
	}

	var meta BuildMeta
	var err error
	if meta.K, err = strconv.Atoi(values[MetaK]); err != nil {
		return BuildMeta{}, fmt.Errorf("parse meta %s: %w", MetaK, err)
	}
	if meta.BuiltAt, err = time.Parse(time.RFC3339Nano, values[MetaBuiltAt]); err != nil {
		return BuildMeta{}, fmt.Errorf("parse meta %s: %w", MetaBuiltAt, err)
	}
	if meta.BuildDuration, err = time.ParseDuration(values[MetaBuildDuration]); err != nil {
		return BuildMeta{}, fmt.Errorf("parse meta %s: %w", MetaBuildDuration, err)
	}
	meta.Algorithm = values[MetaAlgorithm]
	meta.CatalogPath = values[MetaCatalogPath]
	meta.CatalogSum = values[MetaCatalogSum]
	return meta, nil
}

// StoreStats summarizes the stored snapshot.
type StoreStats struct {
	Books     int64
	Languages []LanguageCount
	Meta      *BuildMeta
}

// Stats reports the stored entry count, language breakdown and build
// metadata. Meta is nil when no snapshot has been saved.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	books, err := s.CountBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	langs, err := s.CountBooksByLanguage(ctx)
	if err != nil {
		return nil, fmt.Errorf("count languages: %w", err)
	}

	stats := &StoreStats{Books: books, Languages: langs}
	if books > 0 {
		meta, err := s.loadMeta(ctx)
		if err != nil && !errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
		if err == nil {
			stats.Meta = &meta
		}
	}
	return stats, nil
}
