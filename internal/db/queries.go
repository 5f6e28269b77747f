package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the typed statements used by the store.
type Queries struct {
	db DBTX
}

// New returns queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Book is a row of the books table.
type Book struct {
	ID            int64
	Title         string
	AverageRating float64
	RatingsCount  int64
	LanguageCode  string
}

const insertBook = `INSERT INTO books (id, title, average_rating, ratings_count, language_code)
VALUES (?, ?, ?, ?, ?)`

// InsertBook stores one catalog entry.
func (q *Queries) InsertBook(ctx context.Context, b Book) error {
	_, err := q.db.ExecContext(ctx, insertBook, b.ID, b.Title, b.AverageRating, b.RatingsCount, b.LanguageCode)
	return err
}

const listBooks = `SELECT id, title, average_rating, ratings_count, language_code
FROM books ORDER BY id`

// ListBooks returns every stored entry in catalog order.
func (q *Queries) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := q.db.QueryContext(ctx, listBooks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.AverageRating, &b.RatingsCount, &b.LanguageCode); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countBooks = `SELECT COUNT(*) FROM books`

// CountBooks returns the number of stored entries.
func (q *Queries) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countBooks).Scan(&count)
	return count, err
}

const countBooksByLanguage = `SELECT language_code, COUNT(*) FROM books
GROUP BY language_code ORDER BY COUNT(*) DESC, language_code`

// LanguageCount is the number of entries for one language code.
type LanguageCount struct {
	LanguageCode string
	Count        int64
}

// CountBooksByLanguage groups stored entries by language code.
func (q *Queries) CountBooksByLanguage(ctx context.Context) ([]LanguageCount, error) {
	rows, err := q.db.QueryContext(ctx, countBooksByLanguage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LanguageCount
	for rows.Next() {
		var lc LanguageCount
		if err := rows.Scan(&lc.LanguageCode, &lc.Count); err != nil {
			return nil, err
		}
		items = append(items, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteBooks = `DELETE FROM books`

// DeleteBooks removes every entry.
func (q *Queries) DeleteBooks(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteBooks)
	return err
}

const deleteNeighbors = `DELETE FROM neighbors`

// DeleteNeighbors removes every neighbor list.
func (q *Queries) DeleteNeighbors(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteNeighbors)
	return err
}

const insertNeighbors = `INSERT INTO neighbors (entry_id, neighbors) VALUES (?, ?)`

// InsertNeighbors stores the encoded neighbor list of one entry.
func (q *Queries) InsertNeighbors(ctx context.Context, entryID int64, blob []byte) error {
	_, err := q.db.ExecContext(ctx, insertNeighbors, entryID, blob)
	return err
}

// NeighborRow is a row of the neighbors table.
type NeighborRow struct {
	EntryID   int64
	Neighbors []byte
}

const listNeighbors = `SELECT entry_id, neighbors FROM neighbors ORDER BY entry_id`

// ListNeighbors returns every stored neighbor list ordered by entry.
func (q *Queries) ListNeighbors(ctx context.Context) ([]NeighborRow, error) {
	rows, err := q.db.QueryContext(ctx, listNeighbors)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []NeighborRow
	for rows.Next() {
		var n NeighborRow
		if err := rows.Scan(&n.EntryID, &n.Neighbors); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setMeta = `INSERT INTO build_meta (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// SetMeta upserts a build metadata value.
func (q *Queries) SetMeta(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, setMeta, key, value)
	return err
}

const getMeta = `SELECT value FROM build_meta WHERE key = ?`

// GetMeta returns a build metadata value.
func (q *Queries) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getMeta, key).Scan(&value)
	return value, err
}
