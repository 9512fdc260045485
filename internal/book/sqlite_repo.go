package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reading_nook (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	genre TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'to_read',
	formats TEXT NOT NULL DEFAULT 'physical',
	page_count INTEGER,
	user_rating INTEGER NOT NULL DEFAULT 0,
	date_published TEXT NOT NULL DEFAULT '',
	date_added TEXT NOT NULL DEFAULT '',
	date_started TEXT NOT NULL DEFAULT '',
	date_finished TEXT NOT NULL DEFAULT '',
	series_name TEXT NOT NULL DEFAULT '',
	series_number REAL NOT NULL DEFAULT 0,
	cover_url TEXT NOT NULL DEFAULT '',
	synopsis TEXT NOT NULL DEFAULT '',
	enriched_at TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reading_nook_date_added ON reading_nook(date_added);
`

// SQLiteRepo keeps the collection in a single local database file.
type SQLiteRepo struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc serializes writers; a single connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

// Close closes the database.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) List(ctx context.Context) ([]Book, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM reading_nook ORDER BY date_added DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Get(ctx context.Context, id string) (Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM reading_nook WHERE id = ?`, id)
	b, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	return b, err
}

func (r *SQLiteRepo) Create(ctx context.Context, b Book) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reading_nook (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sqliteArgs(b)...)
	if err != nil {
		return fmt.Errorf("insert book %s: %w", b.ID, err)
	}
	return nil
}

func (r *SQLiteRepo) Update(ctx context.Context, b Book) error {
	args := sqliteArgs(b)
	args = append(args[1:], args[0])
	res, err := r.db.ExecContext(ctx, `
		UPDATE reading_nook SET
			title = ?, author = ?, genre = ?, publisher = ?, status = ?,
			formats = ?, page_count = ?, user_rating = ?,
			date_published = ?, date_added = ?, date_started = ?, date_finished = ?,
			series_name = ?, series_number = ?, cover_url = ?, synopsis = ?,
			enriched_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update book %s: %w", b.ID, err)
	}
	return affected(res)
}

func (r *SQLiteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reading_nook WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	return affected(res)
}

// Ping reports whether the database file is usable.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSQLite(s row) (Book, error) {
	var (
		b          Book
		status     string
		formats    string
		pageCount  sql.NullInt64
		published  string
		added      string
		started    string
		finished   string
		seriesName string
		seriesNum  float64
		enrichedAt string
	)
	err := s.Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.Publisher, &status, &formats, &pageCount, &b.UserRating,
		&published, &added, &started, &finished,
		&seriesName, &seriesNum, &b.CoverURL, &b.Synopsis, &enrichedAt,
	)
	if err != nil {
		return Book{}, err
	}

	b.Status = Status(status)
	for _, f := range strings.Split(formats, ",") {
		if f = strings.TrimSpace(f); f != "" {
			b.Formats = append(b.Formats, Format(f))
		}
	}
	if pageCount.Valid {
		b.PageCount = IntPtr(int(pageCount.Int64))
	}
	b.DatePublished = Date(published)
	b.DateAdded = Date(added)
	b.DateStarted = Date(started)
	b.DateFinished = Date(finished)
	if seriesName != "" {
		b.Series = &Series{Name: seriesName, Number: seriesNum}
	}
	if t, err := time.Parse(time.RFC3339, enrichedAt); err == nil {
		b.EnrichedAt = &t
	}
	return Normalize(b), nil
}

func sqliteArgs(b Book) []any {
	formats := make([]string, len(b.Formats))
	for i, f := range b.Formats {
		formats[i] = string(f)
	}
	var pageCount sql.NullInt64
	if n, ok := b.Pages(); ok {
		pageCount = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	enrichedAt := ""
	if b.EnrichedAt != nil {
		enrichedAt = b.EnrichedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		b.ID, b.Title, b.Author, b.Genre, b.Publisher, string(b.Status),
		strings.Join(formats, ","), pageCount, b.UserRating,
		string(b.DatePublished), string(b.DateAdded), string(b.DateStarted), string(b.DateFinished),
		b.SeriesName(), b.SeriesNumber(), b.CoverURL, b.Synopsis, enrichedAt,
	}
}
