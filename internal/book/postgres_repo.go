package book

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = `
	id, title, author, genre, publisher, status, formats, page_count, user_rating,
	date_published, date_added, date_started, date_finished,
	series_name, series_number, cover_url, synopsis, enriched_at`

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(timeoutCtx, `SELECT `+bookColumns+` FROM reading_nook ORDER BY date_added DESC NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Book, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(timeoutCtx, `SELECT `+bookColumns+` FROM reading_nook WHERE id = $1`, id)
	b, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) Create(ctx context.Context, b Book) error {
	const sql = `
		INSERT INTO reading_nook (` + bookColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, sql, rowArgs(b)...)
	if err != nil {
		return fmt.Errorf("insert book %s: %w", b.ID, err)
	}
	return nil
}

func (r *PostgresRepo) Update(ctx context.Context, b Book) error {
	const sql = `
		UPDATE reading_nook SET
			title = $2, author = $3, genre = $4, publisher = $5, status = $6,
			formats = $7, page_count = $8, user_rating = $9,
			date_published = $10, date_added = $11, date_started = $12, date_finished = $13,
			series_name = $14, series_number = $15, cover_url = $16, synopsis = $17,
			enriched_at = $18, updated_at = NOW()
		WHERE id = $1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, rowArgs(b)...)
	if err != nil {
		return fmt.Errorf("update book %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM reading_nook WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping reports whether the pool can reach the database.
func (r *PostgresRepo) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.Ping(timeoutCtx)
}

// row is satisfied by pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

func scanRow(s row) (Book, error) {
	var (
		b            Book
		genre        *string
		publisher    *string
		status       string
		formats      []string
		pageCount    *int32
		rating       *int32
		published    *time.Time
		added        *time.Time
		started      *time.Time
		finished     *time.Time
		seriesName   *string
		seriesNumber *float64
		coverURL     *string
		synopsis     *string
	)
	err := s.Scan(
		&b.ID, &b.Title, &b.Author, &genre, &publisher, &status, &formats, &pageCount, &rating,
		&published, &added, &started, &finished,
		&seriesName, &seriesNumber, &coverURL, &synopsis, &b.EnrichedAt,
	)
	if err != nil {
		return Book{}, err
	}

	b.Genre = deref(genre)
	b.Publisher = deref(publisher)
	b.Status = Status(status)
	for _, f := range formats {
		b.Formats = append(b.Formats, Format(f))
	}
	if pageCount != nil {
		b.PageCount = IntPtr(int(*pageCount))
	}
	if rating != nil {
		b.UserRating = int(*rating)
	}
	b.DatePublished = dateFrom(published)
	b.DateAdded = dateFrom(added)
	b.DateStarted = dateFrom(started)
	b.DateFinished = dateFrom(finished)
	if name := deref(seriesName); name != "" {
		b.Series = &Series{Name: name}
		if seriesNumber != nil {
			b.Series.Number = *seriesNumber
		}
	}
	b.CoverURL = deref(coverURL)
	b.Synopsis = deref(synopsis)
	return Normalize(b), nil
}

func rowArgs(b Book) []any {
	formats := make([]string, len(b.Formats))
	for i, f := range b.Formats {
		formats[i] = string(f)
	}
	var pageCount *int
	if n, ok := b.Pages(); ok {
		pageCount = &n
	}
	var seriesName *string
	var seriesNumber *float64
	if !b.Standalone() {
		name, num := b.Series.Name, b.Series.Number
		seriesName, seriesNumber = &name, &num
	}
	return []any{
		b.ID, b.Title, b.Author, nullable(b.Genre), nullable(b.Publisher), string(b.Status),
		formats, pageCount, b.UserRating,
		dateArg(b.DatePublished), dateArg(b.DateAdded),
		dateArg(b.DateStarted), dateArg(b.DateFinished),
		seriesName, seriesNumber, nullable(b.CoverURL), nullable(b.Synopsis), b.EnrichedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateFrom(t *time.Time) Date {
	if t == nil {
		return ""
	}
	return NewDate(*t)
}

func dateArg(d Date) *time.Time {
	t, ok := d.Time()
	if !ok {
		return nil
	}
	return &t
}
