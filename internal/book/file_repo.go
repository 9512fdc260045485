package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileRepo stores the collection as a JSON document on disk. It is the
// fallback when no database is configured or reachable.
type FileRepo struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path, now: time.Now}
}

// Path returns the backing file.
func (r *FileRepo) Path() string {
	return r.path
}

type libraryFile struct {
	Books       []fileBook `json:"books"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
}

// fileBook is the on-disk layout. Format may be a single string or a list and
// series membership is a flag next to name and number.
type fileBook struct {
	ISBN          string          `json:"isbn"`
	Status        string          `json:"status"`
	Format        json.RawMessage `json:"format,omitempty"`
	UserRating    int             `json:"userRating"`
	DateAdded     *string         `json:"dateAdded"`
	DateStarted   *string         `json:"dateStarted"`
	DateFinished  *string         `json:"dateFinished"`
	Title         string          `json:"title,omitempty"`
	Author        string          `json:"author,omitempty"`
	CoverURL      string          `json:"coverUrl,omitempty"`
	Synopsis      string          `json:"synopsis,omitempty"`
	Genre         string          `json:"genre,omitempty"`
	PageCount     *int            `json:"pageCount,omitempty"`
	DatePublished string          `json:"datePublished,omitempty"`
	Publisher     string          `json:"publisher,omitempty"`
	Series        bool            `json:"series"`
	SeriesName    *string         `json:"seriesName"`
	SeriesNumber  *float64        `json:"seriesNumber"`
	EnrichedAt    *time.Time      `json:"enrichedAt,omitempty"`
}

func (f fileBook) toBook() Book {
	b := Book{
		ID:            f.ISBN,
		Title:         f.Title,
		Author:        f.Author,
		Genre:         f.Genre,
		Publisher:     f.Publisher,
		Status:        Status(f.Status),
		Formats:       decodeFormats(f.Format),
		PageCount:     f.PageCount,
		UserRating:    f.UserRating,
		DatePublished: Date(f.DatePublished),
		DateAdded:     optDate(f.DateAdded),
		DateStarted:   optDate(f.DateStarted),
		DateFinished:  optDate(f.DateFinished),
		CoverURL:      f.CoverURL,
		Synopsis:      f.Synopsis,
		EnrichedAt:    f.EnrichedAt,
	}
	if f.Series && f.SeriesName != nil && *f.SeriesName != "" {
		b.Series = &Series{Name: *f.SeriesName}
		if f.SeriesNumber != nil {
			b.Series.Number = *f.SeriesNumber
		}
	}
	return Normalize(b)
}

func toFileBook(b Book) fileBook {
	formats := make([]string, len(b.Formats))
	for i, f := range b.Formats {
		formats[i] = string(f)
	}
	raw, _ := json.Marshal(formats)

	f := fileBook{
		ISBN:          b.ID,
		Status:        string(b.Status),
		Format:        raw,
		UserRating:    b.UserRating,
		DateAdded:     optString(b.DateAdded),
		DateStarted:   optString(b.DateStarted),
		DateFinished:  optString(b.DateFinished),
		Title:         b.Title,
		Author:        b.Author,
		CoverURL:      b.CoverURL,
		Synopsis:      b.Synopsis,
		Genre:         b.Genre,
		PageCount:     b.PageCount,
		DatePublished: string(b.DatePublished),
		Publisher:     b.Publisher,
		EnrichedAt:    b.EnrichedAt,
	}
	if !b.Standalone() {
		name, num := b.Series.Name, b.Series.Number
		f.Series = true
		f.SeriesName = &name
		f.SeriesNumber = &num
	}
	return f
}

func decodeFormats(raw json.RawMessage) []Format {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []string{single}
	}
	out := make([]Format, 0, len(list))
	for _, s := range list {
		out = append(out, Format(s))
	}
	return out
}

func optDate(s *string) Date {
	if s == nil {
		return ""
	}
	return Date(*s)
}

func optString(d Date) *string {
	if d == "" {
		return nil
	}
	s := string(d)
	return &s
}

// read returns an empty collection when the file does not exist yet.
func (r *FileRepo) read() ([]Book, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read library file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var lib libraryFile
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("decode library file: %w", err)
	}
	out := make([]Book, 0, len(lib.Books))
	for _, fb := range lib.Books {
		out = append(out, fb.toBook())
	}
	return out, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (r *FileRepo) write(books []Book) error {
	lib := libraryFile{
		Books:       make([]fileBook, len(books)),
		LastUpdated: r.now().UTC().Format(time.RFC3339),
	}
	for i, b := range books {
		lib.Books[i] = toFileBook(b)
	}
	data, err := json.MarshalIndent(lib, "", "  ")
	if err != nil {
		return fmt.Errorf("encode library file: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".books-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace library file: %w", err)
	}
	return nil
}

func (r *FileRepo) List(ctx context.Context) ([]Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *FileRepo) Get(ctx context.Context, id string) (Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.read()
	if err != nil {
		return Book{}, err
	}
	for _, b := range books {
		if b.ID == id {
			return b, nil
		}
	}
	return Book{}, ErrNotFound
}

func (r *FileRepo) Create(ctx context.Context, b Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.read()
	if err != nil {
		return err
	}
	for _, have := range books {
		if have.ID == b.ID {
			return fmt.Errorf("book %s already stored", b.ID)
		}
	}
	return r.write(append([]Book{b}, books...))
}

func (r *FileRepo) Update(ctx context.Context, b Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.read()
	if err != nil {
		return err
	}
	for i := range books {
		if books[i].ID == b.ID {
			books[i] = b
			return r.write(books)
		}
	}
	return ErrNotFound
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	books, err := r.read()
	if err != nil {
		return err
	}
	for i := range books {
		if books[i].ID == id {
			return r.write(append(books[:i], books[i+1:]...))
		}
	}
	return ErrNotFound
}

// ReplaceAll overwrites the file with books. The enrichment job uses it to
// save a whole pass in one write.
func (r *FileRepo) ReplaceAll(ctx context.Context, books []Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(books)
}
