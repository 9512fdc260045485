// Package enrich fills missing book metadata from Google Books.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"readingnook/internal/book"
	"readingnook/internal/platform/googlebooks"
)

// DefaultFreshness is how long a complete, enriched book is left alone.
const DefaultFreshness = 7 * 24 * time.Hour

type VolumeFinder interface {
	First(ctx context.Context, q string) (*googlebooks.Volume, error)
}

type CoverMirror interface {
	Mirror(ctx context.Context, id, src string) (bool, error)
}

type Config struct {
	Freshness time.Duration
}

// Report summarises one Run.
type Report struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
}

type Service struct {
	finder VolumeFinder
	covers CoverMirror
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

// NewService builds an enricher. covers may be nil to skip mirroring.
func NewService(finder VolumeFinder, covers CoverMirror, cfg Config, log *zap.Logger) *Service {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	return &Service{
		finder: finder,
		covers: covers,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Complete reports whether b has every field enrichment can supply.
func Complete(b book.Book) bool {
	_, hasPages := b.Pages()
	return b.Title != "" && b.Author != "" && b.Synopsis != "" && b.CoverURL != "" && hasPages
}

// Fresh reports whether b was enriched within the freshness window.
func (s *Service) Fresh(b book.Book) bool {
	return b.EnrichedAt != nil && s.now().Sub(*b.EnrichedAt) < s.cfg.Freshness
}

// Enrich returns b with missing fields filled in. The second result reports
// whether a volume was applied. force ignores the freshness window.
func (s *Service) Enrich(ctx context.Context, b book.Book, force bool) (book.Book, bool, error) {
	if !force && Complete(b) && s.Fresh(b) {
		return b, false, nil
	}

	vol, err := s.lookup(ctx, b)
	if err != nil {
		return b, false, err
	}

	out := apply(b.Clone(), vol.VolumeInfo)
	if cover := coverURL(vol.VolumeInfo.ImageLinks); cover != "" {
		out.CoverURL = cover
		if s.covers != nil {
			if _, err := s.covers.Mirror(ctx, out.ID, cover); err != nil {
				s.log.Warn("cover mirror failed", zap.String("book_id", out.ID), zap.Error(err))
			}
		}
	}
	now := s.now().UTC()
	out.EnrichedAt = &now
	return out, true, nil
}

func (s *Service) lookup(ctx context.Context, b book.Book) (*googlebooks.Volume, error) {
	if isISBN13(b.ID) {
		vol, err := s.finder.First(ctx, googlebooks.ISBNQuery(b.ID))
		if err == nil {
			return vol, nil
		}
		if !errors.Is(err, googlebooks.ErrNotFound) {
			return nil, err
		}
	}
	if b.Title == "" || b.Author == "" {
		return nil, googlebooks.ErrNotFound
	}
	return s.finder.First(ctx, googlebooks.TitleAuthorQuery(b.Title, b.Author))
}

// Repository is what Run needs from storage.
type Repository interface {
	List(ctx context.Context) ([]book.Book, error)
	Update(ctx context.Context, b book.Book) error
}

type bulkWriter interface {
	ReplaceAll(ctx context.Context, books []book.Book) error
}

// Run enriches every stored book. Failures keep the original record. Stores
// that can rewrite the whole collection are written once at the end.
func (s *Service) Run(ctx context.Context, repo Repository) (Report, error) {
	books, err := repo.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list books: %w", err)
	}

	var rep Report
	bulk, isBulk := repo.(bulkWriter)
	for i, b := range books {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Processed++

		out, updated, err := s.Enrich(ctx, b, false)
		switch {
		case errors.Is(err, googlebooks.ErrNotFound):
			rep.NotFound++
			s.log.Info("no volume found", zap.String("book_id", b.ID), zap.String("title", b.Title))
			continue
		case err != nil:
			rep.Failed++
			s.log.Warn("enrich failed", zap.String("book_id", b.ID), zap.Error(err))
			continue
		case !updated:
			rep.Skipped++
			continue
		}

		books[i] = out
		if !isBulk {
			if err := repo.Update(ctx, out); err != nil {
				rep.Failed++
				s.log.Warn("save enriched book failed", zap.String("book_id", b.ID), zap.Error(err))
				continue
			}
		}
		rep.Updated++
		s.log.Info("book enriched", zap.String("book_id", out.ID), zap.String("title", out.Title))
	}

	if isBulk && rep.Updated > 0 {
		if err := bulk.ReplaceAll(ctx, books); err != nil {
			return rep, fmt.Errorf("save library: %w", err)
		}
	}
	return rep, nil
}

func apply(b book.Book, v googlebooks.VolumeInfo) book.Book {
	if b.Title == "" {
		b.Title = v.Title
	}
	if b.Author == "" && len(v.Authors) > 0 {
		b.Author = strings.Join(v.Authors, ", ")
	}
	if b.Synopsis == "" && v.Description != "" {
		b.Synopsis = CleanDescription(v.Description)
	}
	if b.Genre == "" && len(v.Categories) > 0 {
		b.Genre = v.Categories[0]
	}
	if _, ok := b.Pages(); !ok && v.PageCount > 0 {
		b.PageCount = book.IntPtr(v.PageCount)
	}
	if b.Publisher == "" {
		b.Publisher = v.Publisher
	}
	if b.DatePublished.IsZero() {
		b.DatePublished = book.Date(v.PublishedDate).Normalize()
	}
	return b
}

func coverURL(links googlebooks.ImageLinks) string {
	u := links.Largest()
	if rest, ok := strings.CutPrefix(u, "http:"); ok {
		return "https:" + rest
	}
	return u
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// CleanDescription strips HTML tags and decodes entities.
func CleanDescription(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

func isISBN13(id string) bool {
	if len(id) != 13 || !(strings.HasPrefix(id, "978") || strings.HasPrefix(id, "979")) {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
