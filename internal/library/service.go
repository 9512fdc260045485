// Package library owns the in-memory collection and serves browse and edit
// operations on top of the catalog engine.
package library

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"readingnook/internal/book"
	"readingnook/internal/catalog"
	"readingnook/internal/preferences"
)

var (
	ErrDuplicate  = errors.New("book already exists")
	ErrNoEnricher = errors.New("enrichment is not configured")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Storage is the persistence collaborator. *book.Store satisfies it.
type Storage interface {
	Load(ctx context.Context) (book.Snapshot, error)
	Create(ctx context.Context, b book.Book) error
	Update(ctx context.Context, b book.Book) error
	Delete(ctx context.Context, id string) error
}

type Enricher interface {
	Enrich(ctx context.Context, b book.Book, force bool) (book.Book, bool, error)
}

type CoverRemover interface {
	Remove(ctx context.Context, id string) error
}

type PageSizer interface {
	PageSize(ctx context.Context, d preferences.Density) int
}

// Deps are the optional collaborators of a Service.
type Deps struct {
	Prefs    PageSizer
	Enricher Enricher
	Covers   CoverRemover
}

type Service struct {
	mu      sync.RWMutex
	books   []book.Book
	warning string

	store  Storage
	engine *catalog.Engine
	deps   Deps
	navs   map[preferences.Density]*catalog.Navigator
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store Storage, engine *catalog.Engine, deps Deps, log *zap.Logger) *Service {
	if engine == nil {
		engine = catalog.New()
	}
	navs := make(map[preferences.Density]*catalog.Navigator)
	for _, d := range preferences.Densities() {
		navs[d] = catalog.NewNavigator()
	}
	return &Service{
		store:  store,
		engine: engine,
		deps:   deps,
		navs:   navs,
		log:    log,
		now:    time.Now,
	}
}

// Load replaces the collection from storage. A storage failure leaves an
// empty collection and a warning rather than an error.
func (s *Service) Load(ctx context.Context) {
	snap, err := s.store.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Error("library load failed", zap.Error(err))
		s.books = nil
		s.warning = "Storage is unavailable; the library is empty until it recovers."
		return
	}
	s.books = snap.Books
	s.warning = snap.Warning
	s.log.Info("library loaded",
		zap.Int("books", len(snap.Books)),
		zap.String("source", string(snap.Source)),
	)
}

// Warning returns the current storage warning, if any.
func (s *Service) Warning() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warning
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

// snapshot returns a copy of the collection slice. Books are values, so the
// engine cannot mutate stored records.
func (s *Service) snapshot() []book.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.books)
}

type BrowseQuery struct {
	Selection catalog.Selection
	Sort      catalog.SortKey
	Density   preferences.Density
	Page      int
	PageSize  int
}

type BrowseResult struct {
	Books      []book.Book
	Total      int
	TotalPages int
	Page       int
	PageSize   int
	Density    preferences.Density
	Sort       catalog.SortKey
	Warning    string
}

// Browse filters, sorts and pages the collection. The page index is tracked
// per density and resets when the selection or sort changes.
func (s *Service) Browse(ctx context.Context, q BrowseQuery) BrowseResult {
	if q.Density == "" {
		q.Density = preferences.Grid
	}
	if q.Sort.Field == "" {
		q.Sort = catalog.DefaultSortKey
	}
	size := s.pageSize(ctx, q.Density, q.PageSize)

	matched := s.engine.Apply(s.snapshot(), q.Selection)
	ordered := catalog.Sort(matched, q.Sort, q.Selection.Active(catalog.CategorySeries))

	p := s.navigator(q.Density).Paginate(ordered, size, q.Selection, q.Sort, q.Page)

	return BrowseResult{
		Books:      p.Books,
		Total:      len(ordered),
		TotalPages: p.TotalPages,
		Page:       p.Index,
		PageSize:   p.Size,
		Density:    q.Density,
		Sort:       q.Sort,
		Warning:    s.Warning(),
	}
}

// navigator returns the page state of d. Unknown densities share grid's.
func (s *Service) navigator(d preferences.Density) *catalog.Navigator {
	if nav, ok := s.navs[d]; ok {
		return nav
	}
	return s.navs[preferences.Grid]
}

func (s *Service) pageSize(ctx context.Context, d preferences.Density, requested int) int {
	switch {
	case requested > 0:
		return min(requested, MaxPageSize)
	case s.deps.Prefs != nil:
		return s.deps.Prefs.PageSize(ctx, d)
	default:
		return DefaultPageSize
	}
}

// Categories lists the filter categories the engine understands.
func (s *Service) Categories() []catalog.Category {
	return s.engine.Categories()
}

// Filters derives the options of every category with per-option counts.
func (s *Service) Filters() []catalog.Facet {
	return s.engine.Counts(s.snapshot())
}

func (s *Service) Get(id string) (book.Book, error) {
	id = book.NormalizeID(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.books[i].Clone(), nil
	}
	return book.Book{}, book.ErrNotFound
}

// indexOf must be called with s.mu held.
func (s *Service) indexOf(id string) int {
	return slices.IndexFunc(s.books, func(b book.Book) bool { return b.ID == id })
}

// Mutation is the outcome of an add, edit or delete. Persisted is false when
// the change only reached the in-memory collection.
type Mutation struct {
	Book      book.Book `json:"book"`
	Persisted bool      `json:"persisted"`
}

func (s *Service) today() book.Date {
	return book.NewDate(s.now())
}

// Add validates in and inserts a new book. Books without an ISBN get a
// generated id.
func (s *Service) Add(ctx context.Context, in book.Input) (Mutation, error) {
	if err := in.Validate(); err != nil {
		return Mutation{}, err
	}
	b := in.Book()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.DateAdded = s.today()
	applyStatusDates(&b, "", s.today())

	s.mu.Lock()
	if dup := s.findDuplicate(b); dup != nil {
		s.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: %q by %s", ErrDuplicate, dup.Title, dup.Author)
	}
	s.books = append(s.books, b)
	s.mu.Unlock()

	return Mutation{Book: b.Clone(), Persisted: s.persist(ctx, "create", b.ID, func(ctx context.Context) error {
		return s.store.Create(ctx, b)
	})}, nil
}

// findDuplicate must be called with s.mu held.
func (s *Service) findDuplicate(b book.Book) *book.Book {
	for i := range s.books {
		have := &s.books[i]
		if have.ID == b.ID {
			return have
		}
		if strings.EqualFold(have.Title, b.Title) && strings.EqualFold(have.Author, b.Author) {
			return have
		}
	}
	return nil
}

// Update replaces the editable fields of the book with id. date_added and
// enriched_at are kept, and the next browse in density d stays on its
// current page. Other densities are not affected.
func (s *Service) Update(ctx context.Context, id string, in book.Input, d preferences.Density) (Mutation, error) {
	id = book.NormalizeID(id)
	in.ID = ""
	if err := in.Validate(); err != nil {
		return Mutation{}, err
	}
	b := in.Book()
	b.ID = id

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return Mutation{}, book.ErrNotFound
	}
	prev := s.books[i]
	b.DateAdded = prev.DateAdded
	b.EnrichedAt = prev.EnrichedAt
	if b.Status != prev.Status {
		applyStatusDates(&b, prev.Status, s.today())
	}
	s.books[i] = b
	s.mu.Unlock()

	s.navigator(d).PreserveNext()

	return Mutation{Book: b.Clone(), Persisted: s.persist(ctx, "update", id, func(ctx context.Context) error {
		return s.store.Update(ctx, b)
	})}, nil
}

func (s *Service) Delete(ctx context.Context, id string) (Mutation, error) {
	id = book.NormalizeID(id)

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return Mutation{}, book.ErrNotFound
	}
	removed := s.books[i]
	s.books = slices.Delete(s.books, i, i+1)
	s.mu.Unlock()

	persisted := s.persist(ctx, "delete", id, func(ctx context.Context) error {
		return s.store.Delete(ctx, id)
	})
	if s.deps.Covers != nil {
		if err := s.deps.Covers.Remove(ctx, id); err != nil {
			s.log.Warn("cover removal failed", zap.String("book_id", id), zap.Error(err))
		}
	}
	return Mutation{Book: removed, Persisted: persisted}, nil
}

// Enrich refreshes one book from the metadata provider regardless of when it
// was last enriched.
func (s *Service) Enrich(ctx context.Context, id string) (Mutation, error) {
	if s.deps.Enricher == nil {
		return Mutation{}, ErrNoEnricher
	}
	current, err := s.Get(id)
	if err != nil {
		return Mutation{}, err
	}

	out, updated, err := s.deps.Enricher.Enrich(ctx, current, true)
	if err != nil {
		return Mutation{}, fmt.Errorf("enrich %s: %w", current.ID, err)
	}
	if !updated {
		return Mutation{Book: current, Persisted: true}, nil
	}

	s.mu.Lock()
	i := s.indexOf(current.ID)
	if i < 0 {
		s.mu.Unlock()
		return Mutation{}, book.ErrNotFound
	}
	// The provider call runs unlocked, so an edit may have landed meanwhile.
	out = mergeEnriched(current, s.books[i], out)
	s.books[i] = out
	s.mu.Unlock()

	return Mutation{Book: out.Clone(), Persisted: s.persist(ctx, "enrich", out.ID, func(ctx context.Context) error {
		return s.store.Update(ctx, out)
	})}, nil
}

// mergeEnriched applies the fields the provider changed on base to fresh,
// the record as it is now. Fields edited since base was read keep the edit.
func mergeEnriched(base, fresh, enriched book.Book) book.Book {
	out := fresh.Clone()
	out.Title = pick(base.Title, fresh.Title, enriched.Title)
	out.Author = pick(base.Author, fresh.Author, enriched.Author)
	out.Genre = pick(base.Genre, fresh.Genre, enriched.Genre)
	out.Publisher = pick(base.Publisher, fresh.Publisher, enriched.Publisher)
	out.Synopsis = pick(base.Synopsis, fresh.Synopsis, enriched.Synopsis)
	out.CoverURL = pick(base.CoverURL, fresh.CoverURL, enriched.CoverURL)
	out.DatePublished = pick(base.DatePublished, fresh.DatePublished, enriched.DatePublished)

	basePages, _ := base.Pages()
	freshPages, _ := fresh.Pages()
	if basePages == freshPages {
		out.PageCount = enriched.Clone().PageCount
	}
	out.EnrichedAt = enriched.EnrichedAt
	return out
}

func pick[T comparable](base, fresh, enriched T) T {
	if fresh != base {
		return fresh
	}
	return enriched
}

// persist runs a storage write. Failures are logged and reported, never
// returned: the in-memory collection stays authoritative.
func (s *Service) persist(ctx context.Context, op, id string, write func(context.Context) error) bool {
	if err := write(ctx); err != nil {
		s.log.Warn("storage write failed",
			zap.String("op", op),
			zap.String("book_id", id),
			zap.Error(err),
		)
		s.mu.Lock()
		s.warning = "Changes could not be saved to storage; they are kept for this session only."
		s.mu.Unlock()
		return false
	}
	return true
}

// applyStatusDates fills reading dates when a book moves to a new status.
// from is "" for new books. Dates the user supplied are kept.
func applyStatusDates(b *book.Book, from book.Status, today book.Date) {
	switch b.Status {
	case book.StatusReading:
		if b.DateStarted.IsZero() {
			b.DateStarted = today
		}
	case book.StatusFinished:
		if b.DateStarted.IsZero() {
			b.DateStarted = today
		}
		if b.DateFinished.IsZero() {
			b.DateFinished = today
		}
	case book.StatusAbandoned:
		if from == "" {
			return
		}
		if b.DateStarted.IsZero() {
			b.DateStarted = today
		}
	}
}

// Stats summarises the collection.
type Stats struct {
	Total            int                 `json:"total"`
	ByStatus         map[book.Status]int `json:"by_status"`
	TotalPages       int                 `json:"total_pages"`
	FinishedThisYear int                 `json:"finished_this_year"`
	AverageRating    float64             `json:"average_rating"`
	RatedBooks       int                 `json:"rated_books"`
}

func (s *Service) Stats() Stats {
	books := s.snapshot()
	year := s.now().Year()

	st := Stats{Total: len(books), ByStatus: make(map[book.Status]int, len(book.Statuses))}
	for _, status := range book.Statuses {
		st.ByStatus[status] = 0
	}

	ratingSum := 0
	for _, b := range books {
		st.ByStatus[b.Status]++
		if n, ok := b.Pages(); ok {
			st.TotalPages += n
		}
		if b.Status == book.StatusFinished {
			if y, ok := b.DateFinished.Year(); ok && y == year {
				st.FinishedThisYear++
			}
		}
		if b.UserRating > 0 {
			st.RatedBooks++
			ratingSum += b.UserRating
		}
	}
	if st.RatedBooks > 0 {
		st.AverageRating = math.Round(float64(ratingSum)/float64(st.RatedBooks)*10) / 10
	}
	return st
}
