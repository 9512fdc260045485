package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readingnook/internal/book"
	"readingnook/internal/catalog"
	"readingnook/internal/preferences"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type fakeStorage struct {
	books    []book.Book
	loadErr  error
	writeErr error
	created  []string
	updated  []string
	deleted  []string
}

func (f *fakeStorage) Load(context.Context) (book.Snapshot, error) {
	if f.loadErr != nil {
		return book.Snapshot{}, f.loadErr
	}
	return book.Snapshot{Books: book.NormalizeAll(f.books), Source: book.SourcePrimary}, nil
}

func (f *fakeStorage) Create(_ context.Context, b book.Book) error {
	f.created = append(f.created, b.ID)
	return f.writeErr
}

func (f *fakeStorage) Update(_ context.Context, b book.Book) error {
	f.updated = append(f.updated, b.ID)
	return f.writeErr
}

func (f *fakeStorage) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.writeErr
}

type fakeEnricher struct {
	calls  int
	err    error
	during func()
}

func (f *fakeEnricher) Enrich(_ context.Context, b book.Book, force bool) (book.Book, bool, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return b, false, f.err
	}
	out := b.Clone()
	out.Synopsis = "enriched synopsis"
	at := fixedNow
	out.EnrichedAt = &at
	return out, true, nil
}

type fakeCovers struct{ removed []string }

func (f *fakeCovers) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func numberedBooks(n int) []book.Book {
	out := make([]book.Book, n)
	for i := range out {
		out[i] = book.Book{
			ID:      fmt.Sprintf("id-%02d", i+1),
			Title:   fmt.Sprintf("Title %02d", i+1),
			Author:  fmt.Sprintf("Author %02d", i+1),
			Genre:   []string{"Fantasy", "History"}[i%2],
			Status:  book.StatusToRead,
			Formats: []book.Format{book.FormatPhysical},
		}
	}
	return out
}

func newTestService(t *testing.T, store Storage, deps Deps) *Service {
	t.Helper()
	s := NewService(store, catalog.New(), deps, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	s.Load(context.Background())
	return s
}

func validInput() book.Input {
	return book.Input{
		ID:            "978-0-441-01359-3",
		Title:         "Dune",
		Author:        "Frank Herbert",
		Genre:         "Science Fiction",
		Publisher:     "Ace",
		Synopsis:      "Spice.",
		DatePublished: "1965-08-01",
		CoverURL:      "https://example.com/dune.jpg",
		Status:        "to_read",
		Formats:       []string{"physical"},
		PageCount:     412,
	}
}

func TestLoad(t *testing.T) {
	t.Run("from storage", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(3)}, Deps{})
		assert.Equal(t, 3, s.Len())
		assert.Empty(t, s.Warning())
	})

	t.Run("storage failure leaves empty collection and warning", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{loadErr: errors.New("db down")}, Deps{})
		assert.Equal(t, 0, s.Len())
		assert.NotEmpty(t, s.Warning())

		res := s.Browse(context.Background(), BrowseQuery{})
		assert.Empty(t, res.Books)
		assert.Equal(t, 0, res.TotalPages)
		assert.NotEmpty(t, res.Warning)
	})

	t.Run("fallback file surfaces warning", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary := book.NewMockRepository(ctrl)
		primary.EXPECT().List(gomock.Any()).Return(nil, errors.New("connection refused"))

		fallback := book.NewFileRepo(filepath.Join(t.TempDir(), "books.json"))
		require.NoError(t, fallback.ReplaceAll(context.Background(), numberedBooks(2)))

		s := newTestService(t, book.NewStore(primary, fallback, zap.NewNop()), Deps{})
		assert.Equal(t, 2, s.Len())
		assert.Contains(t, s.Warning(), "local copy")
	})
}

func TestBrowse(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewService(preferences.NewMemoryStore())

	t.Run("page size from density preference", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(45)}, Deps{Prefs: prefs})

		grid := s.Browse(ctx, BrowseQuery{Density: preferences.Grid})
		assert.Equal(t, 40, grid.PageSize)
		assert.Equal(t, 2, grid.TotalPages)
		assert.Len(t, grid.Books, 40)

		list := s.Browse(ctx, BrowseQuery{Density: preferences.List})
		assert.Equal(t, 20, list.PageSize)
		assert.Equal(t, 3, list.TotalPages)
	})

	t.Run("explicit page size is capped", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(5)}, Deps{})
		res := s.Browse(ctx, BrowseQuery{PageSize: 1000})
		assert.Equal(t, MaxPageSize, res.PageSize)
		assert.Equal(t, 1, res.TotalPages)
	})

	t.Run("filter change resets page", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(45)}, Deps{})

		res := s.Browse(ctx, BrowseQuery{PageSize: 10, Page: 3})
		assert.Equal(t, 3, res.Page)
		assert.Equal(t, "Title 21", res.Books[0].Title)

		sel := catalog.Selection{Values: map[catalog.Category][]string{catalog.CategoryGenre: {"Fantasy"}}}
		res = s.Browse(ctx, BrowseQuery{Selection: sel, PageSize: 10, Page: 3})
		assert.Equal(t, 1, res.Page)
		assert.Equal(t, 23, res.Total)
	})

	t.Run("page is clamped", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(12)}, Deps{})
		res := s.Browse(ctx, BrowseQuery{PageSize: 10, Page: 9})
		assert.Equal(t, 2, res.Page)
		assert.Len(t, res.Books, 2)
	})

	t.Run("edit preserves current page across re-sort", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(45)}, Deps{})
		byTitle := catalog.SortKey{Field: catalog.FieldTitle, Direction: catalog.Asc}

		res := s.Browse(ctx, BrowseQuery{PageSize: 10, Page: 4, Sort: byTitle})
		require.Equal(t, 4, res.Page)

		in := validInput()
		in.ID = ""
		in.Title = "Title 35 revised"
		_, err := s.Update(ctx, "id-35", in, preferences.Grid)
		require.NoError(t, err)

		byAuthor := catalog.SortKey{Field: catalog.FieldAuthor, Direction: catalog.Asc}
		res = s.Browse(ctx, BrowseQuery{PageSize: 10, Sort: byAuthor})
		assert.Equal(t, 4, res.Page)

		// The preserve flag is consumed.
		res = s.Browse(ctx, BrowseQuery{PageSize: 10, Sort: byTitle})
		assert.Equal(t, 1, res.Page)
	})

	t.Run("edit preserves only its own density", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(45)}, Deps{})

		res := s.Browse(ctx, BrowseQuery{Density: preferences.List, PageSize: 10, Page: 3})
		require.Equal(t, 3, res.Page)
		res = s.Browse(ctx, BrowseQuery{Density: preferences.Grid, PageSize: 10, Page: 2})
		require.Equal(t, 2, res.Page)

		in := validInput()
		in.ID = ""
		in.Title = "Title 05 revised"
		_, err := s.Update(ctx, "id-05", in, preferences.Grid)
		require.NoError(t, err)

		byAuthor := catalog.SortKey{Field: catalog.FieldAuthor, Direction: catalog.Asc}
		res = s.Browse(ctx, BrowseQuery{Density: preferences.Grid, PageSize: 10, Sort: byAuthor})
		assert.Equal(t, 2, res.Page)

		sel := catalog.Selection{Values: map[catalog.Category][]string{catalog.CategoryGenre: {"Fantasy"}}}
		res = s.Browse(ctx, BrowseQuery{Density: preferences.List, Selection: sel, PageSize: 10, Page: 3})
		assert.Equal(t, 1, res.Page)
	})
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("stores normalized book", func(t *testing.T) {
		store := &fakeStorage{}
		s := newTestService(t, store, Deps{})

		m, err := s.Add(ctx, validInput())
		require.NoError(t, err)
		assert.True(t, m.Persisted)
		assert.Equal(t, "9780441013593", m.Book.ID)
		assert.Equal(t, book.Date("2025-03-10"), m.Book.DateAdded)
		assert.Equal(t, []string{"9780441013593"}, store.created)

		got, err := s.Get("978-0441013593")
		require.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
	})

	t.Run("generates id without isbn", func(t *testing.T) {
		store := &fakeStorage{}
		s := newTestService(t, store, Deps{})
		in := validInput()
		in.ID = ""

		m, err := s.Add(ctx, in)
		require.NoError(t, err)
		id := m.Book.ID
		assert.Len(t, id, 36)
		assert.Equal(t, []string{id}, store.created)

		got, err := s.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)

		in.Title = "Dune Messiah"
		m, err = s.Update(ctx, id, in, preferences.Grid)
		require.NoError(t, err)
		assert.Equal(t, id, m.Book.ID)
		assert.Equal(t, []string{id}, store.updated)

		_, err = s.Delete(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{id}, store.deleted)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("status dates", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{}, Deps{})
		in := validInput()
		in.Status = "finished"
		in.UserRating = 4

		m, err := s.Add(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, book.Date("2025-03-10"), m.Book.DateStarted)
		assert.Equal(t, book.Date("2025-03-10"), m.Book.DateFinished)
	})

	t.Run("validation error leaves collection unchanged", func(t *testing.T) {
		store := &fakeStorage{}
		s := newTestService(t, store, Deps{})
		in := validInput()
		in.Title = " "

		_, err := s.Add(ctx, in)
		assert.True(t, book.IsValidationError(err))
		assert.Equal(t, 0, s.Len())
		assert.Empty(t, store.created)
	})

	t.Run("duplicates", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{}, Deps{})
		_, err := s.Add(ctx, validInput())
		require.NoError(t, err)

		_, err = s.Add(ctx, validInput())
		assert.ErrorIs(t, err, ErrDuplicate)

		in := validInput()
		in.ID = ""
		in.Title = "DUNE"
		in.Author = "frank herbert"
		_, err = s.Add(ctx, in)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("storage failure is not fatal", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{writeErr: errors.New("disk full")}, Deps{})

		m, err := s.Add(ctx, validInput())
		require.NoError(t, err)
		assert.False(t, m.Persisted)
		assert.Equal(t, 1, s.Len())
		assert.NotEmpty(t, s.Warning())
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	enrichedAt := fixedNow.Add(-time.Hour)
	stored := book.Book{
		ID: "9780441013593", Title: "Dune", Author: "Frank Herbert", Status: book.StatusReading,
		Formats: []book.Format{book.FormatEbook}, DateAdded: "2024-01-02", DateStarted: "2024-02-01",
		EnrichedAt: &enrichedAt,
	}

	t.Run("keeps metadata and fills finish date", func(t *testing.T) {
		store := &fakeStorage{books: []book.Book{stored}}
		s := newTestService(t, store, Deps{})

		in := validInput()
		in.Status = "finished"
		in.UserRating = 5
		in.DateStarted = "2024-02-01"

		m, err := s.Update(ctx, "9780441013593", in, preferences.Grid)
		require.NoError(t, err)
		assert.True(t, m.Persisted)
		assert.Equal(t, book.Date("2024-01-02"), m.Book.DateAdded)
		assert.Equal(t, book.Date("2024-02-01"), m.Book.DateStarted)
		assert.Equal(t, book.Date("2025-03-10"), m.Book.DateFinished)
		require.NotNil(t, m.Book.EnrichedAt)
		assert.Equal(t, enrichedAt, *m.Book.EnrichedAt)
		assert.Equal(t, []string{"9780441013593"}, store.updated)
	})

	t.Run("unchanged status does not touch dates", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: []book.Book{stored}}, Deps{})
		in := validInput()
		in.Status = "reading"

		m, err := s.Update(ctx, "9780441013593", in, preferences.Grid)
		require.NoError(t, err)
		assert.True(t, m.Book.DateStarted.IsZero())
	})

	t.Run("back to to_read keeps only supplied dates", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: []book.Book{stored}}, Deps{})

		m, err := s.Update(ctx, "9780441013593", validInput(), preferences.Grid)
		require.NoError(t, err)
		assert.True(t, m.Book.DateStarted.IsZero())
		assert.True(t, m.Book.DateFinished.IsZero())
	})

	t.Run("abandoned sets start date", func(t *testing.T) {
		toRead := stored.Clone()
		toRead.Status = book.StatusToRead
		s := newTestService(t, &fakeStorage{books: []book.Book{toRead}}, Deps{})
		in := validInput()
		in.Status = "abandoned"

		m, err := s.Update(ctx, "9780441013593", in, preferences.Grid)
		require.NoError(t, err)
		assert.Equal(t, book.Date("2025-03-10"), m.Book.DateStarted)
		assert.True(t, m.Book.DateFinished.IsZero())
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{}, Deps{})
		_, err := s.Update(ctx, "nope", validInput(), preferences.Grid)
		assert.ErrorIs(t, err, book.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := &fakeStorage{books: numberedBooks(3)}
	covers := &fakeCovers{}
	s := newTestService(t, store, Deps{Covers: covers})

	m, err := s.Delete(ctx, "id-02")
	require.NoError(t, err)
	assert.Equal(t, "Title 02", m.Book.Title)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"id-02"}, store.deleted)
	assert.Equal(t, []string{"id-02"}, covers.removed)

	_, err = s.Delete(ctx, "id-02")
	assert.ErrorIs(t, err, book.ErrNotFound)

	var genres []string
	for _, f := range s.Filters() {
		if f.Category == catalog.CategoryGenre {
			for _, o := range f.Options {
				genres = append(genres, o.Value)
				assert.Equal(t, 2, o.Count)
			}
		}
	}
	assert.Equal(t, []string{"Fantasy"}, genres)
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		s := newTestService(t, &fakeStorage{books: numberedBooks(1)}, Deps{})
		_, err := s.Enrich(ctx, "id-01")
		assert.ErrorIs(t, err, ErrNoEnricher)
	})

	t.Run("updates collection and storage", func(t *testing.T) {
		store := &fakeStorage{books: numberedBooks(1)}
		enricher := &fakeEnricher{}
		s := newTestService(t, store, Deps{Enricher: enricher})

		m, err := s.Enrich(ctx, "id-01")
		require.NoError(t, err)
		assert.Equal(t, "enriched synopsis", m.Book.Synopsis)
		assert.Equal(t, []string{"id-01"}, store.updated)

		got, err := s.Get("id-01")
		require.NoError(t, err)
		assert.Equal(t, "enriched synopsis", got.Synopsis)
	})

	t.Run("keeps an edit made while the provider call runs", func(t *testing.T) {
		dune := validInput().Book()
		dune.ID = "id-01"
		enricher := &fakeEnricher{}
		s := newTestService(t, &fakeStorage{books: []book.Book{dune}}, Deps{Enricher: enricher})
		enricher.during = func() {
			in := validInput()
			in.ID = ""
			in.Title = "Renamed"
			_, err := s.Update(ctx, "id-01", in, preferences.Grid)
			require.NoError(t, err)
		}

		m, err := s.Enrich(ctx, "id-01")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", m.Book.Title)
		assert.Equal(t, "Frank Herbert", m.Book.Author)
		assert.Equal(t, "enriched synopsis", m.Book.Synopsis)
		require.NotNil(t, m.Book.EnrichedAt)

		got, err := s.Get("id-01")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, "enriched synopsis", got.Synopsis)
	})

	t.Run("provider failure", func(t *testing.T) {
		enricher := &fakeEnricher{err: errors.New("HTTP 503")}
		s := newTestService(t, &fakeStorage{books: numberedBooks(1)}, Deps{Enricher: enricher})
		_, err := s.Enrich(ctx, "id-01")
		assert.Error(t, err)
	})
}

func TestStats(t *testing.T) {
	books := []book.Book{
		{ID: "a", Title: "A", Author: "X", Status: book.StatusFinished, UserRating: 5, PageCount: book.IntPtr(300), DateFinished: "2025-01-20"},
		{ID: "b", Title: "B", Author: "X", Status: book.StatusFinished, UserRating: 4, PageCount: book.IntPtr(200), DateFinished: "2024-12-31"},
		{ID: "c", Title: "C", Author: "Y", Status: book.StatusReading, UserRating: 4},
		{ID: "d", Title: "D", Author: "Z", Status: book.StatusToRead},
	}
	s := newTestService(t, &fakeStorage{books: books}, Deps{})

	st := s.Stats()
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.ByStatus[book.StatusFinished])
	assert.Equal(t, 0, st.ByStatus[book.StatusAbandoned])
	assert.Equal(t, 500, st.TotalPages)
	assert.Equal(t, 1, st.FinishedThisYear)
	assert.Equal(t, 3, st.RatedBooks)
	assert.Equal(t, 4.3, st.AverageRating)
}
