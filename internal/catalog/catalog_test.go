package catalog

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingnook/internal/book"
)

func ids(books []book.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func pages(n int) *int { return book.IntPtr(n) }

func sampleLibrary() []book.Book {
	return book.NormalizeAll([]book.Book{
		{
			ID: "9780439064873", Title: "Harry Potter and the Chamber of Secrets", Author: "J.K. Rowling",
			Genre: "Fantasy", Publisher: "Scholastic", Status: book.StatusFinished, Formats: []book.Format{book.FormatPhysical},
			PageCount: pages(341), UserRating: 5, DatePublished: "1998-07-02", DateFinished: "2023-03-01",
			Series: &book.Series{Name: "Harry Potter", Number: 2},
		},
		{
			ID: "9780590353427", Title: "Harry Potter and the Sorcerer's Stone", Author: "J.K. Rowling",
			Genre: "Fantasy", Publisher: "Scholastic", Status: book.StatusFinished, Formats: []book.Format{book.FormatEbook},
			PageCount: pages(309), UserRating: 4, DatePublished: "1997-06-26", DateFinished: "2022-12-30",
			Series: &book.Series{Name: "Harry Potter", Number: 1},
		},
		{
			ID: "9780316228534", Title: "The Casual Vacancy", Author: "J.K. Rowling",
			Genre: "Fiction", Publisher: "Little, Brown", Status: book.StatusAbandoned, Formats: []book.Format{book.FormatAudio},
			PageCount: pages(503), DatePublished: "2012-09-27",
		},
		{
			ID: "9780441172719", Title: "Dune", Author: "Frank Herbert",
			Genre: "Science Fiction", Publisher: "Ace", Status: book.StatusReading, Formats: []book.Format{book.FormatPhysical, book.FormatAudio},
			PageCount: pages(896), UserRating: 3, DatePublished: "1965-08-01",
			Series: &book.Series{Name: "Dune Chronicles", Number: 1},
		},
		{
			ID: "no-pages", Title: "Untitled Draft", Author: "Anonymous",
			Status: book.StatusToRead,
		},
	})
}

func sel(c Category, values ...string) Selection {
	return Selection{Values: map[Category][]string{c: values}}
}

func TestApply_EmptySelectionKeepsOrder(t *testing.T) {
	lib := sampleLibrary()
	got := New().Apply(lib, Selection{})
	if diff := cmp.Diff(ids(lib), ids(got)); diff != "" {
		t.Errorf("order changed (-want +got):\n%s", diff)
	}
}

func TestApply_FilterClosure(t *testing.T) {
	e := New()
	lib := sampleLibrary()
	s := Selection{
		Search: "potter",
		Values: map[Category][]string{
			CategoryFormat:    {"physical", "ebook"},
			CategoryPublisher: {"Scholastic"},
			CategoryRating:    {"4", "5"},
		},
	}

	got := e.Apply(lib, s)

	// every returned book passes each active category independently
	for _, b := range got {
		assert.True(t, matchSearch(b, "potter"))
		for _, d := range e.dims {
			if vals := s.Values[d.Category]; len(vals) > 0 {
				assert.True(t, matchAny(d, b, vals), "%s fails %s", b.ID, d.Category)
			}
		}
	}
	assert.Equal(t, []string{"9780439064873", "9780590353427"}, ids(got))
}

func TestApply_AndAcrossOrWithin(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	got := e.Apply(lib, sel(CategoryStatus, "finished", "reading"))
	assert.Equal(t, []string{"9780439064873", "9780590353427", "9780441172719"}, ids(got))

	s := sel(CategoryStatus, "finished", "reading")
	s.Values[CategoryGenre] = []string{"Science Fiction"}
	got = e.Apply(lib, s)
	assert.Equal(t, []string{"9780441172719"}, ids(got))
}

func TestApply_Search(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	cases := map[string][]string{
		"HERBERT":        {"9780441172719"},
		"dune chron":     {"9780441172719"},
		"978031622":      {"9780316228534"},
		"audio":          {"9780316228534", "9780441172719"},
		"audiobook":      {"9780316228534", "9780441172719"},
		"Kindle":         {"9780590353427"},
		"e-book":         {"9780590353427"},
		"hardcover":      {"9780439064873", "9780441172719", "no-pages"},
		"science":        {"9780441172719"},
		"  vacancy ":     {"9780316228534"},
		"nothing-at-all": {},
	}
	for term, want := range cases {
		got := e.Apply(lib, Selection{Search: term})
		assert.Equal(t, want, ids(got), term)
	}
}

func TestApply_ExactRating(t *testing.T) {
	lib := book.NormalizeAll([]book.Book{
		{ID: "a", Title: "A", Author: "X", UserRating: 0},
		{ID: "b", Title: "B", Author: "X", UserRating: 3},
		{ID: "c", Title: "C", Author: "X", UserRating: 5},
		{ID: "d", Title: "D", Author: "X", UserRating: 4},
		{ID: "e", Title: "E", Author: "X", UserRating: 5},
	})

	got := New().Apply(lib, sel(CategoryRating, "5"))

	assert.Equal(t, []string{"c", "e"}, ids(got))
}

func TestApply_PageBucketBoundary(t *testing.T) {
	e := New()
	lib := book.NormalizeAll([]book.Book{
		{ID: "hundred", Title: "H", Author: "X", PageCount: pages(100)},
		{ID: "long", Title: "L", Author: "X", PageCount: pages(801)},
		{ID: "none", Title: "N", Author: "X"},
	})

	assert.Equal(t, []string{"hundred"}, ids(e.Apply(lib, sel(CategoryPageCount, "1-100"))))
	assert.Empty(t, e.Apply(lib, sel(CategoryPageCount, "101-200")))

	buckets := PageBuckets(lib)
	assert.Equal(t, []Bucket{{Min: 1, Max: 100}, {Min: 801, Open: true}}, buckets)

	matched := 0
	for _, b := range buckets {
		if len(e.Apply(lib, sel(CategoryPageCount, b.String()))) > 0 && b.Contains(801) {
			matched++
		}
	}
	assert.Equal(t, 1, matched, "801 pages falls in exactly one derived bucket")
	assert.Equal(t, []string{"long"}, ids(e.Apply(lib, sel(CategoryPageCount, "801+"))))
}

func TestApply_MissingFieldsFailClosed(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	for _, s := range []Selection{
		sel(CategoryPageCount, "1-100", "101-200", "201-300", "301-400", "401-500", "501-600", "801+"),
		sel(CategoryYearFinished, "2022", "2023"),
		sel(CategoryYearPublished, "1965", "1997", "1998", "2012"),
		sel(CategoryPublisher, "Ace", "Scholastic", "Little, Brown"),
		sel(CategoryGenre, "Fantasy", "Fiction", "Science Fiction"),
	} {
		assert.NotContains(t, ids(e.Apply(lib, s)), "no-pages", s.Signature())
	}
}

func TestApply_YearFilters(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	assert.Equal(t, []string{"9780439064873"}, ids(e.Apply(lib, sel(CategoryYearFinished, "2023"))))
	assert.Equal(t, []string{"9780590353427"}, ids(e.Apply(lib, sel(CategoryYearPublished, "1997"))))
	assert.Empty(t, e.Apply(lib, sel(CategoryYearPublished, "nineteen")))
}

func TestApply_StandaloneSeries(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	got := e.Apply(lib, sel(CategorySeries, Standalone))
	assert.Equal(t, []string{"9780316228534", "no-pages"}, ids(got))

	got = e.Apply(lib, sel(CategorySeries, Standalone, "Dune Chronicles"))
	assert.Equal(t, []string{"9780316228534", "9780441172719", "no-pages"}, ids(got))
}

func TestApply_LegacyValues(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	assert.Equal(t, []string{"no-pages"}, ids(e.Apply(lib, sel(CategoryStatus, "TBR"))))
	assert.Equal(t, []string{"9780590353427"}, ids(e.Apply(lib, sel(CategoryFormat, "Kindle"))))
}

func TestOptions(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	facets := e.Options(lib)
	byCat := map[Category][]string{}
	for _, f := range facets {
		for _, o := range f.Options {
			byCat[f.Category] = append(byCat[f.Category], o.Value)
		}
	}

	assert.Equal(t, e.Categories(), func() []Category {
		out := make([]Category, len(facets))
		for i, f := range facets {
			out[i] = f.Category
		}
		return out
	}())
	assert.Equal(t, []string{"to_read", "reading", "finished", "abandoned"}, byCat[CategoryStatus])
	assert.Equal(t, []string{"physical", "ebook", "audio"}, byCat[CategoryFormat])
	assert.Equal(t, []string{"Fantasy", "Fiction", "Science Fiction"}, byCat[CategoryGenre])
	assert.Equal(t, []string{"Anonymous", "Frank Herbert", "J.K. Rowling"}, byCat[CategoryAuthor])
	assert.Equal(t, []string{"301-400", "501-600", "801+"}, byCat[CategoryPageCount])
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, byCat[CategoryRating])
	assert.Equal(t, []string{"2012", "1998", "1997", "1965"}, byCat[CategoryYearPublished])
	assert.Equal(t, []string{"2023", "2022"}, byCat[CategoryYearFinished])
	assert.Equal(t, []string{Standalone, "Dune Chronicles", "Harry Potter"}, byCat[CategorySeries])
}

func TestOptions_Deterministic(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	first := e.Options(lib)
	second := e.Options(lib)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("options differ between calls (-first +second):\n%s", diff)
	}
}

func TestOptions_NoStandaloneOptionWithoutStandalones(t *testing.T) {
	lib := book.NormalizeAll([]book.Book{
		{ID: "1", Title: "A", Author: "X", Series: &book.Series{Name: "S", Number: 1}},
	})
	assert.Equal(t, []Option{{Value: "S", Label: "S"}}, seriesOptions(lib))
}

func TestOptions_PublishYearsIgnoreImplausible(t *testing.T) {
	lib := book.NormalizeAll([]book.Book{
		{ID: "1", Title: "A", Author: "X", DatePublished: "0999-01-01"},
		{ID: "2", Title: "B", Author: "X", DatePublished: "2001-01-01"},
	})
	opts := yearOptions(publishedYear, 1000)(lib)
	assert.Equal(t, []Option{{Value: "2001", Label: "2001"}}, opts)
}

func TestCounts_OverFullCollection(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	counts := map[string]int{}
	for _, f := range e.Counts(lib) {
		for _, o := range f.Options {
			counts[string(f.Category)+"="+o.Value] = o.Count
		}
	}

	assert.Equal(t, 2, counts["status=finished"])
	assert.Equal(t, 1, counts["status=to_read"])
	assert.Equal(t, 3, counts["format=physical"])
	assert.Equal(t, 2, counts["format=audio"])
	assert.Equal(t, 1, counts["rating=5"])
	assert.Equal(t, 0, counts["rating=2"])
	assert.Equal(t, 2, counts["series=standalone"])
	assert.Equal(t, 2, counts["series=Harry Potter"])
	assert.Equal(t, 2, counts["page_count=301-400"])
	assert.Equal(t, 1, counts["page_count=801+"])
	assert.Equal(t, 3, counts["author=J.K. Rowling"])
}

func TestView(t *testing.T) {
	e := New()
	lib := sampleLibrary()

	res := e.View(lib, sel(CategoryAuthor, "J.K. Rowling"), SortKey{Field: FieldTitle, Direction: Asc}, 2, 2)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 2, res.Page)
	require.Len(t, res.Books, 1)
	assert.Equal(t, "The Casual Vacancy", res.Books[0].Title)
}

func TestSelection_Signature(t *testing.T) {
	a := Selection{Search: " Dune ", Values: map[Category][]string{
		CategoryStatus: {"reading", "finished"},
		CategoryGenre:  {},
	}}
	b := Selection{Search: "dune", Values: map[Category][]string{
		CategoryStatus: {"finished", "reading"},
	}}
	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), sel(CategoryStatus, "reading").Signature())
	assert.True(t, Selection{}.Empty())
	assert.False(t, a.Empty())
}

func ExampleEngine_Apply() {
	lib := book.NormalizeAll([]book.Book{
		{ID: "1", Title: "Dune", Author: "Frank Herbert", UserRating: 5},
		{ID: "2", Title: "Emma", Author: "Jane Austen", UserRating: 3},
	})
	got := New().Apply(lib, Selection{Values: map[Category][]string{CategoryRating: {"5"}}})
	fmt.Println(got[0].Title)
	// Output: Dune
}
