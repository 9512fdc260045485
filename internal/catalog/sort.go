package catalog

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"readingnook/internal/book"
)

// Field is a sortable attribute.
type Field string

const (
	FieldTitle         Field = "title"
	FieldAuthor        Field = "author"
	FieldAuthorSeries  Field = "author_series"
	FieldPublisher     Field = "publisher"
	FieldRating        Field = "rating"
	FieldPageCount     Field = "page_count"
	FieldDateAdded     Field = "date_added"
	FieldDatePublished Field = "date_published"
	FieldDateStarted   Field = "date_started"
	FieldDateFinished  Field = "date_finished"
)

// Fields lists every sortable field.
var Fields = []Field{
	FieldTitle, FieldAuthor, FieldAuthorSeries, FieldPublisher, FieldRating, FieldPageCount,
	FieldDateAdded, FieldDatePublished, FieldDateStarted, FieldDateFinished,
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey is a field plus direction.
type SortKey struct {
	Field     Field
	Direction Direction
}

// DefaultSortKey groups each author's series together.
var DefaultSortKey = SortKey{Field: FieldAuthorSeries, Direction: Asc}

func (k SortKey) String() string {
	return string(k.Field) + "-" + string(k.Direction)
}

var legacyFields = map[string]Field{
	"author-series": FieldAuthorSeries,
	"authorseries":  FieldAuthorSeries,
	"pagecount":     FieldPageCount,
	"dateadded":     FieldDateAdded,
	"datepublished": FieldDatePublished,
	"datestarted":   FieldDateStarted,
	"datefinished":  FieldDateFinished,
	"userrating":    FieldRating,
	"user_rating":   FieldRating,
}

// ParseSortKey accepts "field", "field-asc" and "field-desc", including the
// camel-case names of older clients ("dateAdded-desc", "author-series-asc").
// A missing direction means ascending.
func ParseSortKey(s string) (SortKey, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortKey{}, false
	}

	dir := Asc
	if rest, ok := strings.CutSuffix(s, "-desc"); ok {
		s, dir = rest, Desc
	} else if rest, ok := strings.CutSuffix(s, "-asc"); ok {
		s = rest
	}

	f := Field(s)
	if alias, ok := legacyFields[s]; ok {
		f = alias
	}
	if !slices.Contains(Fields, f) {
		return SortKey{}, false
	}
	return SortKey{Field: f, Direction: dir}, true
}

// Sort returns a stably sorted copy of books. When groupBySeries is set,
// every field except author_series first orders by series name and number;
// the chosen field only breaks ties inside a series.
func Sort(books []book.Book, key SortKey, groupBySeries bool) []book.Book {
	out := slices.Clone(books)
	if out == nil {
		out = []book.Book{}
	}

	if key.Field == FieldAuthorSeries {
		slices.SortStableFunc(out, compareAuthorSeries)
		return out
	}

	byField := comparator(key.Field)
	if key.Direction == Desc {
		asc := byField
		byField = func(a, b book.Book) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, func(a, b book.Book) int {
		if groupBySeries {
			if c := compareSeries(a, b); c != 0 {
				return c
			}
		}
		return byField(a, b)
	})
	return out
}

func comparator(f Field) func(a, b book.Book) int {
	switch f {
	case FieldTitle:
		return func(a, b book.Book) int { return compareFold(a.Title, b.Title) }
	case FieldAuthor:
		return func(a, b book.Book) int {
			if c := compareFold(surname(a.Author), surname(b.Author)); c != 0 {
				return c
			}
			return compareFold(a.Author, b.Author)
		}
	case FieldPublisher:
		return func(a, b book.Book) int { return compareFold(a.Publisher, b.Publisher) }
	case FieldRating:
		return func(a, b book.Book) int { return cmp.Compare(a.UserRating, b.UserRating) }
	case FieldPageCount:
		return func(a, b book.Book) int { return cmp.Compare(pagesOrZero(a), pagesOrZero(b)) }
	case FieldDateAdded:
		return compareDate(func(b book.Book) book.Date { return b.DateAdded })
	case FieldDatePublished:
		return compareDate(func(b book.Book) book.Date { return b.DatePublished })
	case FieldDateStarted:
		return compareDate(func(b book.Book) book.Date { return b.DateStarted })
	case FieldDateFinished:
		return compareDate(func(b book.Book) book.Date { return b.DateFinished })
	}
	return func(a, b book.Book) int { return 0 }
}

// compareAuthorSeries orders by surname, then full author, then series books
// before standalone ones, series name, series number and finally title.
func compareAuthorSeries(a, b book.Book) int {
	if c := compareFold(surname(a.Author), surname(b.Author)); c != 0 {
		return c
	}
	if c := compareFold(a.Author, b.Author); c != 0 {
		return c
	}

	aSeries, bSeries := !a.Standalone(), !b.Standalone()
	switch {
	case aSeries && !bSeries:
		return -1
	case !aSeries && bSeries:
		return 1
	case aSeries && bSeries:
		if c := compareFold(a.SeriesName(), b.SeriesName()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SeriesNumber(), b.SeriesNumber()); c != 0 {
			return c
		}
	}
	return compareFold(a.Title, b.Title)
}

// compareSeries groups by series name then number. Standalone books have an
// empty name and number 0, so they come first.
func compareSeries(a, b book.Book) int {
	if c := compareFold(a.SeriesName(), b.SeriesName()); c != 0 {
		return c
	}
	return cmp.Compare(a.SeriesNumber(), b.SeriesNumber())
}

var epoch = time.Unix(0, 0).UTC()

func compareDate(field func(book.Book) book.Date) func(a, b book.Book) int {
	return func(a, b book.Book) int {
		return dateOrEpoch(field(a)).Compare(dateOrEpoch(field(b)))
	}
}

func dateOrEpoch(d book.Date) time.Time {
	if t, ok := d.Time(); ok {
		return t
	}
	return epoch
}

func pagesOrZero(b book.Book) int {
	n, _ := b.Pages()
	return n
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// surname is the last whitespace-separated token of an author name.
func surname(author string) string {
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
