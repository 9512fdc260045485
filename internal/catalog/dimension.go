package catalog

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"readingnook/internal/book"
)

// Dimension is one filter category: how to enumerate its options from a
// collection and how to test a book against one selected value.
type Dimension struct {
	Category Category
	Options  func(books []book.Book) []Option
	Match    func(b book.Book, value string) bool
}

// DefaultDimensions returns the catalog's filter categories in display order.
func DefaultDimensions() []Dimension {
	return []Dimension{
		{Category: CategoryStatus, Options: statusOptions, Match: matchStatus},
		{Category: CategoryFormat, Options: formatOptions, Match: matchFormat},
		{Category: CategoryGenre, Options: distinct(func(b book.Book) string { return b.Genre }), Match: matchField(func(b book.Book) string { return b.Genre })},
		{Category: CategoryAuthor, Options: distinct(func(b book.Book) string { return b.Author }), Match: matchField(func(b book.Book) string { return b.Author })},
		{Category: CategoryPageCount, Options: pageCountOptions, Match: matchPageCount},
		{Category: CategoryPublisher, Options: distinct(func(b book.Book) string { return b.Publisher }), Match: matchField(func(b book.Book) string { return b.Publisher })},
		{Category: CategoryRating, Options: ratingOptions, Match: matchRating},
		{Category: CategoryYearPublished, Options: yearOptions(publishedYear, 1000), Match: matchYear(publishedYear)},
		{Category: CategoryYearFinished, Options: yearOptions(finishedYear, 0), Match: matchYear(finishedYear)},
		{Category: CategorySeries, Options: seriesOptions, Match: matchSeries},
	}
}

var statusLabels = map[book.Status]string{
	book.StatusToRead:    "To Read",
	book.StatusReading:   "Reading",
	book.StatusFinished:  "Finished",
	book.StatusAbandoned: "Abandoned",
}

var formatLabels = map[book.Format]string{
	book.FormatPhysical: "Physical",
	book.FormatEbook:    "Ebook",
	book.FormatAudio:    "Audio",
}

func statusOptions([]book.Book) []Option {
	out := make([]Option, len(book.Statuses))
	for i, s := range book.Statuses {
		out[i] = Option{Value: string(s), Label: statusLabels[s]}
	}
	return out
}

func matchStatus(b book.Book, value string) bool {
	s, ok := book.ParseStatus(value)
	return ok && b.Status == s
}

func formatOptions([]book.Book) []Option {
	out := make([]Option, len(book.Formats))
	for i, f := range book.Formats {
		out[i] = Option{Value: string(f), Label: formatLabels[f]}
	}
	return out
}

func matchFormat(b book.Book, value string) bool {
	for _, f := range book.ParseFormats(value) {
		if b.HasFormat(f) {
			return true
		}
	}
	return false
}

// distinct enumerates the non-empty values of a text field, sorted.
func distinct(field func(book.Book) string) func([]book.Book) []Option {
	return func(books []book.Book) []Option {
		seen := map[string]bool{}
		var values []string
		for _, b := range books {
			v := field(b)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
		slices.Sort(values)
		out := make([]Option, len(values))
		for i, v := range values {
			out[i] = Option{Value: v, Label: v}
		}
		return out
	}
}

// matchField compares exactly, as stored. An empty field never matches.
func matchField(field func(book.Book) string) func(book.Book, string) bool {
	return func(b book.Book, value string) bool {
		v := field(b)
		return v != "" && v == value
	}
}

func ratingOptions([]book.Book) []Option {
	out := make([]Option, 0, 5)
	for r := 1; r <= 5; r++ {
		label := strconv.Itoa(r) + " stars"
		if r == 1 {
			label = "1 star"
		}
		out = append(out, Option{Value: strconv.Itoa(r), Label: label})
	}
	return out
}

// matchRating is an exact comparison; unrated books carry 0.
func matchRating(b book.Book, value string) bool {
	r, err := strconv.Atoi(strings.TrimSpace(value))
	return err == nil && b.UserRating == r
}

func publishedYear(b book.Book) (int, bool) { return b.DatePublished.Year() }
func finishedYear(b book.Book) (int, bool)  { return b.DateFinished.Year() }

// yearOptions lists distinct years above floor, newest first.
func yearOptions(year func(book.Book) (int, bool), floor int) func([]book.Book) []Option {
	return func(books []book.Book) []Option {
		seen := map[int]bool{}
		var years []int
		for _, b := range books {
			y, ok := year(b)
			if !ok || y <= floor || seen[y] {
				continue
			}
			seen[y] = true
			years = append(years, y)
		}
		slices.SortFunc(years, func(a, b int) int { return cmp.Compare(b, a) })
		out := make([]Option, len(years))
		for i, y := range years {
			s := strconv.Itoa(y)
			out[i] = Option{Value: s, Label: s}
		}
		return out
	}
}

func matchYear(year func(book.Book) (int, bool)) func(book.Book, string) bool {
	return func(b book.Book, value string) bool {
		want, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return false
		}
		y, ok := year(b)
		return ok && y == want
	}
}

func seriesOptions(books []book.Book) []Option {
	hasStandalone := false
	seen := map[string]bool{}
	var names []string
	for _, b := range books {
		if b.Standalone() {
			hasStandalone = true
			continue
		}
		if name := b.SeriesName(); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	slices.Sort(names)

	out := make([]Option, 0, len(names)+1)
	if hasStandalone {
		out = append(out, Option{Value: Standalone, Label: "Stand Alones"})
	}
	for _, n := range names {
		out = append(out, Option{Value: n, Label: n})
	}
	return out
}

func matchSeries(b book.Book, value string) bool {
	if value == Standalone {
		return b.Standalone()
	}
	return !b.Standalone() && b.SeriesName() == value
}
