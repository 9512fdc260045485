package catalog

import (
	"strings"

	"readingnook/internal/book"
)

// Apply returns the books that satisfy every active category of sel, in
// their original order. An empty selection returns a copy of books.
func (e *Engine) Apply(books []book.Book, sel Selection) []book.Book {
	term := strings.ToLower(strings.TrimSpace(sel.Search))
	out := make([]book.Book, 0, len(books))
	for _, b := range books {
		if term != "" && !matchSearch(b, term) {
			continue
		}
		if e.matchAll(b, sel) {
			out = append(out, b)
		}
	}
	return out
}

func (e *Engine) matchAll(b book.Book, sel Selection) bool {
	for _, d := range e.dims {
		values := sel.Values[d.Category]
		if len(values) == 0 {
			continue
		}
		if !matchAny(d, b, values) {
			return false
		}
	}
	return true
}

func matchAny(d Dimension, b book.Book, values []string) bool {
	for _, v := range values {
		if d.Match(b, v) {
			return true
		}
	}
	return false
}

// matchSearch looks for term, already lower-cased, in the searchable fields.
func matchSearch(b book.Book, term string) bool {
	fields := []string{b.Title, b.Author, b.Genre, b.ID, b.SeriesName()}
	for _, f := range b.Formats {
		fields = append(fields, f.SearchTerms()...)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Options derives every category's option list from books.
func (e *Engine) Options(books []book.Book) []Facet {
	out := make([]Facet, len(e.dims))
	for i, d := range e.dims {
		out[i] = Facet{Category: d.Category, Options: d.Options(books)}
	}
	return out
}

// Counts derives the options and fills in, for each one, how many books of
// the full collection match that option alone.
func (e *Engine) Counts(books []book.Book) []Facet {
	facets := e.Options(books)
	for i, d := range e.dims {
		for j := range facets[i].Options {
			opt := &facets[i].Options[j]
			for _, b := range books {
				if d.Match(b, opt.Value) {
					opt.Count++
				}
			}
		}
	}
	return facets
}
