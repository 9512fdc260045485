// Package catalog filters, sorts and paginates an in-memory book collection.
// Nothing in this package performs I/O or returns errors: malformed input is
// treated as the documented default.
package catalog

import (
	"slices"
	"strings"

	"readingnook/internal/book"
)

// Category names one filter dimension.
type Category string

const (
	CategoryStatus        Category = "status"
	CategoryFormat        Category = "format"
	CategoryGenre         Category = "genre"
	CategoryAuthor        Category = "author"
	CategoryPageCount     Category = "page_count"
	CategoryPublisher     Category = "publisher"
	CategoryRating        Category = "rating"
	CategoryYearPublished Category = "year_published"
	CategoryYearFinished  Category = "year_finished"
	CategorySeries        Category = "series"
)

// Standalone is the series option that selects books outside any series.
const Standalone = "standalone"

// Selection is the active filter state: a search string plus selected values
// per category. Values within a category are OR-ed; categories are AND-ed.
type Selection struct {
	Search string
	Values map[Category][]string
}

// Active reports whether any value is selected for c.
func (s Selection) Active(c Category) bool {
	return len(s.Values[c]) > 0
}

// Empty reports whether the selection filters nothing.
func (s Selection) Empty() bool {
	if strings.TrimSpace(s.Search) != "" {
		return false
	}
	for _, v := range s.Values {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Signature is a canonical string form used to detect selection changes.
func (s Selection) Signature() string {
	cats := make([]string, 0, len(s.Values))
	for c, v := range s.Values {
		if len(v) > 0 {
			cats = append(cats, string(c))
		}
	}
	slices.Sort(cats)

	var sb strings.Builder
	sb.WriteString("q=")
	sb.WriteString(strings.ToLower(strings.TrimSpace(s.Search)))
	for _, c := range cats {
		vals := slices.Clone(s.Values[Category(c)])
		slices.Sort(vals)
		vals = slices.Compact(vals)
		sb.WriteString("&")
		sb.WriteString(c)
		sb.WriteString("=")
		sb.WriteString(strings.Join(vals, "|"))
	}
	return sb.String()
}

// Option is one selectable value of a dimension. Count is only filled by
// Engine.Counts.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Facet groups the options of one category.
type Facet struct {
	Category Category `json:"category"`
	Options  []Option `json:"options"`
}

// Engine evaluates selections against a collection using a fixed list of
// dimensions.
type Engine struct {
	dims []Dimension
}

// New builds an engine. Without arguments it uses DefaultDimensions.
func New(dims ...Dimension) *Engine {
	if len(dims) == 0 {
		dims = DefaultDimensions()
	}
	return &Engine{dims: dims}
}

// Categories lists the configured categories in order.
func (e *Engine) Categories() []Category {
	out := make([]Category, len(e.dims))
	for i, d := range e.dims {
		out[i] = d.Category
	}
	return out
}

// Result is one evaluated view of the collection.
type Result struct {
	Books      []book.Book
	Total      int
	TotalPages int
	Page       int
	PageSize   int
}

// View filters, sorts and paginates books in one pass.
func (e *Engine) View(books []book.Book, sel Selection, key SortKey, pageSize, page int) Result {
	matched := e.Apply(books, sel)
	ordered := Sort(matched, key, sel.Active(CategorySeries))
	p := Paginate(ordered, pageSize, page)
	return Result{
		Books:      p.Books,
		Total:      len(ordered),
		TotalPages: p.TotalPages,
		Page:       p.Index,
		PageSize:   p.Size,
	}
}
