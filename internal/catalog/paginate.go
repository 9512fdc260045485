package catalog

import (
	"sync"

	"readingnook/internal/book"
)

// Page is one window of an ordered result.
type Page struct {
	Books      []book.Book
	TotalPages int
	Index      int
	Size       int
}

// Paginate slices ordered into pages of size and returns the page at index.
// The index is clamped into [1, max(1, TotalPages)]; a size below 1 is
// treated as 1. An empty input yields zero pages and an empty window.
func Paginate(ordered []book.Book, size, index int) Page {
	if size < 1 {
		size = 1
	}
	total := (len(ordered) + size - 1) / size
	index = min(max(index, 1), max(total, 1))

	start := (index - 1) * size
	end := min(start+size, len(ordered))
	books := []book.Book{}
	if start < end {
		books = ordered[start:end]
	}
	return Page{Books: books, TotalPages: total, Index: index, Size: size}
}

// Navigator remembers the current page index across evaluations. The index
// goes back to 1 whenever the selection or sort key differs from the previous
// call, unless PreserveNext was called since then.
type Navigator struct {
	mu        sync.Mutex
	index     int
	signature string
	preserve  bool
}

// NewNavigator starts on the first page.
func NewNavigator() *Navigator {
	return &Navigator{index: 1}
}

// PreserveNext keeps the current page through the next change of selection
// or sort key. The flag is consumed by the next Paginate call either way.
func (n *Navigator) PreserveNext() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.preserve = true
}

// Current returns the last page index handed out.
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Paginate picks the page index for this evaluation and slices ordered.
// requested > 0 moves to that page when the selection is unchanged; 0 stays
// on the current one.
func (n *Navigator) Paginate(ordered []book.Book, size int, sel Selection, key SortKey, requested int) Page {
	n.mu.Lock()
	defer n.mu.Unlock()

	sig := sel.Signature() + "#" + key.String()
	preserve := n.preserve
	n.preserve = false

	switch {
	case sig != n.signature && n.signature != "" && !preserve:
		n.index = 1
	case requested > 0:
		n.index = requested
	}
	n.signature = sig

	p := Paginate(ordered, size, n.index)
	n.index = p.Index
	return p
}
