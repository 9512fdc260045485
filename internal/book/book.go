package book

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a book is not found.
var ErrNotFound = errors.New("book not found")

// Status is the reading state of a book.
type Status string

const (
	StatusToRead    Status = "to_read"
	StatusReading   Status = "reading"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusToRead, StatusReading, StatusFinished, StatusAbandoned}

// ParseStatus accepts the canonical values as well as the legacy spellings
// (TBR, DNF, Reading, Finished). Unknown input yields false.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "to_read", "tbr", "to-read", "toread":
		return StatusToRead, true
	case "reading":
		return StatusReading, true
	case "finished", "read":
		return StatusFinished, true
	case "abandoned", "dnf":
		return StatusAbandoned, true
	}
	return "", false
}

// Format is a physical or digital edition the reader owns.
type Format string

const (
	FormatPhysical Format = "physical"
	FormatEbook    Format = "ebook"
	FormatAudio    Format = "audio"
)

// Formats lists every format in display order.
var Formats = []Format{FormatPhysical, FormatEbook, FormatAudio}

// ParseFormats maps one stored format value to canonical formats.
// "Both" is the pre-multi-format spelling for physical plus kindle.
func ParseFormats(s string) []Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "physical", "paper", "hardcover", "paperback":
		return []Format{FormatPhysical}
	case "ebook", "kindle", "e-book", "digital":
		return []Format{FormatEbook}
	case "audio", "audiobook":
		return []Format{FormatAudio}
	case "both":
		return []Format{FormatPhysical, FormatEbook}
	}
	return nil
}

// SearchTerms lists the spellings a free-text search matches for f, the
// canonical value first.
func (f Format) SearchTerms() []string {
	switch f {
	case FormatPhysical:
		return []string{"physical", "paper", "paperback", "hardcover"}
	case FormatEbook:
		return []string{"ebook", "e-book", "kindle", "digital"}
	case FormatAudio:
		return []string{"audio", "audiobook"}
	}
	return []string{string(f)}
}

// Series places a book inside a numbered series. Number is decimal so that
// interstitial entries like 1.5 sort between 1 and 2.
type Series struct {
	Name   string  `json:"name"`
	Number float64 `json:"number"`
}

// Book represents one record of the catalog.
type Book struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Genre         string     `json:"genre,omitempty"`
	Publisher     string     `json:"publisher,omitempty"`
	Status        Status     `json:"status"`
	Formats       []Format   `json:"formats"`
	PageCount     *int       `json:"page_count,omitempty"`
	UserRating    int        `json:"user_rating"`
	DatePublished Date       `json:"date_published,omitempty"`
	DateAdded     Date       `json:"date_added,omitempty"`
	DateStarted   Date       `json:"date_started,omitempty"`
	DateFinished  Date       `json:"date_finished,omitempty"`
	Series        *Series    `json:"series,omitempty"`
	CoverURL      string     `json:"cover_url,omitempty"`
	Synopsis      string     `json:"synopsis,omitempty"`
	EnrichedAt    *time.Time `json:"enriched_at,omitempty"`
}

// Standalone reports whether the book has no series membership.
func (b Book) Standalone() bool {
	return b.Series == nil || strings.TrimSpace(b.Series.Name) == ""
}

// SeriesName returns the series name or "" for standalone books.
func (b Book) SeriesName() string {
	if b.Standalone() {
		return ""
	}
	return b.Series.Name
}

// SeriesNumber returns the position in the series, 0 for standalone books.
func (b Book) SeriesNumber() float64 {
	if b.Standalone() {
		return 0
	}
	return b.Series.Number
}

// Pages returns the page count and whether it is known.
func (b Book) Pages() (int, bool) {
	if b.PageCount == nil || *b.PageCount <= 0 {
		return 0, false
	}
	return *b.PageCount, true
}

// HasFormat reports whether f is among the book's formats.
func (b Book) HasFormat(f Format) bool {
	for _, have := range b.Formats {
		if have == f {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate it without touching the
// collection.
func (b Book) Clone() Book {
	out := b
	if b.Formats != nil {
		out.Formats = append([]Format(nil), b.Formats...)
	}
	if b.PageCount != nil {
		n := *b.PageCount
		out.PageCount = &n
	}
	if b.Series != nil {
		s := *b.Series
		out.Series = &s
	}
	if b.EnrichedAt != nil {
		t := *b.EnrichedAt
		out.EnrichedAt = &t
	}
	return out
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(n int) *int {
	return &n
}
