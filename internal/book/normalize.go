package book

import (
	"strings"
)

// MaxFormats caps how many formats a record may carry.
const MaxFormats = 3

// NormalizeID strips hyphens and whitespace from an ISBN-10 or ISBN-13
// identifier. Any other id is only trimmed, so generated ids such as UUIDs
// round-trip unchanged.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	compact := strings.ToUpper(strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, id))
	if isbn10Re.MatchString(compact) || isbn13Re.MatchString(compact) {
		return compact
	}
	return id
}

// CleanFormats deduplicates formats, drops unknown values, caps the list at
// MaxFormats and falls back to physical when nothing usable is left.
func CleanFormats(formats []Format) []Format {
	seen := make(map[Format]bool, len(formats))
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		parsed := ParseFormats(string(f))
		for _, p := range parsed {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) > MaxFormats {
		out = out[:MaxFormats]
	}
	if len(out) == 0 {
		out = []Format{FormatPhysical}
	}
	return out
}

// Normalize resolves every optional or malformed field to its documented
// default. It never fails.
func Normalize(b Book) Book {
	out := b.Clone()
	out.ID = NormalizeID(out.ID)
	out.Title = strings.TrimSpace(out.Title)
	out.Author = strings.TrimSpace(out.Author)
	out.Genre = strings.TrimSpace(out.Genre)
	out.Publisher = strings.TrimSpace(out.Publisher)
	out.CoverURL = strings.TrimSpace(out.CoverURL)
	out.Synopsis = strings.TrimSpace(out.Synopsis)

	if s, ok := ParseStatus(string(out.Status)); ok {
		out.Status = s
	} else {
		out.Status = StatusToRead
	}

	out.Formats = CleanFormats(out.Formats)

	if out.PageCount != nil && *out.PageCount < 0 {
		out.PageCount = nil
	}

	switch {
	case out.UserRating < 0:
		out.UserRating = 0
	case out.UserRating > 5:
		out.UserRating = 5
	}

	out.DatePublished = out.DatePublished.Normalize()
	out.DateAdded = out.DateAdded.Normalize()
	out.DateStarted = out.DateStarted.Normalize()
	out.DateFinished = out.DateFinished.Normalize()

	if out.Series != nil {
		out.Series.Name = strings.TrimSpace(out.Series.Name)
		if out.Series.Name == "" {
			out.Series = nil
		} else if out.Series.Number < 0 {
			out.Series.Number = 0
		}
	}
	return out
}

// NormalizeAll applies Normalize to every record.
func NormalizeAll(books []Book) []Book {
	out := make([]Book, len(books))
	for i, b := range books {
		out[i] = Normalize(b)
	}
	return out
}
