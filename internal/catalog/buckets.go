package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"readingnook/internal/book"
)

const (
	bucketWidth     = 100
	openBucketFloor = 800
)

// Bucket is an inclusive page-count range. Open buckets have no upper bound.
type Bucket struct {
	Min  int
	Max  int
	Open bool
}

func (b Bucket) String() string {
	if b.Open {
		return fmt.Sprintf("%d+", b.Min)
	}
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}

// Contains reports whether pages falls inside the bucket.
func (b Bucket) Contains(pages int) bool {
	if pages < b.Min {
		return false
	}
	return b.Open || pages <= b.Max
}

// ParseBucket reads "min-max" and "min+" labels.
func ParseBucket(s string) (Bucket, bool) {
	s = strings.TrimSpace(s)
	if n, ok := strings.CutSuffix(s, "+"); ok {
		lo, err := strconv.Atoi(n)
		if err != nil || lo < 0 {
			return Bucket{}, false
		}
		return Bucket{Min: lo, Open: true}, true
	}
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return Bucket{}, false
	}
	lo, err1 := strconv.Atoi(a)
	hi, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil || lo < 0 || hi < lo {
		return Bucket{}, false
	}
	return Bucket{Min: lo, Max: hi}, true
}

// PageBuckets walks upward from 1 in 100-page steps up to the largest known
// page count and keeps only the buckets that hold at least one book. A
// bucket starting at 800 or later that reaches past the largest count is
// emitted open-ended and ends the walk.
func PageBuckets(books []book.Book) []Bucket {
	var pages []int
	largest := 0
	for _, b := range books {
		if n, ok := b.Pages(); ok {
			pages = append(pages, n)
			largest = max(largest, n)
		}
	}
	if len(pages) == 0 {
		return nil
	}

	var out []Bucket
	for start := 1; start <= largest; start += bucketWidth {
		end := start + bucketWidth - 1
		bucket := Bucket{Min: start, Max: end}
		if !anyIn(pages, bucket) {
			continue
		}
		if start >= openBucketFloor && end > largest {
			out = append(out, Bucket{Min: start, Open: true})
			break
		}
		out = append(out, bucket)
	}
	return out
}

func anyIn(pages []int, b Bucket) bool {
	for _, p := range pages {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

func pageCountOptions(books []book.Book) []Option {
	buckets := PageBuckets(books)
	out := make([]Option, len(buckets))
	for i, b := range buckets {
		out[i] = Option{Value: b.String(), Label: b.String() + " pages"}
	}
	return out
}

// matchPageCount fails closed for books without a page count.
func matchPageCount(b book.Book, value string) bool {
	n, ok := b.Pages()
	if !ok {
		return false
	}
	bucket, ok := ParseBucket(value)
	return ok && bucket.Contains(n)
}
