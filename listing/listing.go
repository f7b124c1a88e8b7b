// Package listing does the search and paging the dashboard tables apply
// after the full list has been fetched.
package listing

import (
	"strconv"
	"strings"
)

const DefaultPageSize = 5

// Page is one page of a filtered list.
type Page[T any] struct {
	Items    []T
	Number   int // 1-based
	Size     int
	Total    int // items after filtering
	Pages    int
	Query    string
	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
}

// Filter keeps the items for which any of fields(item) contains q, ignoring
// case. An empty q keeps everything.
func Filter[T any](items []T, q string, fields func(T) []string) []T {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		for _, f := range fields(it) {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Paginate cuts items into pages of size; out of range page numbers are
// clamped.
func Paginate[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}

	start := (number - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	return Page[T]{
		Items:    items[start:end],
		Number:   number,
		Size:     size,
		Total:    total,
		Pages:    pages,
		HasPrev:  number > 1,
		HasNext:  number < pages,
		PrevPage: number - 1,
		NextPage: number + 1,
	}
}

// Apply filters then paginates using raw query string values.
func Apply[T any](items []T, q, page, size string, fields func(T) []string) Page[T] {
	p := Paginate(Filter(items, q, fields), atoi(page, 1), atoi(size, DefaultPageSize))
	p.Query = strings.TrimSpace(q)
	return p
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
