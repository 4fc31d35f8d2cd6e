package paginate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ItemExtractor returns the items of one decoded page body.
type ItemExtractor func(body any) []any

// PageCountExtractor returns the total number of pages, if the body reports one.
type PageCountExtractor func(body any) (total int, ok bool)

// NextPageExtractor returns the page to request after page, if any.
type NextPageExtractor func(body any, page int) (next int, ok bool)

var (
	defaultItemKeys  = []string{"data", "results", "items", "entries"}
	defaultTotalKeys = []string{"total_pages", "pagination.total_pages", "meta.total_pages"}
)

// DefaultItems returns the first list found under data, results, items or
// entries, or nil.
func DefaultItems(body any) []any {
	return ItemsAt(defaultItemKeys...)(body)
}

// DefaultPageCount reads total_pages, pagination.total_pages or
// meta.total_pages, in that order.
func DefaultPageCount(body any) (int, bool) {
	return PageCountAt(defaultTotalKeys...)(body)
}

// ItemsAt returns an ItemExtractor that takes the first list found at one of
// the dotted paths.
func ItemsAt(paths ...string) ItemExtractor {
	return func(body any) []any {
		for _, p := range paths {
			if list, ok := lookup(body, p).([]any); ok {
				return list
			}
		}
		return nil
	}
}

// PageCountAt returns a PageCountExtractor that reads the first positive
// integer found at one of the dotted paths.
func PageCountAt(paths ...string) PageCountExtractor {
	return func(body any) (int, bool) {
		for _, p := range paths {
			if n, ok := toInt(lookup(body, p)); ok {
				return n, true
			}
		}
		return 0, false
	}
}

// NextPageAt returns a NextPageExtractor that reads the next page number from
// a dotted path, e.g. "pagination.next_page". A missing or null value ends
// the walk.
func NextPageAt(path string) NextPageExtractor {
	return func(body any, _ int) (int, bool) {
		return toInt(lookup(body, path))
	}
}

func nextSequential(_ any, page int) (int, bool) {
	return page + 1, true
}

// lookup follows a dotted path through nested JSON objects.
func lookup(body any, path string) any {
	cur := body
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = obj[key]; !ok {
			return nil
		}
	}
	return cur
}

// toInt accepts JSON numbers and numeric strings holding a positive integer.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 1 || i > math.MaxInt32 {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i < 1 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
