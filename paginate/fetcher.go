package paginate

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/observe"
)

// DefaultMaxPages bounds a walk whose server keeps reporting more pages.
const DefaultMaxPages = 1000

// Fetcher walks paginated JSON APIs through a client.Client.
//
// A Fetcher holds no per-walk state and is safe for concurrent use.
type Fetcher struct {
	client    *client.Client
	items     ItemExtractor
	pageCount PageCountExtractor
	nextPage  NextPageExtractor
	pageParam string
	maxPages  int
	logger    observe.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithItemExtractor replaces DefaultItems.
func WithItemExtractor(fn ItemExtractor) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.items = fn
		}
	}
}

// WithPageCountExtractor replaces DefaultPageCount.
func WithPageCountExtractor(fn PageCountExtractor) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.pageCount = fn
		}
	}
}

// WithNextPageExtractor replaces the default page+1 progression.
func WithNextPageExtractor(fn NextPageExtractor) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.nextPage = fn
		}
	}
}

// WithPageParam sets the query parameter carrying the page number.
// Default: "page"
func WithPageParam(name string) Option {
	return func(f *Fetcher) {
		if name != "" {
			f.pageParam = name
		}
	}
}

// WithMaxPages caps the number of pages one walk may request.
// Default: DefaultMaxPages
func WithMaxPages(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxPages = n
		}
	}
}

// WithLogger sets the logger. Default: the client's logger.
func WithLogger(l observe.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher over c.
func New(c *client.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    c,
		items:     DefaultItems,
		pageCount: DefaultPageCount,
		nextPage:  nextSequential,
		pageParam: "page",
		maxPages:  DefaultMaxPages,
		logger:    c.Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll requests rawURL page by page and returns the items of every page
// in order.
//
// The walk starts at params' page value (1 when absent) and stops when:
//   - the body reports no page count, or the page reached it;
//   - the next page was already fetched;
//   - MaxPages pages were fetched;
//   - a request fails or a body is not JSON.
//
// Errors are logged, never returned: the items collected so far are the result.
// opts apply to every page request.
func (f *Fetcher) FetchAll(ctx context.Context, rawURL, method string, params url.Values, opts ...client.RequestOption) []any {
	if method == "" {
		method = http.MethodGet
	}
	query := cloneValues(params)
	page := f.startPage(ctx, query)

	logger := f.logger.With(observe.F("url", rawURL))
	seen := make(map[int]struct{})
	var items []any

	for {
		if _, dup := seen[page]; dup {
			logger.Warn(ctx, "pagination loop detected, stopping", observe.F("page", page))
			return items
		}
		if len(seen) >= f.maxPages {
			logger.Warn(ctx, "pagination page limit reached, stopping",
				observe.F("max_pages", f.maxPages),
				observe.F("page", page),
			)
			return items
		}
		seen[page] = struct{}{}

		query.Set(f.pageParam, strconv.Itoa(page))
		reqOpts := append(append([]client.RequestOption(nil), opts...), client.WithQuery(query))

		resp, err := f.client.Request(ctx, method, rawURL, reqOpts...)
		if err != nil {
			logger.Error(ctx, "pagination request failed, returning partial results",
				observe.F("page", page),
				observe.F("items", len(items)),
				observe.F("error", err),
			)
			return items
		}

		var body any
		if err := resp.JSON(&body); err != nil {
			logger.Error(ctx, "pagination response is not JSON, returning partial results",
				observe.F("page", page),
				observe.F("error", err),
			)
			return items
		}
		items = append(items, f.items(body)...)

		total, ok := f.pageCount(body)
		if !ok || page >= total {
			return items
		}
		next, ok := f.nextPage(body, page)
		if !ok {
			return items
		}
		page = next
	}
}

func (f *Fetcher) startPage(ctx context.Context, params url.Values) int {
	raw := params.Get(f.pageParam)
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		f.logger.Warn(ctx, "invalid start page, using 1", observe.F(f.pageParam, raw))
		return 1
	}
	return page
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
