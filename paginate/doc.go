// Package paginate walks page-numbered JSON APIs on top of client.Client.
//
// A Fetcher requests page after page, adding the page number to the query,
// until the response reports no further pages:
//
//	f := paginate.New(c)
//	items := f.FetchAll(ctx, "https://api.example.com/companies", http.MethodGet,
//	    url.Values{"q": {"acme"}})
//
// The Fetcher never retries a page itself; every page goes through the
// client's breaker and retry loop. A page that still fails ends the walk and
// FetchAll returns the items collected so far.
package paginate
