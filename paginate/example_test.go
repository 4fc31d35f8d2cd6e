package paginate_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/paginate"
)

func ExampleFetcher_FetchAll() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"data":["a","b"],"total_pages":2}`)
			return
		}
		fmt.Fprint(w, `{"data":["c"],"total_pages":2}`)
	}))
	defer srv.Close()

	c := client.New()
	defer c.Close()

	items := paginate.New(c).FetchAll(context.Background(), srv.URL, http.MethodGet, nil)
	fmt.Println(items)
	// Output: [a b c]
}
