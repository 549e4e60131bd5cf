// Package client implements a rate-limited client for the UKHSA data
// dashboard API, walking its cursor-based pagination until the server
// signals completion.
//
// A dataset is identified by six path segments:
//
//	endpoint := client.Endpoint{
//		Theme:         "infectious_disease",
//		SubTheme:      "respiratory",
//		Topic:         "COVID-19",
//		GeographyType: "Nation",
//		Geography:     "England",
//		Metric:        "COVID-19_deaths_ONSByDay",
//	}
//
//	c, err := client.New(endpoint, client.DefaultConfig("my-app/1.0"))
//	if err != nil {
//		return err
//	}
//
// # Paged fetching
//
//	page, err := c.FetchPage(ctx, client.PageOptions{
//		Filters:  map[string]string{"year": "2023"},
//		PageSize: 50,
//	})
//
// Repeated FetchPage calls with the same filters and page size walk the
// server's next-page cursor; changing either restarts from page one. After
// the server reports the last page, FetchPage returns an empty slice without
// touching the network.
//
// # Bulk downloads
//
//	records, err := c.FetchAll(ctx, client.PageOptions{})
//
// FetchAll concatenates pages in server-delivered order until an empty page,
// using the largest page size (365) unless told otherwise. The result holds
// whatever the cursor walk delivered; the server's count field is reported
// through TotalCount but never used to truncate or pad it.
//
// # Rate limiting
//
// All clients created without an explicit gate share one process-wide gate
// capped at 3 requests/second, the dashboard's documented limit. Inject a
// ratelimit.Gate (for example a RedisGate) to share the quota differently.
//
// # Known upstream limitation
//
// The dashboard answers an unsupported filter/metric/geography combination
// with count 0 and an empty results list, exactly like a legitimately
// exhausted query. Callers must not rely on being told "your query was
// invalid" as opposed to "you are out of data".
package client
