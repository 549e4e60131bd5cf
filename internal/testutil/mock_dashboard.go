// Package testutil provides testing utilities for the dashboard client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
)

// MockDashboard is a configurable mock of the UKHSA dashboard API. It serves
// a fixed record set through the real pagination envelope, applying page,
// page_size and equality filters from the query string.
type MockDashboard struct {
	server *httptest.Server

	mu            sync.Mutex
	records       []map[string]any
	statusCode    int
	dropField     string
	loopNext      bool
	countOverride *int64

	// Tracking
	requestCount int
	requestURLs  []string
	lastQuery    url.Values
}

// NewMockDashboard creates a mock server seeded with the given records.
func NewMockDashboard(records []map[string]any) *MockDashboard {
	mock := &MockDashboard{records: records}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL (the access point to configure clients with).
func (m *MockDashboard) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDashboard) Close() {
	m.server.Close()
}

// SetRecords replaces the served record set.
func (m *MockDashboard) SetRecords(records []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// SetStatus makes every response use the given HTTP status with an empty
// body. Zero restores normal behavior.
func (m *MockDashboard) SetStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = code
}

// DropEnvelopeField omits the named field from every envelope, simulating a
// malformed response. Empty restores normal behavior.
func (m *MockDashboard) DropEnvelopeField(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropField = name
}

// SetLoopNext makes every envelope point next back at the requested page,
// simulating a cursor cycle.
func (m *MockDashboard) SetLoopNext(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loopNext = loop
}

// SetCount overrides the count reported in every envelope, decoupling it
// from the number of records actually served.
func (m *MockDashboard) SetCount(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countOverride = &count
}

// RequestCount returns the number of requests served.
func (m *MockDashboard) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// RequestURLs returns the full request URIs served, in order.
func (m *MockDashboard) RequestURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requestURLs...)
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockDashboard) LastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// Reset clears the tracking counters.
func (m *MockDashboard) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requestURLs = nil
	m.lastQuery = nil
}

func (m *MockDashboard) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.requestURLs = append(m.requestURLs, r.URL.RequestURI())
	m.lastQuery = r.URL.Query()

	records := m.records
	statusCode := m.statusCode
	dropField := m.dropField
	loopNext := m.loopNext
	countOverride := m.countOverride
	m.mu.Unlock()

	if statusCode != 0 && statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
		return
	}

	query := r.URL.Query()

	page := 1
	if v := query.Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	pageSize := 5
	if v := query.Get("page_size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			pageSize = parsed
		}
	}

	filtered := filterRecords(records, query)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}
	results := filtered[start:end]

	var next any
	switch {
	case loopNext:
		next = m.pageURL(r, page)
	case end < len(filtered):
		next = m.pageURL(r, page+1)
	}

	var previous any
	if page > 1 {
		previous = m.pageURL(r, page-1)
	}

	count := int64(len(filtered))
	if countOverride != nil {
		count = *countOverride
	}

	envelope := map[string]any{
		"count":    count,
		"next":     next,
		"previous": previous,
		"results":  results,
	}
	if dropField != "" {
		delete(envelope, dropField)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope)
}

// pageURL rebuilds the request URL pointing at the given page, keeping every
// other query parameter.
func (m *MockDashboard) pageURL(r *http.Request, page int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return m.server.URL + u.Path + "?" + u.RawQuery
}

// filterRecords keeps records whose fields equal every non-paging query
// parameter, mimicking the dashboard's filter semantics.
func filterRecords(records []map[string]any, query url.Values) []map[string]any {
	filtered := make([]map[string]any, 0, len(records))
	for _, record := range records {
		if matchesQuery(record, query) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func matchesQuery(record map[string]any, query url.Values) bool {
	for name, values := range query {
		if name == "page" || name == "page_size" {
			continue
		}
		if len(values) == 0 {
			continue
		}
		field, ok := record[name]
		if !ok || fmt.Sprint(field) != values[0] {
			return false
		}
	}
	return true
}

// GenerateRecords produces n sequential daily records with a date, a numeric
// metric_value and a stratum field, enough to exercise pagination and
// wrangling.
func GenerateRecords(n int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, map[string]any{
			"date":         fmt.Sprintf("2023-01-%02d", i%28+1),
			"metric_value": float64(i * 10),
			"stratum":      "default",
			"sex":          "all",
		})
	}
	return records
}
