package client

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fsmeraldi/diy-covid19dash/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for dashboard client operations.
var (
	dashRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukhsa_requests_total",
		Help: "Total dashboard requests by metric and status",
	}, []string{"metric", "status"})

	dashRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ukhsa_request_duration_seconds",
		Help:    "Dashboard request duration in seconds by metric",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"metric"})

	dashErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukhsa_errors_total",
		Help: "Total dashboard client errors by class",
	}, []string{"class"})

	dashPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukhsa_pages_fetched_total",
		Help: "Total pages fetched by metric",
	}, []string{"metric"})

	dashRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukhsa_records_fetched_total",
		Help: "Total records delivered by metric",
	}, []string{"metric"})
)

const (
	// DefaultAccessPoint is the production UKHSA data dashboard API.
	DefaultAccessPoint = "https://api.ukhsa-dashboard.data.gov.uk"

	// MaxPageSize is the largest page the server accepts.
	MaxPageSize = 365

	// DefaultPageSize is used by FetchPage when none is given.
	DefaultPageSize = 5

	// DefaultBulkPageSize is used by FetchAll when none is given; the
	// largest page minimizes round-trips for bulk downloads.
	DefaultBulkPageSize = MaxPageSize

	defaultTimeout = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// AccessPoint is the API base URL (default: DefaultAccessPoint).
	AccessPoint string

	// UserAgent identifies the consumer to the dashboard (required).
	UserAgent string

	// Timeout bounds each HTTP round-trip (default: 30s). The upstream
	// protocol specifies no timeout; this is a local safety net.
	Timeout time.Duration

	// HTTPClient overrides the HTTP transport (for testing).
	HTTPClient *http.Client

	// Gate paces requests across client instances. When nil, a process-wide
	// shared gate at the dashboard's 3 requests/second cap is used. Inject
	// one explicitly to share the quota with non-default consumers or to
	// use Redis-backed pacing across processes.
	Gate ratelimit.Gate
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		AccessPoint: DefaultAccessPoint,
		UserAgent:   userAgent,
		Timeout:     defaultTimeout,
	}
}

// The fallback gate shared by every client constructed without an explicit
// one. The remote cap is per consumer, not per client instance.
var (
	defaultGateOnce sync.Once
	defaultGate     *ratelimit.MemoryGate
)

func sharedDefaultGate() ratelimit.Gate {
	defaultGateOnce.Do(func() {
		logger := log.With().Str("component", "rate-gate").Logger()
		defaultGate = ratelimit.NewMemoryGate(ratelimit.DefaultMinInterval, logger)
	})
	return defaultGate
}

// Client fetches one dataset from the dashboard, walking its cursor-based
// pagination. It is created once per endpoint identity and may be reused for
// many paged or full fetches; it holds no long-lived network resources.
type Client struct {
	endpoint   Endpoint
	baseURL    string
	httpClient *http.Client
	gate       ratelimit.Gate
	config     Config
	logger     zerolog.Logger

	// Pagination state for the current filters/page size. Guarded by mu;
	// one mutex is held across a whole page fetch so that concurrent
	// callers cannot interleave cursor updates.
	mu           sync.Mutex
	lastFilters  map[string]string
	lastPageSize int
	started      bool
	nextURL      string
	exhausted    bool
	count        int64
}

// New creates a client for one endpoint identity. No network call is made.
func New(endpoint Endpoint, cfg Config) (*Client, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}

	if cfg.UserAgent == "" {
		return nil, &Error{
			Class:   ErrorClassInvalidArgument,
			Message: "user-agent is required",
		}
	}

	if cfg.AccessPoint == "" {
		cfg.AccessPoint = DefaultAccessPoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	gate := cfg.Gate
	if gate == nil {
		gate = sharedDefaultGate()
	}

	logger := log.With().
		Str("component", "dashboard-client").
		Str("metric", endpoint.Metric).
		Logger()

	return &Client{
		endpoint:   endpoint,
		baseURL:    endpoint.URL(cfg.AccessPoint),
		httpClient: httpClient,
		gate:       gate,
		config:     cfg,
		logger:     logger,
	}, nil
}

// PageOptions selects the query for a page fetch.
type PageOptions struct {
	// Filters narrows results by query parameter. Entries with an empty
	// value are dropped before building the request, never sent as null.
	Filters map[string]string

	// PageSize is the number of records per page, at most MaxPageSize.
	// Zero means the per-call default.
	PageSize int
}

// FetchPage fetches the next page for the given query. Changing filters or
// page size between calls restarts pagination from page one; calling again
// after the server signalled the last page returns an empty slice without a
// network call.
//
// An empty page with count 0 can mean either an exhausted query or a
// filter/metric combination the server does not support; the upstream API
// reports both identically and this client cannot tell them apart.
func (c *Client) FetchPage(ctx context.Context, opts PageOptions) ([]Record, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 0 || pageSize > MaxPageSize {
		dashErrorsTotal.WithLabelValues(string(ErrorClassInvalidArgument)).Inc()
		return nil, &Error{
			Class:   ErrorClassInvalidArgument,
			Message: fmt.Sprintf("page_size %d out of range (1-%d)", pageSize, MaxPageSize),
		}
	}

	filters := pruneFilters(opts.Filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started && (pageSize != c.lastPageSize || !maps.Equal(filters, c.lastFilters)) {
		c.logger.Debug().
			Int("page_size", pageSize).
			Msg("Query parameters changed, restarting pagination")
		c.started = false
		c.nextURL = ""
		c.exhausted = false
	}
	c.lastFilters = filters
	c.lastPageSize = pageSize

	if c.exhausted {
		c.logger.Debug().Msg("Query exhausted, returning empty page")
		return []Record{}, nil
	}

	requestURL := c.baseURL
	if c.started {
		requestURL = c.nextURL
	}

	env, err := c.fetchEnvelope(ctx, requestURL, filters, pageSize)
	if err != nil {
		return nil, err
	}

	c.started = true
	c.count = env.Count
	if env.Next == "" {
		c.exhausted = true
		c.nextURL = ""
	} else {
		c.nextURL = env.Next
	}

	dashPagesTotal.WithLabelValues(c.endpoint.Metric).Inc()
	dashRecordsTotal.WithLabelValues(c.endpoint.Metric).Add(float64(len(env.Results)))

	c.logger.Debug().
		Int("records", len(env.Results)).
		Int64("count", env.Count).
		Bool("exhausted", c.exhausted).
		Msg("Fetched page")

	return env.Results, nil
}

// FetchAll fetches every page for the given query and returns the records
// concatenated in server-delivered order. A failure mid-way discards the
// pages accumulated by this call.
func (c *Client) FetchAll(ctx context.Context, opts PageOptions) ([]Record, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultBulkPageSize
	}

	start := time.Now()

	var all []Record
	maxIterations := 0

	for i := 0; ; i++ {
		page, err := c.FetchPage(ctx, opts)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		// The protocol assumes monotonic forward pagination; cap the loop
		// so a next pointer cycling back to a seen URL cannot spin forever.
		if maxIterations == 0 {
			count, _ := c.TotalCount()
			maxIterations = int((count+int64(opts.PageSize)-1)/int64(opts.PageSize)) + 1
		}
		if i+1 > maxIterations {
			dashErrorsTotal.WithLabelValues(string(ErrorClassProtocol)).Inc()
			return nil, &Error{
				Class: ErrorClassProtocol,
				Message: fmt.Sprintf("pagination did not terminate within %d pages (count %d, page_size %d)",
					maxIterations, c.mustCount(), opts.PageSize),
			}
		}
	}

	c.logger.Info().
		Int("records", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetched full dataset")

	return all, nil
}

// fetchEnvelope issues one rate-limited GET and decodes the pagination
// envelope. Callers hold c.mu.
func (c *Client) fetchEnvelope(ctx context.Context, requestURL string, filters map[string]string, pageSize int) (*envelope, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(requestURL)
	if err != nil {
		dashErrorsTotal.WithLabelValues(string(ErrorClassProtocol)).Inc()
		return nil, &Error{
			Class:   ErrorClassProtocol,
			Message: fmt.Sprintf("invalid request URL %q", requestURL),
			Err:     err,
		}
	}

	q := u.Query()
	for name, value := range filters {
		q.Set(name, value)
	}
	q.Set("page_size", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{
			Class:   ErrorClassTransport,
			Message: "create request",
			Err:     err,
		}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", u.String()).
		Msg("Executing dashboard request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	dashRequestDuration.WithLabelValues(c.endpoint.Metric).Observe(time.Since(startTime).Seconds())
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP request failed")
		dashErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		dashRequestsTotal.WithLabelValues(c.endpoint.Metric, "network_error").Inc()
		return nil, &Error{
			Class:   ErrorClassTransport,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	dashRequestsTotal.WithLabelValues(c.endpoint.Metric, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Dashboard request error")
		dashErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return nil, &Error{
			Class:      ErrorClassTransport,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		dashErrorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
		return nil, &Error{
			Class:   ErrorClassTransport,
			Message: "read response body",
			Err:     err,
		}
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		dashErrorsTotal.WithLabelValues(string(ErrorClassProtocol)).Inc()
		return nil, err
	}

	return env, nil
}

// TotalCount returns the last total item count reported by the server and
// whether one has been observed yet.
func (c *Client) TotalCount() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.started
}

// Exhausted reports whether the server has signalled the last page for the
// current query.
func (c *Client) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Endpoint returns the endpoint identity this client was created for.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

func (c *Client) mustCount() int64 {
	count, _ := c.TotalCount()
	return count
}

// pruneFilters drops entries with empty values; absent filters are omitted
// from the request, never sent as null.
func pruneFilters(filters map[string]string) map[string]string {
	pruned := make(map[string]string, len(filters))
	for name, value := range filters {
		if value != "" {
			pruned[name] = value
		}
	}
	return pruned
}
