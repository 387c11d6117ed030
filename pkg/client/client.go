// Package client provides the resilient HTTP client for the web
// features search endpoint: per-attempt timeouts, retry with
// exponential backoff, optional cross-process rate-limit holdoff, and
// lazy pagination entry points.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/webstatus-tools/webstatus-client/pkg/pagination"
	"github.com/webstatus-tools/webstatus-client/pkg/query"
	"github.com/webstatus-tools/webstatus-client/pkg/ratelimit"
)

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webstatus_requests_total",
		Help: "Total requests to the search endpoint by outcome status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webstatus_request_duration_seconds",
		Help:    "Logical page request duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webstatus_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// Version is the library version reported in the default User-Agent.
const Version = "0.1.0"

// DefaultBaseURL is the well-known features search endpoint.
const DefaultBaseURL = "https://api.webstatus.dev/v1/features"

const (
	defaultUserAgent = "webstatus-client/" + Version

	// maxErrorBodyBytes caps how much of a failure body is kept as
	// diagnostic context on the resulting error.
	maxErrorBodyBytes = 64 << 10
)

// Client is the resilient search endpoint client. Independent calls may
// run concurrently; per-call retry state is local to each call.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	config      Config
	rateLimiter *ratelimit.Tracker
	logger      zerolog.Logger
}

// Config holds the client configuration. New fills zero-valued optional
// fields with defaults, so the zero Config is usable against the public
// endpoint — with single-attempt calls, see Retry.
type Config struct {
	// BaseURL is the features search endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent identifies this client on every request.
	UserAgent string

	// Headers are applied to every request after the standard ones and
	// may override them; per-call WithHeader options win over both.
	Headers map[string]string

	// Retry is the default retry policy, overridable per call. A zero
	// MaxAttempts means single-attempt calls and a zero Backoff leaves
	// jitter off; DefaultConfig enables 3 retries with jitter.
	Retry RetryPolicy

	// HTTPClient substitutes the transport, mainly for tests. Defaults
	// to a fresh http.Client without its own timeout: each attempt is
	// bounded by Retry.Timeout instead.
	HTTPClient *http.Client

	// Redis enables rate-limit holdoff state shared across processes.
	// Leave nil to run without it.
	Redis *redis.Client
}

// DefaultConfig returns the configuration used against the public
// endpoint: 30s per-attempt timeout, 3 retries, exponential backoff
// from 300ms capped at 5s with jitter on.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: defaultUserAgent,
		Retry:     DefaultRetryPolicy(),
	}
}

// New creates a client from cfg. Zero-valued optional fields are filled
// with defaults; invalid values are rejected.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	if cfg.Retry.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must be >= 0 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Timeout <= 0 {
		cfg.Retry.Timeout = DefaultRetryPolicy().Timeout
	}
	cfg.Retry.Backoff = fillBackoff(cfg.Retry.Backoff)

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No transport-level timeout: the per-attempt context bounds
		// each request.
		httpClient = &http.Client{}
	}

	logger := log.With().Str("component", "webstatus-client").Logger()

	var tracker *ratelimit.Tracker
	if cfg.Redis != nil {
		tracker = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     base,
		config:      cfg,
		rateLimiter: tracker,
		logger:      logger,
	}, nil
}

// fillBackoff returns b with zero fields replaced by defaults. Jitter
// stays as given: false cannot be told apart from unset.
func fillBackoff(b Backoff) Backoff {
	def := DefaultRetryPolicy().Backoff
	if b.Base <= 0 {
		b.Base = def.Base
	}
	if b.Factor <= 0 {
		b.Factor = def.Factor
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	return b
}

// callSettings are the effective options for one call.
type callSettings struct {
	retry   RetryPolicy
	headers map[string]string
}

// CallOption overrides part of the client configuration for one call:
// a single page fetch, or a whole traversal started from it.
type CallOption func(*callSettings)

// WithRetryPolicy replaces the whole retry policy for this call.
func WithRetryPolicy(policy RetryPolicy) CallOption {
	return func(s *callSettings) { s.retry = policy }
}

// WithTimeout overrides the per-attempt timeout for this call.
func WithTimeout(timeout time.Duration) CallOption {
	return func(s *callSettings) { s.retry.Timeout = timeout }
}

// WithMaxAttempts overrides the retry budget for this call. Zero means
// a single attempt.
func WithMaxAttempts(n int) CallOption {
	return func(s *callSettings) { s.retry.MaxAttempts = n }
}

// WithHeader adds a header for this call, overriding any default with
// the same name.
func WithHeader(key, value string) CallOption {
	return func(s *callSettings) {
		if s.headers == nil {
			s.headers = make(map[string]string)
		}
		s.headers[key] = value
	}
}

func (c *Client) callSettings(opts []CallOption) callSettings {
	settings := callSettings{retry: c.config.Retry}
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// FetchPage executes one logical page request for the given filter
// string. The rate-limit gate runs once, then the GET runs under the
// retry policy with a fresh timeout per attempt. pageToken is empty for
// the first page of a traversal.
func (c *Client) FetchPage(ctx context.Context, filter, pageToken string, opts ...CallOption) (*pagination.Page, error) {
	settings := c.callSettings(opts)

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	// Step 1: Rate limit gate (active only with Redis configured).
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
			}
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues("rate_limited").Inc()
			return nil, fmt.Errorf("request blocked: rate limit holdoff active")
		}
	}

	// Step 2: Build the page URL.
	rawURL := c.pageURL(filter, pageToken)

	c.logger.Debug().
		Str("filter", filter).
		Bool("has_token", pageToken != "").
		Msg("Executing page request")

	// Step 3: Run the GET under the retry policy.
	var page *pagination.Page
	err := retryWithBackoff(ctx, settings.retry, func(attemptCtx context.Context) error {
		fetched, fetchErr := c.fetchOnce(attemptCtx, rawURL, settings)
		if fetchErr != nil {
			return fetchErr
		}
		page = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// pageURL renders the request URL. The q parameter is always present,
// even empty ("match all"); page_token is omitted on the first request.
func (c *Client) pageURL(filter, pageToken string) string {
	params := url.Values{}
	params.Set("q", filter)
	if pageToken != "" {
		params.Set("page_token", pageToken)
	}

	u := *c.baseURL
	u.RawQuery = params.Encode()
	return u.String()
}

// fetchOnce performs a single GET attempt. ctx is the attempt-scoped
// context carrying the per-attempt deadline.
func (c *Client) fetchOnce(ctx context.Context, rawURL string, settings callSettings) (*pagination.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range settings.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		reqErr := classifyRequestError(ctx, err, settings.retry.Timeout)
		errorsTotal.WithLabelValues(string(errorClass(reqErr))).Inc()
		return nil, reqErr
	}
	defer resp.Body.Close()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit state")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Best-effort body capture for diagnostics; never parsed as a page.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    resp.Status,
			Body:       string(body),
		}
		errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Msg("Search endpoint request error")

		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues("read_error").Inc()
		reqErr := classifyRequestError(ctx, err, settings.retry.Timeout)
		errorsTotal.WithLabelValues(string(errorClass(reqErr))).Inc()
		return nil, reqErr
	}
	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	page, err := decodePage(body)
	if err != nil {
		errorsTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return page, nil
}

// classifyRequestError maps a failed request or body read to the error
// taxonomy. ctx is the attempt context: its state tells caller
// cancellation apart from the per-attempt deadline.
func classifyRequestError(ctx context.Context, err error, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Timeout: timeout, Err: context.DeadlineExceeded}
	}

	// The transport may wrap the context error beyond recognition;
	// fall back to the attempt context's own state.
	switch ctx.Err() {
	case context.Canceled:
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case context.DeadlineExceeded:
		return &TimeoutError{Timeout: timeout, Err: context.DeadlineExceeded}
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// Wire shape of a successful response.
type pageEnvelope struct {
	Data     []json.RawMessage `json:"data"`
	Metadata *pageMetadata     `json:"metadata"`
}

type pageMetadata struct {
	NextPageToken string `json:"next_page_token"`
	Total         *int64 `json:"total"`
}

// decodePage parses a 2xx body. A missing data array decodes to an
// empty page; only syntactically broken or mistyped bodies are errors.
func decodePage(body []byte) (*pagination.Page, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	page := &pagination.Page{Records: env.Data}
	if env.Metadata != nil {
		page.NextPageToken = env.Metadata.NextPageToken
		page.Total = env.Metadata.Total
	}
	return page, nil
}

// Pages begins a lazy traversal of all pages matching q. Pages are
// fetched on demand, strictly sequentially; ctx scopes the whole
// traversal.
func (c *Client) Pages(ctx context.Context, q query.Input, opts ...CallOption) *pagination.Pager {
	return pagination.NewPager(ctx, c.bind(opts), query.Normalize(q))
}

// Records begins a lazy record-by-record traversal of all results
// matching q.
func (c *Client) Records(ctx context.Context, q query.Input, opts ...CallOption) *pagination.RecordIterator {
	return pagination.NewRecordIterator(ctx, c.bind(opts), query.Normalize(q))
}

// CollectRecords drains every record matching q into memory. Any page
// failure fails the whole call.
func (c *Client) CollectRecords(ctx context.Context, q query.Input, opts ...CallOption) ([]pagination.Record, error) {
	return pagination.CollectRecords(ctx, c.bind(opts), query.Normalize(q))
}

// bind fixes a set of call options into a PageFetcher so every page of
// a traversal runs under the same effective settings.
func (c *Client) bind(opts []CallOption) pagination.PageFetcher {
	return boundFetcher{client: c, opts: opts}
}

type boundFetcher struct {
	client *Client
	opts   []CallOption
}

func (f boundFetcher) FetchPage(ctx context.Context, filter, pageToken string) (*pagination.Page, error) {
	return f.client.FetchPage(ctx, filter, pageToken, f.opts...)
}

// Close releases client resources. The HTTP transport and the Redis
// client are caller-owned and stay open.
func (c *Client) Close() error {
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
