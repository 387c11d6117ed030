// Package testutil provides testing utilities for the webstatus client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// PageScript describes one page served by the mock search endpoint.
// NextPageToken names the token handed to the caller; the following
// request must carry it to receive the next page in the script.
type PageScript struct {
	Records       []string
	NextPageToken string
	Total         *int64
}

// StatusScript describes one non-page response: a bare status code with
// an optional body and headers, served before the page script begins.
type StatusScript struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the features search endpoint. It
// serves an optional sequence of failure responses first, then walks a
// scripted page sequence keyed by page_token, tracking every request.
type MockAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	failures []StatusScript
	pages    []PageScript
	byToken  map[string]int

	requestCount int
	filters      []string
	tokens       []string
}

// NewMockAPI creates a mock search endpoint with no scripted responses.
// With nothing scripted it answers every request with an empty page.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{byToken: make(map[string]int)}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// ScriptPages sets the page sequence. The first request (no page_token)
// receives pages[0]; a request carrying a page's NextPageToken receives
// the following page.
func (m *MockAPI) ScriptPages(pages ...PageScript) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages = pages
	m.byToken = make(map[string]int)
	for i, p := range pages {
		if p.NextPageToken != "" && i+1 < len(pages) {
			m.byToken[p.NextPageToken] = i + 1
		}
	}
}

// ScriptFailures queues responses served before the page script. Each
// queued failure is consumed by exactly one request.
func (m *MockAPI) ScriptFailures(failures ...StatusScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failures...)
}

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// Filters returns the q parameter of every request in arrival order.
func (m *MockAPI) Filters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.filters...)
}

// Tokens returns the page_token parameter of every request in arrival
// order; the empty string marks a first-page request.
func (m *MockAPI) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

// Reset clears tracking counters and scripted responses.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = nil
	m.pages = nil
	m.byToken = make(map[string]int)
	m.requestCount = 0
	m.filters = nil
	m.tokens = nil
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.filters = append(m.filters, r.URL.Query().Get("q"))
	token := r.URL.Query().Get("page_token")
	m.tokens = append(m.tokens, token)

	if len(m.failures) > 0 {
		failure := m.failures[0]
		m.failures = m.failures[1:]
		m.mu.Unlock()

		if failure.Delay > 0 {
			time.Sleep(failure.Delay)
		}
		for k, v := range failure.Headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(failure.StatusCode)
		if failure.Body != "" {
			w.Write([]byte(failure.Body))
		}
		return
	}

	var page PageScript
	switch {
	case len(m.pages) == 0:
		// Nothing scripted: empty final page.
	case token == "":
		page = m.pages[0]
	default:
		idx, ok := m.byToken[token]
		if !ok {
			m.mu.Unlock()
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "unknown page token"}`))
			return
		}
		page = m.pages[idx]
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(encodePage(page))
}

// encodePage renders a scripted page in the wire envelope. Records are
// raw JSON strings and pass through unmodified.
func encodePage(page PageScript) []byte {
	// json.Marshal compacts json.RawMessage values, so the envelope is
	// assembled by hand to keep each record's bytes exactly as scripted.
	var body []byte
	body = append(body, `{"data":[`...)
	for i, r := range page.Records {
		if i > 0 {
			body = append(body, ',')
		}
		body = append(body, r...)
	}
	body = append(body, ']')

	metadata := map[string]any{}
	if page.NextPageToken != "" {
		metadata["next_page_token"] = page.NextPageToken
	}
	if page.Total != nil {
		metadata["total"] = *page.Total
	}
	if len(metadata) > 0 {
		meta, _ := json.Marshal(metadata)
		body = append(body, `,"metadata":`...)
		body = append(body, meta...)
	}

	body = append(body, '}')
	return body
}

// RateLimitResponse builds a 429 failure carrying a Retry-After of the
// given number of seconds.
func RateLimitResponse(retryAfterSeconds string) StatusScript {
	return StatusScript{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers:    map[string]string{"Retry-After": retryAfterSeconds},
	}
}

// ServerErrorResponse builds a 500 failure.
func ServerErrorResponse() StatusScript {
	return StatusScript{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
	}
}
