// Package testutil provides testing utilities for the rehydrate packages.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// LookupPath is the path served by MockLookup.
const LookupPath = "/1.1/statuses/lookup.json"

// MockResponse defines a canned response served instead of a lookup.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockStatus is one record known to the mock server.
type MockStatus struct {
	ID             string
	Text           string
	CreatedAt      string
	Lang           string
	RetweetCount   int64
	FavoriteCount  int64
	IsQuote        bool
	UserID         string
	UserName       string
	UserScreenName string
}

func (s MockStatus) object() map[string]any {
	return map[string]any{
		"id_str":          s.ID,
		"full_text":       s.Text,
		"created_at":      s.CreatedAt,
		"lang":            s.Lang,
		"retweet_count":   s.RetweetCount,
		"favorite_count":  s.FavoriteCount,
		"is_quote_status": s.IsQuote,
		"user": map[string]any{
			"id_str":      s.UserID,
			"name":        s.UserName,
			"screen_name": s.UserScreenName,
		},
	}
}

// NewStatus returns a MockStatus with deterministic fields derived from id.
func NewStatus(id string) MockStatus {
	return MockStatus{
		ID:             id,
		Text:           "status " + id,
		CreatedAt:      "Sun Mar 01 00:00:00 +0000 2020",
		Lang:           "en",
		RetweetCount:   1,
		FavoriteCount:  2,
		UserID:         "u" + id,
		UserName:       "User " + id,
		UserScreenName: "user" + id,
	}
}

// MockLookup is a configurable mock status-lookup server for testing.
type MockLookup struct {
	server   *httptest.Server
	mu       sync.RWMutex
	statuses map[string]MockStatus
	queue    []MockResponse

	// Tracking
	RequestCount      int
	RequestedIDs      [][]string
	LastRequestHeader http.Header
}

// NewMockLookup creates a new mock lookup server.
func NewMockLookup() *MockLookup {
	mock := &MockLookup{
		statuses: make(map[string]MockStatus),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()

		var canned *MockResponse
		if len(mock.queue) > 0 {
			canned = &mock.queue[0]
			mock.queue = mock.queue[1:]
		}
		mock.mu.Unlock()

		if canned != nil {
			writeResponse(w, *canned)
			return
		}

		if r.URL.Path != LookupPath {
			http.NotFound(w, r)
			return
		}

		mock.lookupHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockLookup) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockLookup) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and queued responses.
func (m *MockLookup) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestedIDs = nil
	m.LastRequestHeader = nil
	m.queue = nil
}

// Add registers statuses the server will return when asked for their IDs.
func (m *MockLookup) Add(statuses ...MockStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range statuses {
		m.statuses[s.ID] = s
	}
}

// AddIDs registers a NewStatus for each id.
func (m *MockLookup) AddIDs(ids ...string) {
	for _, id := range ids {
		m.Add(NewStatus(id))
	}
}

// Enqueue serves resp for the next request instead of a lookup.
// Multiple calls are served in order.
func (m *MockLookup) Enqueue(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockLookup) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedIDs returns the ids of every lookup request served so far.
func (m *MockLookup) GetRequestedIDs() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]string, len(m.RequestedIDs))
	copy(out, m.RequestedIDs)
	return out
}

// lookupHandler returns the known statuses among the requested ids, in request order.
func (m *MockLookup) lookupHandler(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("id"); raw != "" {
		ids = strings.Split(raw, ",")
	}

	m.mu.Lock()
	m.RequestedIDs = append(m.RequestedIDs, ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.statuses[id]; ok {
			out = append(out, s.object())
		}
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors": [{"code": 88, "message": "Rate limit exceeded"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"errors": [{"code": 130, "message": "Over capacity"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"errors": [{"code": 89, "message": "Invalid or expired token"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
	}
}
