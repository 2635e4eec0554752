package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockWebhookServer is an HTTP server that records incoming webhook
// deliveries. It stands in for Slack, Discord, and generic webhook
// endpoints in tests.
type MockWebhookServer struct {
	Server     *httptest.Server
	mu         sync.RWMutex
	Requests   []MockWebhookRequest
	StatusCode int
	Delay      time.Duration
}

// MockWebhookRequest is one recorded delivery.
type MockWebhookRequest struct {
	Method    string
	Path      string
	Headers   http.Header
	Body      map[string]interface{}
	RawBody   []byte
	Timestamp time.Time
}

// NewMockWebhookServer creates a recording webhook server that
// responds with 200 OK.
func NewMockWebhookServer() *MockWebhookServer {
	mock := &MockWebhookServer{StatusCode: http.StatusOK}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)

		var body map[string]interface{}
		json.Unmarshal(raw, &body)

		mock.mu.Lock()
		mock.Requests = append(mock.Requests, MockWebhookRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Headers:   r.Header.Clone(),
			Body:      body,
			RawBody:   raw,
			Timestamp: time.Now(),
		})
		delay := mock.Delay
		status := mock.StatusCode
		mock.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(status)
	}))

	return mock
}

// URL returns the server's base URL.
func (m *MockWebhookServer) URL() string {
	return m.Server.URL
}

// SetStatusCode changes the response status for subsequent requests.
func (m *MockWebhookServer) SetStatusCode(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCode = code
}

// SetDelay makes the server sleep before responding, for timeout tests.
func (m *MockWebhookServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delay = d
}

// RequestCount returns the number of recorded deliveries.
func (m *MockWebhookServer) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Requests)
}

// LastRequest returns the most recent delivery, or nil.
func (m *MockWebhookServer) LastRequest() *MockWebhookRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Requests) == 0 {
		return nil
	}
	req := m.Requests[len(m.Requests)-1]
	return &req
}

// Close shuts the server down.
func (m *MockWebhookServer) Close() {
	m.Server.Close()
}
