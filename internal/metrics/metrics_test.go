package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest_UpdatesCounterAndHistogram(t *testing.T) {
	c := New(func() int { return 3 })

	c.ObserveRequest("openai", "direct", "ok", 50*time.Millisecond)
	c.ObserveRequest("anthropic", "composite", "error", 10*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, `deepgate_requests_total{format="openai",outcome="ok",path="direct"} 1`)
	assert.Contains(t, body, `deepgate_requests_total{format="anthropic",outcome="error",path="composite"} 1`)
	assert.Contains(t, body, "deepgate_request_duration_seconds")
}

func TestInFlightStreams_ReflectsCallback(t *testing.T) {
	count := 0
	c := New(func() int { return count })

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "deepgate_in_flight_streams 0")

	count = 7
	w = httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "deepgate_in_flight_streams 7")
}
