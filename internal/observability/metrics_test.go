package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Each instance owns its registry; constructing twice in one process
	// must not trip duplicate registration.
	m1 := NewMetrics()
	m2 := NewMetrics()

	require.NotNil(t, m1)
	require.NotNil(t, m2)
}

func TestMetrics_HandlerServesCounters(t *testing.T) {
	m := NewMetrics()

	m.SignalIngested()
	m.AccountScored()
	m.HTTPRequest("/api/signals", 202, 5*time.Millisecond)
	m.CacheHit()
	m.CacheMiss()
	m.RecomputeRun(120 * time.Millisecond)
	m.StreamClientConnected()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "signals_ingested_total 1")
	assert.Contains(t, body, "accounts_scored_total 1")
	assert.Contains(t, body, `http_requests_total{route="/api/signals",status="202"} 1`)
	assert.Contains(t, body, "cache_hits_total 1")
	assert.Contains(t, body, "cache_misses_total 1")
	assert.Contains(t, body, "recompute_runs_total 1")
	assert.Contains(t, body, "event_stream_clients 1")
}

func TestMetrics_NilReceiverNoOps(t *testing.T) {
	var m *Metrics

	// None of these may panic
	m.SignalIngested()
	m.AccountScored()
	m.ScoringFailure()
	m.HTTPRequest("/health", 200, time.Millisecond)
	m.CacheHit()
	m.CacheMiss()
	m.RecomputeRun(time.Second)
	m.StreamClientConnected()
	m.StreamClientDisconnected()

	assert.NotNil(t, m.Handler())
}
