package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveRequest(200)
	m.ObserveRequest(200)
	m.ObserveRequest(403)
	m.ObserveRefresh(RefreshSuccess)
	m.ObserveRefresh(RefreshRejected)
	m.ObserveRetry()
	m.SetAuthenticated(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("403")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(RefreshSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(RefreshRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authenticated))

	m.SetAuthenticated(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.authenticated))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(200)
		m.ObserveRefresh(RefreshSuccess)
		m.ObserveRetry()
		m.SetAuthenticated(true)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRetry()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reserve_client_retries_total 1")
}
