package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCallbacksAndCharges(t *testing.T) {
	m := New()

	m.ObserveCallback("applied", "SUCCESS")
	m.ObserveCallback("applied", "SUCCESS")
	m.ObserveCallback("duplicate", "SUCCESS")
	m.ObserveCharge("initiated")
	m.ObserveSTKPush(250 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CallbacksTotal.WithLabelValues("applied", "SUCCESS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CallbacksTotal.WithLabelValues("duplicate", "SUCCESS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChargesTotal.WithLabelValues("initiated")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.STKPushDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCharge("initiated")
		m.ObserveSTKPush(time.Second)
		m.ObserveCallback("applied", "SUCCESS")
		m.ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest("POST", "/api/v1/payments/charge", 200, 20*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `goride_payments_http_requests_total{method="POST",route="/api/v1/payments/charge",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
