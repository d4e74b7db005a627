package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.SessionsActive.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.SessionsActive))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.SessionsActive))
}

func TestObserveToolCall(t *testing.T) {
	m := NewMetrics()

	m.ObserveToolCall("terminal.start", nil)
	m.ObserveToolCall("terminal.start", nil)
	m.ObserveToolCall("terminal.start", errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ToolCalls.WithLabelValues("terminal.start", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolCalls.WithLabelValues("terminal.start", "error")))
}

func TestObserveRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("POST", "/rpc", "200", 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/rpc", "200")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.SessionsTotal.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "termd_sessions_total 1")
}
