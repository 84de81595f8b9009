package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveAccept()
	m.ObserveRequest("CheckLocalFile", ResultOffsets, time.Millisecond)

	n, err := testutil.GatherAndCount(registry,
		"sigcrawl_server_requests_total",
		"sigcrawl_server_connections_accepted_total",
	)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestObserveRequest(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveRequest("CheckLocalFile", ResultOffsets, time.Millisecond)
	m.ObserveRequest("CheckLocalFile", ResultOffsets, time.Millisecond)
	m.ObserveRequest("QuarantineLocalFile", ResultError, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("CheckLocalFile", ResultOffsets)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("QuarantineLocalFile", ResultError)))
}

func TestCounters(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveAccept()
	m.ObserveAccept()
	m.ObserveAcceptError()
	m.ObserveRejected()
	m.ObservePanic()
	m.SetQueueDepth(3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.acceptedTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.acceptErrorTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.panicsTotal))
	require.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
}

func TestWorkerStarted(t *testing.T) {
	m := NewMetrics(nil)

	done1 := m.WorkerStarted()
	done2 := m.WorkerStarted()
	require.Equal(t, 2.0, testutil.ToFloat64(m.workersBusy))

	done1()
	done2()
	require.Equal(t, 0.0, testutil.ToFloat64(m.workersBusy))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.ObserveAccept()
		m.ObserveAcceptError()
		m.ObserveRejected()
		m.ObservePanic()
		m.SetQueueDepth(1)
		m.ObserveRequest("x", ResultError, time.Second)
		m.WorkerStarted()()
	})
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.ObservePanic()

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "sigcrawl_server_handler_panics_total 1"))
}
