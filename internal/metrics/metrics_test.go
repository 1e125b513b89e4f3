package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConnectionLifecycleCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ConnectionOpened("default")
	m.ConnectionOpened("default")
	m.ConnectionClosed("default", "client_close")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsActive.WithLabelValues("default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Teardowns.WithLabelValues("default", "client_close")))
}

func TestSubscriptionsGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SubscriptionsAdded("s", 3)
	m.SubscriptionsAdded("s", -2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionsActive.WithLabelValues("s")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened("x")
	m.Delivery("x", OutcomeDelivered)
	m.EventFannedOut("x", time.Millisecond)
	StorageHook{}.ObserveWrite(time.Millisecond, 10)
}

func TestStorageHook(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := StorageHook{M: m}
	h.ObserveBatchCommit(time.Millisecond, 1, 128)
	h.ObserveRead(time.Millisecond, 64)
	assert.Equal(t, 128.0, testutil.ToFloat64(m.StorageBytes.WithLabelValues("commit")))
	assert.Equal(t, 64.0, testutil.ToFloat64(m.StorageBytes.WithLabelValues("read")))
}
