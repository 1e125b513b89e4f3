package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcomes recorded by the fan-out path.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeDropped   = "dropped"
)

// Metrics groups the collectors. Labels never include connection or
// subscription ids.
type Metrics struct {
	ConnectionsActive   *prometheus.GaugeVec
	SubscriptionsActive *prometheus.GaugeVec
	MessagesReceived    *prometheus.CounterVec
	MessagesSent        *prometheus.CounterVec
	EventsReceived      *prometheus.CounterVec
	Deliveries          *prometheus.CounterVec
	FanoutDuration      *prometheus.HistogramVec
	Teardowns           *prometheus.CounterVec
	StorageOps          *prometheus.HistogramVec
	StorageBytes        *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Current number of live subscription connections, by schema.",
		}, []string{"schema"}),
		SubscriptionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_subscriptions_active",
			Help: "Current number of registered subscriptions, by schema.",
		}, []string{"schema"}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Protocol messages received from clients, by schema and type.",
		}, []string{"schema", "type"}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Protocol messages written to clients, by schema and type.",
		}, []string{"schema", "type"}),
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_received_total",
			Help: "Events submitted for fan-out, by schema.",
		}, []string{"schema"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Per-subscription fan-out results, by schema and outcome.",
		}, []string{"schema", "outcome"}),
		FanoutDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_fanout_duration_seconds",
			Help:    "Time to fan one event out to every matching subscription.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"schema"}),
		Teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_teardowns_total",
			Help: "Connection teardowns, by schema and cause.",
		}, []string{"schema", "cause"}),
		StorageOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_storage_op_duration_seconds",
			Help:    "Storage operation latency, by op.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"op"}),
		StorageBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_storage_bytes_total",
			Help: "Bytes moved through storage, by op.",
		}, []string{"op"}),
	}
}

// ConnectionOpened records a newly registered connection.
func (m *Metrics) ConnectionOpened(schema string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(schema).Inc()
}

// ConnectionClosed records a completed teardown.
func (m *Metrics) ConnectionClosed(schema, cause string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(schema).Dec()
	m.Teardowns.WithLabelValues(schema, cause).Inc()
}

// SubscriptionsAdded adjusts the subscription gauge by n (negative to remove).
func (m *Metrics) SubscriptionsAdded(schema string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SubscriptionsActive.WithLabelValues(schema).Add(float64(n))
}

// MessageReceived counts one inbound message.
func (m *Metrics) MessageReceived(schema, kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(schema, kind).Inc()
}

// MessageSent counts one message written to a transport.
func (m *Metrics) MessageSent(schema, kind string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(schema, kind).Inc()
}

// EventFannedOut records one ReceiveEvent call.
func (m *Metrics) EventFannedOut(schema string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(schema).Inc()
	m.FanoutDuration.WithLabelValues(schema).Observe(elapsed.Seconds())
}

// Delivery records one per-subscription outcome.
func (m *Metrics) Delivery(schema, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(schema, outcome).Inc()
}
