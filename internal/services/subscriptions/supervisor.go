package subsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzbill/relay/internal/metrics"
	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/query"
	"github.com/rzbill/relay/internal/registry"
	"github.com/rzbill/relay/pkg/id"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// Supervisor owns the live connections and the subscription registry of one
// schema and fans published events out to them.
type Supervisor struct {
	schema   string
	engine   query.Engine
	registry *registry.Registry
	logger   logpkg.Logger
	metrics  *metrics.Metrics
	limits   Limits
	ids      *id.Generator

	mu     sync.RWMutex
	conns  map[string]*Connection
	closed bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor's logger.
func WithLogger(l logpkg.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records connection and fan-out metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithLimits overrides DefaultLimits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(s *Supervisor) { s.limits = l }
}

// New creates a supervisor for schema.
func New(schema string, engine query.Engine, opts ...Option) *Supervisor {
	s := &Supervisor{
		schema:   schema,
		engine:   engine,
		registry: registry.New(),
		limits:   DefaultLimits(),
		ids:      id.NewGenerator(),
		conns:    make(map[string]*Connection),
	}
	for _, o := range opts {
		o(s)
	}
	s.limits = s.limits.normalized()
	if s.logger == nil {
		s.logger = logpkg.NewLogger()
	}
	s.logger = s.logger.With(logpkg.Component("subscriptions"), logpkg.Str("schema", schema))
	return s
}

// Schema returns the schema name.
func (s *Supervisor) Schema() string { return s.schema }

// Registry returns the subscription registry.
func (s *Supervisor) Registry() *registry.Registry { return s.registry }

// Limits returns the effective limits.
func (s *Supervisor) Limits() Limits { return s.limits }

// NewConnection wraps t in a Connection. Call Serve to run it.
func (s *Supervisor) NewConnection(t Transport) *Connection {
	return newConnection(s, t, s.ids.Next().String())
}

// Serve runs a new connection over t until it closes.
func (s *Supervisor) Serve(ctx context.Context, t Transport) error {
	return s.NewConnection(t).Serve(ctx)
}

// RegisterConnection adds c to the live set. It fails after Shutdown.
func (s *Supervisor) RegisterConnection(c *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.conns[c.id]; exists {
		return fmt.Errorf("connection %s already registered", c.id)
	}
	s.conns[c.id] = c
	s.metrics.ConnectionOpened(s.schema)
	return nil
}

// UnregisterConnection removes c from the live set and reports whether it was
// present. Repeated calls are no-ops.
func (s *Supervisor) UnregisterConnection(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.conns[c.id]; !ok || cur != c {
		return false
	}
	delete(s.conns, c.id)
	return true
}

// Connection returns the live connection with the given id.
func (s *Supervisor) Connection(connID string) (*Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[connID]
	return c, ok
}

// Connections returns a snapshot of live connections ordered by id, which is
// also accept order.
func (s *Supervisor) Connections() []ConnectionInfo {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	out := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Info())
	}
	return out
}

// Report summarises one ReceiveEvent call.
type Report struct {
	Route string `json:"route"`
	// Matched is the number of subscriptions in the route snapshot.
	Matched   int `json:"matched"`
	Delivered int `json:"delivered"`
	// Failed counts subscriptions that received an error message instead of data.
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	// Dropped counts results whose connection closed before they could be queued.
	Dropped int `json:"dropped"`
}

// ReceiveEvent delivers payload to every subscription on route. It is safe
// for concurrent use and never fails: per-subscription problems become error
// messages on that subscription's connection and show up in the Report.
// Cancellation of ctx does not stop a fan-out that has begun; its values
// are still passed to plan execution.
func (s *Supervisor) ReceiveEvent(ctx context.Context, route string, payload json.RawMessage) Report {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	subs := s.registry.LookupByRoute(route)
	rep := Report{Route: route, Matched: len(subs)}
	if len(subs) == 0 {
		s.metrics.EventFannedOut(s.schema, time.Since(start))
		return rep
	}

	var delivered, failed, skipped, dropped atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.limits.FanoutConcurrency)
	for _, sub := range subs {
		g.Go(func() error {
			switch outcome := s.deliver(ctx, sub, payload); outcome {
			case metrics.OutcomeDelivered:
				delivered.Add(1)
			case metrics.OutcomeFailed:
				failed.Add(1)
			case metrics.OutcomeSkipped:
				skipped.Add(1)
			default:
				dropped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Delivered = int(delivered.Load())
	rep.Failed = int(failed.Load())
	rep.Skipped = int(skipped.Load())
	rep.Dropped = int(dropped.Load())
	s.metrics.EventFannedOut(s.schema, time.Since(start))
	return rep
}

func (s *Supervisor) deliver(ctx context.Context, sub *registry.Subscription, payload json.RawMessage) (outcome string) {
	var msg protocol.Message
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("plan execution panicked",
				logpkg.Str("route", sub.Route), logpkg.Str("id", sub.ID), logpkg.F("panic", r))
			msg = protocol.Error(sub.ID, "internal error")
			outcome = metrics.OutcomeFailed
			if sub.Owner.Enqueue(msg) != nil {
				outcome = metrics.OutcomeDropped
			}
		}
		s.metrics.Delivery(s.schema, outcome)
	}()

	result, err := s.engine.ExecutePlan(ctx, sub.Plan, payload)
	switch {
	case errors.Is(err, query.ErrSkip):
		return metrics.OutcomeSkipped
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Interrupted executions send nothing.
		s.logger.Debug("plan execution interrupted",
			logpkg.Str("route", sub.Route), logpkg.Str("id", sub.ID), logpkg.Err(err))
		return metrics.OutcomeDropped
	case err != nil:
		s.logger.Debug("plan execution failed",
			logpkg.Str("route", sub.Route), logpkg.Str("conn_id", sub.ConnectionID), logpkg.Str("id", sub.ID), logpkg.Err(err))
		msg = protocol.Error(sub.ID, err.Error())
		outcome = metrics.OutcomeFailed
	default:
		msg = protocol.Data(sub.ID, result)
		outcome = metrics.OutcomeDelivered
	}
	if err := sub.Owner.Enqueue(msg); err != nil {
		return metrics.OutcomeDropped
	}
	return outcome
}

// Shutdown stops accepting connections and tears down every live one. It
// returns ctx.Err() if teardown does not finish in time.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, c := range conns {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Close()
			}()
		}
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("subscriptions shut down", logpkg.Int("connections", len(conns)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
