package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/relay/internal/catalog"
	cfgpkg "github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/eventlog"
	"github.com/rzbill/relay/internal/metrics"
	"github.com/rzbill/relay/internal/query"
	subsvc "github.com/rzbill/relay/internal/services/subscriptions"
	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
	logpkg "github.com/rzbill/relay/pkg/log"
)

var (
	ErrUnknownSchema   = errors.New("unknown schema")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrJournalDisabled = errors.New("journal disabled")
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	// Registerer receives the relay collectors. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Runtime wires storage, the journal, and one subscription supervisor per
// configured schema.
type Runtime struct {
	db          *pebblestore.DB
	journal     *eventlog.Journal
	config      cfgpkg.Config
	logger      logpkg.Logger
	metrics     *metrics.Metrics
	supervisors map[string]*subsvc.Supervisor
}

// Open validates the configuration, opens storage and builds the
// supervisors.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	base := opts.Logger
	if base == nil {
		base = logpkg.NewLogger()
	}
	logger := base.With(logpkg.Component("runtime"))
	m := metrics.New(opts.Registerer)

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       metrics.StorageHook{M: m},
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		db:          db,
		config:      opts.Config,
		logger:      logger,
		metrics:     m,
		supervisors: make(map[string]*subsvc.Supervisor, len(opts.Config.Schemas)),
	}
	if opts.Config.Journal.Enabled {
		rt.journal = eventlog.NewJournal(db)
	}

	limits := subsvc.Limits{
		KeepAlive:                     opts.Config.KeepAlive(),
		SendBuffer:                    opts.Config.SendBuffer,
		WriteTimeout:                  opts.Config.WriteTimeout(),
		MaxSubscriptionsPerConnection: opts.Config.MaxSubscriptionsPerConnection,
		FanoutConcurrency:             opts.Config.FanoutConcurrency,
	}
	now := time.Now()
	for _, sc := range opts.Config.Schemas {
		route := sc.Route
		if sc.DisableDefaultRoute {
			route = ""
		}
		if _, err := catalog.Ensure(db, sc.Name, route, sc.Fields, now); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("schema %s: catalog: %w", sc.Name, err)
		}
		engine, err := query.NewCELEngine(query.WithFields(sc.Fields...))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("schema %s: %w", sc.Name, err)
		}
		rt.supervisors[sc.Name] = subsvc.New(sc.Name, engine,
			subsvc.WithLogger(base),
			subsvc.WithMetrics(m),
			subsvc.WithLimits(limits),
		)
	}
	logger.Info("runtime opened",
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("fsync", db.Fsync().String()),
		logpkg.Int("schemas", len(rt.supervisors)),
		logpkg.Bool("journal", rt.journal != nil),
	)
	return rt, nil
}

// Close shuts every supervisor down and closes storage.
func (r *Runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(ctx)
}

// Shutdown is Close bounded by ctx.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	for _, name := range r.Schemas() {
		if err := r.supervisors[name].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("schema %s: %w", name, err))
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	return errors.Join(errs...)
}

// CheckHealth reports whether storage is usable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Ping()
}

// Schemas returns the configured schema names, sorted.
func (r *Runtime) Schemas() []string {
	out := make([]string, 0, len(r.supervisors))
	for name := range r.supervisors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Supervisor returns the supervisor of schema.
func (r *Runtime) Supervisor(schema string) (*subsvc.Supervisor, error) {
	s, ok := r.supervisors[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
	}
	return s, nil
}

// Publish journals the event and fans it out to the schema's subscribers.
// A journal failure is logged and does not stop delivery.
func (r *Runtime) Publish(ctx context.Context, schema, route string, payload json.RawMessage) (subsvc.Report, error) {
	sup, err := r.Supervisor(schema)
	if err != nil {
		return subsvc.Report{}, err
	}
	if route == "" {
		return subsvc.Report{}, fmt.Errorf("%w: route is required", ErrInvalidEvent)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		return subsvc.Report{}, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEvent)
	}
	if r.journal != nil {
		if _, err := r.journal.Record(ctx, schema, route, payload); err != nil {
			r.logger.Warn("journal append failed",
				logpkg.Str("schema", schema), logpkg.Str("route", route), logpkg.Err(err))
		}
	}
	return sup.ReceiveEvent(ctx, route, payload), nil
}

// Recent returns the newest journaled events of (schema, route).
func (r *Runtime) Recent(schema, route string, limit int) ([]eventlog.Entry, error) {
	if _, err := r.Supervisor(schema); err != nil {
		return nil, err
	}
	if r.journal == nil {
		return nil, ErrJournalDisabled
	}
	return r.journal.Recent(schema, route, limit)
}

// JournalRoutes lists the routes of schema with journaled events.
func (r *Runtime) JournalRoutes(schema string) ([]string, error) {
	if _, err := r.Supervisor(schema); err != nil {
		return nil, err
	}
	if r.journal == nil {
		return nil, ErrJournalDisabled
	}
	return r.journal.Routes(schema)
}

// SweepJournal applies the configured retention once.
func (r *Runtime) SweepJournal(ctx context.Context) (int, error) {
	if r.journal == nil {
		return 0, nil
	}
	return r.journal.Sweep(ctx, eventlog.Retention{
		MaxAge:   r.config.Journal.Retention(),
		MaxBytes: r.config.Journal.MaxBytesPerRoute,
		Compact:  true,
	})
}

// RunRetention sweeps the journal every Journal.SweepIntervalMs until ctx is
// done. It returns immediately when there is nothing to sweep.
func (r *Runtime) RunRetention(ctx context.Context) error {
	jc := r.config.Journal
	if r.journal == nil || jc.SweepInterval() <= 0 || (jc.RetentionMs == 0 && jc.MaxBytesPerRoute == 0) {
		return nil
	}
	ticker := time.NewTicker(jc.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.SweepJournal(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("journal sweep failed", logpkg.Err(err))
				continue
			}
			if n > 0 {
				r.logger.Debug("journal swept", logpkg.Int("deleted", n))
			}
		}
	}
}

// Catalog lists every schema this data directory has served, including ones
// no longer configured.
func (r *Runtime) Catalog() ([]catalog.Meta, error) {
	if r.db == nil {
		return nil, errors.New("runtime closed")
	}
	return catalog.List(r.db)
}

// Metrics returns the runtime's collectors.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
