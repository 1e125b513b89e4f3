package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/runtime"
	grpcserver "github.com/rzbill/relay/internal/server/grpc"
	httpserver "github.com/rzbill/relay/internal/server/http"
	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
	logpkg "github.com/rzbill/relay/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = os.Getenv

type Options struct {
	DataDir  string
	GRPCAddr string
	HTTPAddr string
	// ConfigPath, when set, replaces Config with the file's contents.
	ConfigPath    string
	LogLevel      string
	LogFormat     string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	// OriginPatterns restricts websocket origins; empty allows any.
	OriginPatterns []string
	// Registry receives relay metrics and backs /metrics. A fresh registry
	// is used when nil.
	Registry *prometheus.Registry
	// Override runs after file and environment settings, so flags win.
	Override func(*cfgpkg.Config)
}

// resolveConfig loads the config file if any, then applies RELAY_* overrides.
func resolveConfig(opts Options) (cfgpkg.Config, error) {
	cfg := opts.Config
	if opts.ConfigPath != "" {
		loaded, err := cfgpkg.Load(opts.ConfigPath)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfg = loaded
	}
	if len(cfg.Schemas) == 0 {
		cfg.Schemas = cfgpkg.Default().Schemas
	}
	cfgpkg.FromEnv(&cfg)
	if opts.Override != nil {
		opts.Override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func buildLogger(opts Options) (logpkg.Logger, *logpkg.Config) {
	cfg := &logpkg.Config{
		Level:  opts.LogLevel,
		Format: opts.LogFormat,
	}
	if cfg.Level == "" {
		cfg.Level = getenvDefault("RELAY_LOG_LEVEL", "info")
	}
	if cfg.Format == "" {
		cfg.Format = getenvDefault("RELAY_LOG_FORMAT", "text")
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		// Fallback to a sane default
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	return procLogger, cfg
}

// Run starts the gRPC and HTTP servers plus journal retention and blocks
// until ctx is cancelled or a server fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procLogger, logCfg := buildLogger(opts)
	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	rt, err := runtime.Open(runtime.Options{
		DataDir:       filepath.Join(opts.DataDir, "store"),
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        cfg,
		Logger:        procLogger,
		Registerer:    reg,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("starting relay server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
		logpkg.Int("keepalive_ms", cfg.KeepAliveMs),
		logpkg.Int64("max_message_bytes", cfg.MaxMessageBytes),
		logpkg.Int("schemas", len(cfg.Schemas)),
	)

	gsrv := grpcserver.New(rt, procLogger)
	hsrv := httpserver.New(rt, procLogger, httpserver.Options{Gatherer: reg, OriginPatterns: opts.OriginPatterns})

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		if err := gsrv.ListenAndServe(gctx, opts.GRPCAddr); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := hsrv.ListenAndServe(gctx, opts.HTTPAddr); err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error { return rt.RunRetention(gctx) })

	err = g.Wait()
	// Servers are down; close subscriptions before storage.
	sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := rt.Shutdown(sdCtx); serr != nil {
		procLogger.Warn("runtime shutdown", logpkg.Err(serr))
	}
	if err != nil {
		procLogger.Error("server stopped", logpkg.Err(err))
	}
	return err
}
