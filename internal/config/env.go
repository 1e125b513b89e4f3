package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays RELAY_* environment variables onto cfg. Unparseable
// values are ignored.
func FromEnv(cfg *Config) {
	envInt("RELAY_KEEPALIVE_MS", &cfg.KeepAliveMs)
	envInt64("RELAY_MAX_MESSAGE_BYTES", &cfg.MaxMessageBytes)
	envInt("RELAY_SEND_BUFFER", &cfg.SendBuffer)
	envInt("RELAY_WRITE_TIMEOUT_MS", &cfg.WriteTimeoutMs)
	envInt("RELAY_FANOUT_CONCURRENCY", &cfg.FanoutConcurrency)
	envInt("RELAY_MAX_SUBSCRIPTIONS", &cfg.MaxSubscriptionsPerConnection)

	if v := os.Getenv("RELAY_JOURNAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Journal.Enabled = b
		}
	}
	envInt64("RELAY_JOURNAL_RETENTION_MS", &cfg.Journal.RetentionMs)
	envInt64("RELAY_JOURNAL_MAX_BYTES", &cfg.Journal.MaxBytesPerRoute)
	envInt("RELAY_JOURNAL_SWEEP_MS", &cfg.Journal.SweepIntervalMs)

	// RELAY_SCHEMAS=name[=route],... replaces the schema list.
	if v := os.Getenv("RELAY_SCHEMAS"); v != "" {
		var schemas []SchemaConfig
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			name, route, _ := strings.Cut(p, "=")
			if route == "" {
				route = DefaultRoute
			}
			schemas = append(schemas, SchemaConfig{Name: strings.TrimSpace(name), Route: strings.TrimSpace(route)})
		}
		if len(schemas) > 0 {
			cfg.Schemas = schemas
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
