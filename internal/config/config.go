package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Schemas []SchemaConfig `json:"schemas" yaml:"schemas"`

	// KeepAliveMs is the keep-alive interval. 0 disables periodic ka.
	KeepAliveMs int `json:"keepAliveMs" yaml:"keepAliveMs"`
	// MaxMessageBytes caps one inbound WebSocket message.
	MaxMessageBytes int64 `json:"maxMessageBytes" yaml:"maxMessageBytes"`
	SendBuffer      int   `json:"sendBuffer" yaml:"sendBuffer"`
	WriteTimeoutMs  int   `json:"writeTimeoutMs" yaml:"writeTimeoutMs"`
	// FanoutConcurrency bounds concurrent plan executions per event.
	FanoutConcurrency int `json:"fanoutConcurrency" yaml:"fanoutConcurrency"`
	// MaxSubscriptionsPerConnection of 0 means unlimited.
	MaxSubscriptionsPerConnection int `json:"maxSubscriptionsPerConnection" yaml:"maxSubscriptionsPerConnection"`

	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// SchemaConfig declares one schema and the route its WebSocket endpoint is
// mounted on.
type SchemaConfig struct {
	Name  string `json:"name" yaml:"name"`
	Route string `json:"route" yaml:"route"`
	// DisableDefaultRoute leaves the endpoint unmounted; the schema still
	// accepts published events.
	DisableDefaultRoute bool `json:"disableDefaultRoute" yaml:"disableDefaultRoute"`
	// Fields restricts the subscribable routes. Empty allows any.
	Fields []string `json:"fields" yaml:"fields"`
}

// JournalConfig controls the published-event journal.
type JournalConfig struct {
	Enabled          bool  `json:"enabled" yaml:"enabled"`
	RetentionMs      int64 `json:"retentionMs" yaml:"retentionMs"`
	MaxBytesPerRoute int64 `json:"maxBytesPerRoute" yaml:"maxBytesPerRoute"`
	SweepIntervalMs  int   `json:"sweepIntervalMs" yaml:"sweepIntervalMs"`
}

const (
	DefaultSchemaName = "default"
	DefaultRoute      = "/graphql"
)

var schemaNameRe = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Schemas:                       []SchemaConfig{{Name: DefaultSchemaName, Route: DefaultRoute}},
		KeepAliveMs:                   120000,
		MaxMessageBytes:               4096,
		SendBuffer:                    256,
		WriteTimeoutMs:                10000,
		FanoutConcurrency:             16,
		MaxSubscriptionsPerConnection: 0,
		Journal: JournalConfig{
			Enabled:         true,
			RetentionMs:     int64(24 * time.Hour / time.Millisecond),
			SweepIntervalMs: 60000,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
// A file without schemas gets the default one; schemas without a route get
// DefaultRoute.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	cfg.Schemas = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if len(cfg.Schemas) == 0 {
		cfg.Schemas = Default().Schemas
	}
	cfg.fillRoutes()
	return cfg, nil
}

func (c *Config) fillRoutes() {
	for i := range c.Schemas {
		if c.Schemas[i].Route == "" {
			c.Schemas[i].Route = DefaultRoute
		}
	}
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if len(c.Schemas) == 0 {
		return errors.New("config: at least one schema is required")
	}
	names := make(map[string]bool, len(c.Schemas))
	routes := make(map[string]string, len(c.Schemas))
	for _, s := range c.Schemas {
		if !schemaNameRe.MatchString(s.Name) {
			return fmt.Errorf("config: invalid schema name %q", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("config: duplicate schema %q", s.Name)
		}
		names[s.Name] = true
		if s.DisableDefaultRoute {
			continue
		}
		if !strings.HasPrefix(s.Route, "/") || strings.HasPrefix(s.Route, "/v1/") || s.Route == "/metrics" {
			return fmt.Errorf("config: schema %q: invalid route %q", s.Name, s.Route)
		}
		if other, ok := routes[s.Route]; ok {
			return fmt.Errorf("config: schemas %q and %q share route %q", other, s.Name, s.Route)
		}
		routes[s.Route] = s.Name
	}
	switch {
	case c.KeepAliveMs < 0:
		return errors.New("config: keepAliveMs must not be negative")
	case c.MaxMessageBytes <= 0:
		return errors.New("config: maxMessageBytes must be positive")
	case c.SendBuffer < 0, c.WriteTimeoutMs < 0, c.FanoutConcurrency < 0, c.MaxSubscriptionsPerConnection < 0:
		return errors.New("config: limits must not be negative")
	case c.Journal.RetentionMs < 0, c.Journal.MaxBytesPerRoute < 0, c.Journal.SweepIntervalMs < 0:
		return errors.New("config: journal settings must not be negative")
	}
	return nil
}

// Schema returns the schema named name.
func (c Config) Schema(name string) (SchemaConfig, bool) {
	for _, s := range c.Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return SchemaConfig{}, false
}

// KeepAlive returns KeepAliveMs as a duration.
func (c Config) KeepAlive() time.Duration { return ms(int64(c.KeepAliveMs)) }

// WriteTimeout returns WriteTimeoutMs as a duration.
func (c Config) WriteTimeout() time.Duration { return ms(int64(c.WriteTimeoutMs)) }

// Retention returns the journal retention age.
func (j JournalConfig) Retention() time.Duration { return ms(j.RetentionMs) }

// SweepInterval returns the journal sweep period.
func (j JournalConfig) SweepInterval() time.Duration { return ms(int64(j.SweepIntervalMs)) }

func ms(n int64) time.Duration { return time.Duration(n) * time.Millisecond }
