package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Schemas, 1)
	assert.Equal(t, "default", cfg.Schemas[0].Name)
	assert.Equal(t, "/graphql", cfg.Schemas[0].Route)
	assert.Equal(t, 2*time.Minute, cfg.KeepAlive())
	assert.Equal(t, int64(4096), cfg.MaxMessageBytes)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, 16, cfg.FanoutConcurrency)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Journal.Retention())
	assert.Equal(t, time.Minute, cfg.Journal.SweepInterval())
	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Schemas, 1)
}

func TestLoadJSON(t *testing.T) {
	file := writeFile(t, "relay.json", `{
		"schemas": [{"name":"devices","fields":["fan.speedChanged"]},{"name":"ops","route":"/ops/ws"}],
		"keepAliveMs": 5000,
		"journal": {"enabled": false}
	}`)
	cfg, err := Load(file)
	require.NoError(t, err)
	require.Len(t, cfg.Schemas, 2)
	assert.Equal(t, "/graphql", cfg.Schemas[0].Route)
	assert.Equal(t, "/ops/ws", cfg.Schemas[1].Route)
	assert.Equal(t, 5000, cfg.KeepAliveMs)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 256, cfg.SendBuffer, "unset fields keep defaults")

	s, ok := cfg.Schema("devices")
	require.True(t, ok)
	assert.Equal(t, []string{"fan.speedChanged"}, s.Fields)
}

func TestLoadYAML(t *testing.T) {
	file := writeFile(t, "relay.yaml", `
schemas:
  - name: default
    route: /subscriptions
maxMessageBytes: 65536
journal:
  retentionMs: 3600000
`)
	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions", cfg.Schemas[0].Route)
	assert.Equal(t, int64(65536), cfg.MaxMessageBytes)
	assert.Equal(t, time.Hour, cfg.Journal.Retention())
	assert.True(t, cfg.Journal.Enabled)
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeFile(t, "relay.yml", "keepAlive: 10\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no schemas":       func(c *Config) { c.Schemas = nil },
		"bad name":         func(c *Config) { c.Schemas[0].Name = "Bad Name" },
		"duplicate name":   func(c *Config) { c.Schemas = append(c.Schemas, SchemaConfig{Name: "default", Route: "/x"}) },
		"shared route":     func(c *Config) { c.Schemas = append(c.Schemas, SchemaConfig{Name: "b", Route: "/graphql"}) },
		"reserved route":   func(c *Config) { c.Schemas[0].Route = "/v1/events" },
		"relative route":   func(c *Config) { c.Schemas[0].Route = "graphql" },
		"zero max message": func(c *Config) { c.MaxMessageBytes = 0 },
		"negative buffer":  func(c *Config) { c.SendBuffer = -1 },
		"negative sweep":   func(c *Config) { c.Journal.SweepIntervalMs = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Schemas = append(cfg.Schemas, SchemaConfig{Name: "hidden", Route: "/graphql", DisableDefaultRoute: true})
	assert.NoError(t, cfg.Validate(), "unmounted schema may reuse a route")
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("RELAY_KEEPALIVE_MS", "0")
	t.Setenv("RELAY_MAX_MESSAGE_BYTES", "8192")
	t.Setenv("RELAY_MAX_SUBSCRIPTIONS", "10")
	t.Setenv("RELAY_JOURNAL_ENABLED", "false")
	t.Setenv("RELAY_SEND_BUFFER", "not-a-number")
	t.Setenv("RELAY_SCHEMAS", "default, ops=/ops/ws")
	FromEnv(&cfg)

	assert.Equal(t, 0, cfg.KeepAliveMs)
	assert.Equal(t, int64(8192), cfg.MaxMessageBytes)
	assert.Equal(t, 10, cfg.MaxSubscriptionsPerConnection)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 256, cfg.SendBuffer, "invalid value must be ignored")

	var names []string
	for _, s := range cfg.Schemas {
		names = append(names, s.Name+"="+s.Route)
	}
	assert.Equal(t, []string{"default=/graphql", "ops=/ops/ws"}, names)
}
