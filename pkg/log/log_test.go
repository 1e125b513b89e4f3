package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textLogger(buf *bytes.Buffer, opts ...LoggerOption) Logger {
	return NewLogger(append([]LoggerOption{WithFormatter(&TextFormatter{}), WithOutput(NewWriterOutput(buf))}, opts...)...)
}

func TestTextFormatterIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := textLogger(&buf, WithLevel(DebugLevel))
	l.With(Component("subscriptions")).Info("connection accepted", Str("conn_id", "c1"), Int("subs", 2))
	line := buf.String()
	for _, want := range []string{"INFO", "connection accepted", "component=subscriptions", "conn_id=c1", "subs=2"} {
		assert.Contains(t, line, want)
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := textLogger(&buf, WithLevel(WarnLevel))
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len(), "below-level records must be dropped")
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Error("write failed", Err(errors.New("boom")))
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), buf.String())
	assert.Equal(t, "write failed", m["msg"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "ERROR", m["level"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DebugLevel, "info": InfoLevel, "": InfoLevel, "WARN": WarnLevel, "error": ErrorLevel}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	_, err := ApplyConfig(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	l, err := ApplyConfig(&Config{Level: "error", Format: "json", Outputs: []OutputConfig{{Type: "null"}}})
	require.NoError(t, err)
	assert.Equal(t, ErrorLevel, l.GetLevel())
}

func TestRedactionAndSampling(t *testing.T) {
	path := t.TempDir() + "/relay.log"
	l, err := ApplyConfig(&Config{
		Format:   "json",
		Outputs:  []OutputConfig{{Type: "file", Path: path}},
		Redact:   []string{"token"},
		Sampling: &SamplingConfig{Initial: 1, Thereafter: 3},
	})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		l.Info("init", Str("token", "secret"), Int("n", i))
	}
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	// Kept: n=0 from the initial budget, then every third from n=1.
	require.Len(t, lines, 3, string(raw))
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, lines[0], `"token":"[REDACTED]"`)
	assert.Contains(t, lines[2], `"n":4`)
}

func TestCallerPointsAtCallSite(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&TextFormatter{ShowCaller: true}), WithOutput(NewWriterOutput(&buf)))
	l.Info("here")
	assert.Contains(t, buf.String(), "log_test.go:")
}

func TestSlogGroupsFlatten(t *testing.T) {
	var buf bytes.Buffer
	l := textLogger(&buf).(*logger)
	sl := slog.New(l.h).WithGroup("conn").With("id", "c1")
	sl.Info("opened", slog.Group("peer", slog.String("addr", "10.0.0.1")))
	assert.Contains(t, buf.String(), "conn.id=c1")
	assert.Contains(t, buf.String(), "conn.peer.addr=10.0.0.1")
}

func TestStdLoggerBridge(t *testing.T) {
	var buf bytes.Buffer
	ToStdLogger(textLogger(&buf), WarnLevel).Print("http: TLS handshake error")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "source=stdlog")
}
