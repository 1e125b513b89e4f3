package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transports "github.com/rzbill/relay/internal/cmd/client/transports"
	cfgpkg "github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/runtime"
	grpcserver "github.com/rzbill/relay/internal/server/grpc"
	httpserver "github.com/rzbill/relay/internal/server/http"
	logpkg "github.com/rzbill/relay/pkg/log"
)

type testStack struct {
	rt      *runtime.Runtime
	httpURL string
}

func (s *testStack) baseURL() string { return s.httpURL }

// startStack runs a runtime with real HTTP and gRPC servers and points
// RELAY_GRPC at the latter.
func startStack(t *testing.T) *testStack {
	t.Helper()
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	reg := prometheus.NewRegistry()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Config: cfgpkg.Default(), Logger: logger, Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	hs := httptest.NewServer(httpserver.New(rt, logger, httpserver.Options{Gatherer: reg}).Handler())
	t.Cleanup(hs.Close)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpcserver.New(rt, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = gs.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	t.Setenv("RELAY_GRPC", lis.Addr().String())
	return &testStack{rt: rt, httpURL: hs.URL}
}

func run(t *testing.T, cmdArgs []string, baseURL BaseURLFunc) (string, error) {
	t.Helper()
	cmd := NewRoot(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(cmdArgs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestPublishAndEventsOverGRPC(t *testing.T) {
	s := startStack(t)
	out, err := run(t, []string{"publish", "--route", "fan.speedChanged", "--data", `{"speed":5}`}, s.baseURL)
	require.NoError(t, err)
	var rep transports.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.Equal(t, "fan.speedChanged", rep.Route)

	out, err = run(t, []string{"events", "--route", "fan.speedChanged"}, s.baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, `"speed": 5`, "journaled event")
}

func TestPublishAndEventsOverHTTP(t *testing.T) {
	s := startStack(t)
	_, err := run(t, []string{"publish", "--transport", "http", "--route", "r", "--data", "plain text"}, s.baseURL)
	require.NoError(t, err)
	out, err := run(t, []string{"events", "--transport", "http", "--route", "r", "--limit", "1"}, s.baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, `"plain text"`)
}

func TestPublishErrors(t *testing.T) {
	s := startStack(t)
	_, err := run(t, []string{"publish", "--data", "1"}, s.baseURL)
	assert.Error(t, err, "missing route")
	_, err = run(t, []string{"publish", "--route", "r", "--transport", "smoke"}, s.baseURL)
	assert.Error(t, err, "unknown transport")
	_, err = run(t, []string{"publish", "--route", "r", "--schema", "nope", "--transport", "http"}, s.baseURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSubscribePrintsFilteredResults(t *testing.T) {
	s := startStack(t)
	sup, err := s.rt.Supervisor("default")
	require.NoError(t, err)

	type result struct {
		out string
		err error
	}
	resc := make(chan result, 1)
	go func() {
		out, err := run(t, []string{"subscribe", "--route", "fan.speedChanged", "--id", "s1",
			"--filter", "event.speed > 3", "--select", `{"rpm": event.speed * 100.0}`, "--limit", "2"}, s.baseURL)
		resc <- result{out, err}
	}()

	require.Eventually(t, func() bool { return sup.Registry().Len() == 1 }, 2*time.Second, 5*time.Millisecond,
		"subscription not registered")
	for _, p := range []string{`{"speed":1}`, `{"speed":5}`, `{"speed":7}`} {
		_, err := s.rt.Publish(context.Background(), "default", "fan.speedChanged", json.RawMessage(p))
		require.NoError(t, err)
	}

	var res result
	select {
	case res = <-resc:
	case <-time.After(5 * time.Second):
		t.Fatalf("subscribe did not finish")
	}
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	require.Len(t, lines, 2, res.out)
	for i, want := range []float64{500, 700} {
		var line struct {
			ID      string `json:"id"`
			Payload struct {
				RPM float64 `json:"rpm"`
			} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &line), lines[i])
		assert.Equal(t, "s1", line.ID)
		assert.Equal(t, want, line.Payload.RPM)
	}
}

func TestSubscribeRejected(t *testing.T) {
	s := startStack(t)
	_, err := run(t, []string{"subscribe", "--route", "r", "--filter", "event.("}, s.baseURL)
	assert.ErrorIs(t, err, transports.ErrSubscriptionRejected)
}

func TestConnectionsCommand(t *testing.T) {
	s := startStack(t)
	out, err := run(t, []string{"connections", "--schema", "default"}, s.baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, `"schema": "default"`)
	_, err = run(t, []string{"connections", "--schema", "nope"}, s.baseURL)
	assert.Error(t, err, "unknown schema")
}

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8080":      "ws://127.0.0.1:8080/graphql",
		"https://relay.example/api/": "wss://relay.example/api/graphql",
	}
	for base, want := range cases {
		got, err := websocketURL(base, "graphql")
		require.NoError(t, err, base)
		assert.Equal(t, want, got)
	}
	_, err := websocketURL("ftp://x", "/graphql")
	assert.Error(t, err, "scheme")
}

func TestParsePayload(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(parsePayload(`{"a":1}`)))
	assert.Equal(t, `"hi"`, string(parsePayload("hi")))
	assert.Equal(t, "null", string(parsePayload("")))
}
