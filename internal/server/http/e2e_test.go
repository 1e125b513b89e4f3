package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/runtime"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, path string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"graphql-ws"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	assert.Equal(t, "graphql-ws", conn.Subprotocol())
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(m protocol.Message) {
	c.t.Helper()
	raw, err := protocol.Encode(m)
	require.NoError(c.t, err)
	c.sendRaw(websocket.MessageText, raw)
}

func (c *wsClient) sendRaw(typ websocket.MessageType, raw []byte) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, typ, raw))
}

func (c *wsClient) read() (protocol.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, raw, err := c.conn.Read(ctx)
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.Decode(raw)
}

func (c *wsClient) next() protocol.Message {
	c.t.Helper()
	m, err := c.read()
	require.NoError(c.t, err)
	return m
}

func (c *wsClient) initialise() {
	c.t.Helper()
	c.send(protocol.Init(json.RawMessage(`{}`)))
	require.Equal(c.t, protocol.KindConnectionAck, c.next().Kind)
	require.Equal(c.t, protocol.KindConnectionKeepAlive, c.next().Kind)
}

func startServer(t *testing.T, cfg cfgpkg.Config) (*httptest.Server, *runtime.Runtime) {
	t.Helper()
	s, rt := newTestServer(t, cfg)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, rt
}

func publish(t *testing.T, srv *httptest.Server, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/events/publish", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var rep map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	return rep
}

func waitSubscriptions(t *testing.T, rt *runtime.Runtime, n int) {
	t.Helper()
	sup, err := rt.Supervisor("default")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sup.Registry().Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketSubscriptionLifecycle(t *testing.T) {
	srv, rt := startServer(t, cfgpkg.Default())
	c := dial(t, srv, "/graphql")
	c.initialise()

	c.send(protocol.Start("1", protocol.StartPayload{Query: "fan.speedChanged"}))
	waitSubscriptions(t, rt, 1)

	rep := publish(t, srv, `{"route":"fan.speedChanged","payload":{"speed":5}}`)
	assert.EqualValues(t, 1, rep["matched"])
	assert.EqualValues(t, 1, rep["delivered"])

	m := c.next()
	assert.Equal(t, protocol.KindData, m.Kind)
	assert.Equal(t, "1", m.ID)
	assert.JSONEq(t, `{"speed":5}`, string(m.Payload))

	c.send(protocol.Stop("1"))
	m = c.next()
	assert.Equal(t, protocol.KindComplete, m.Kind)
	assert.Equal(t, "1", m.ID)
	waitSubscriptions(t, rt, 0)

	require.NoError(t, c.conn.Close(websocket.StatusNormalClosure, ""))
	sup, _ := rt.Supervisor("default")
	require.Eventually(t, func() bool { return len(sup.Connections()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketFilterAndSelect(t *testing.T) {
	srv, rt := startServer(t, cfgpkg.Default())
	c := dial(t, srv, "/graphql")
	c.initialise()

	c.send(protocol.Start("fast", protocol.StartPayload{
		Query:     "fan.speedChanged",
		Variables: map[string]any{"filter": "event.speed > 3", "select": `{"rpm": event.speed * 100.0}`},
	}))
	waitSubscriptions(t, rt, 1)

	rep := publish(t, srv, `{"route":"fan.speedChanged","payload":{"speed":1}}`)
	assert.EqualValues(t, 1, rep["skipped"])
	publish(t, srv, `{"route":"fan.speedChanged","payload":{"speed":7}}`)

	m := c.next()
	assert.Equal(t, protocol.KindData, m.Kind)
	assert.JSONEq(t, `{"rpm":700}`, string(m.Payload))
}

func TestWebSocketTerminate(t *testing.T) {
	srv, rt := startServer(t, cfgpkg.Default())
	c := dial(t, srv, "/graphql")
	c.initialise()
	c.send(protocol.Start("1", protocol.StartPayload{Query: "a"}))
	waitSubscriptions(t, rt, 1)

	c.send(protocol.Terminate())
	_, err := c.read()
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	waitSubscriptions(t, rt, 0)
}

func TestWebSocketBinaryFrameClosesConnection(t *testing.T) {
	srv, rt := startServer(t, cfgpkg.Default())
	c := dial(t, srv, "/graphql")
	c.initialise()
	c.send(protocol.Start("1", protocol.StartPayload{Query: "a"}))
	waitSubscriptions(t, rt, 1)

	c.sendRaw(websocket.MessageBinary, []byte{0x01, 0x02})
	_, err := c.read()
	require.Error(t, err)
	assert.Equal(t, websocket.StatusUnsupportedData, websocket.CloseStatus(err))
	waitSubscriptions(t, rt, 0)
}

func TestWebSocketOversizeMessageClosesConnection(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MaxMessageBytes = 128
	srv, rt := startServer(t, cfg)
	c := dial(t, srv, "/graphql")
	c.initialise()

	big := `{"type":"start","id":"1","payload":{"query":"` + strings.Repeat("a", 512) + `"}}`
	c.sendRaw(websocket.MessageText, []byte(big))
	_, err := c.read()
	require.Error(t, err)
	sup, _ := rt.Supervisor("default")
	require.Eventually(t, func() bool { return len(sup.Connections()) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sup.Registry().Len())
}

func TestWebSocketMalformedMessageKeepsConnection(t *testing.T) {
	srv, _ := startServer(t, cfgpkg.Default())
	c := dial(t, srv, "/graphql")

	c.sendRaw(websocket.MessageText, []byte(`{"type":`))
	assert.Equal(t, protocol.KindConnectionError, c.next().Kind)
	c.initialise()
}

func TestRuntimeShutdownClosesWebSockets(t *testing.T) {
	srv, rt := startServer(t, cfgpkg.Default())
	c := dial(t, srv, "/graphql")
	c.initialise()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.Shutdown(ctx))
	_, err := c.read()
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
