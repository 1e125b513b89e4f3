package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/coder/websocket"

	subsvc "github.com/rzbill/relay/internal/services/subscriptions"
)

// Subprotocol is the WebSocket subprotocol offered to subscription clients.
const Subprotocol = "graphql-ws"

// wsTransport adapts a *websocket.Conn to subsvc.Transport. Messages are
// exchanged as whole text messages; the library reassembles fragments.
type wsTransport struct {
	conn   *websocket.Conn
	remote string
}

var _ subsvc.Transport = (*wsTransport)(nil)

func newWSTransport(conn *websocket.Conn, remote string, readLimit int64) *wsTransport {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &wsTransport{conn: conn, remote: remote}
}

// Read ignores cancellation of ctx: the library would answer it with a
// policy-violation close, while teardown closes with the proper status.
func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := t.conn.Read(context.WithoutCancel(ctx))
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		if readLimitExceeded(err) {
			return nil, fmt.Errorf("%w: %v", subsvc.ErrFraming, err)
		}
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("%w: unexpected %v message", subsvc.ErrFraming, typ)
	}
	return data, nil
}

// readLimitExceeded reports whether err comes from the connection's read
// limit. The library answers the violation with a message-too-big close; the
// first failed Read may only carry its text.
func readLimitExceeded(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusMessageTooBig {
		return true
	}
	return strings.Contains(err.Error(), "read limited at")
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

// Close maps the teardown cause to a close status. Failed transports are
// dropped without a close handshake.
func (t *wsTransport) Close(reason string) error {
	var err error
	switch reason {
	case subsvc.CauseClientClose, subsvc.CauseTerminate:
		err = t.conn.Close(websocket.StatusNormalClosure, "")
	case subsvc.CauseShutdown:
		err = t.conn.Close(websocket.StatusGoingAway, "server shutting down")
	case subsvc.CauseFraming:
		err = t.conn.Close(websocket.StatusUnsupportedData, "framing error")
	default:
		err = t.conn.CloseNow()
	}
	var ce websocket.CloseError
	if errors.As(err, &ce) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (t *wsTransport) RemoteAddr() string { return t.remote }
