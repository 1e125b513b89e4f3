package transports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/query"
)

const wsSubprotocol = "graphql-ws"

// ErrSubscriptionRejected is returned when the server answers start with an
// error message.
var ErrSubscriptionRejected = errors.New("subscription rejected")

// WSSubscriber runs one graphql-ws subscription per Subscribe call.
type WSSubscriber struct {
	// HandshakeTimeout bounds dial and connection_init; zero means 10s.
	HandshakeTimeout time.Duration
}

// Subscribe dials req.URL, subscribes and calls onData for every result until
// the server completes the subscription, req.Limit results were seen, or ctx
// is done. Cancelling ctx is a clean stop.
func (s WSSubscriber) Subscribe(ctx context.Context, req SubscribeRequest, onData func(id string, payload json.RawMessage) error) error {
	hs := s.HandshakeTimeout
	if hs <= 0 {
		hs = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, hs)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, req.URL, &websocket.DialOptions{Subprotocols: []string{wsSubprotocol}})
	if err != nil {
		return fmt.Errorf("dial %s: %w", req.URL, err)
	}
	defer func() { _ = conn.CloseNow() }()

	ws := &wsConn{conn: conn}
	if err := ws.send(dctx, protocol.Init(req.InitPayload)); err != nil {
		return err
	}
	if err := ws.awaitAck(dctx); err != nil {
		return err
	}

	vars := map[string]interface{}{}
	if req.Filter != "" {
		vars[query.FilterVar] = req.Filter
	}
	if req.Select != "" {
		vars[query.SelectVar] = req.Select
	}
	if len(vars) == 0 {
		vars = nil
	}
	if err := ws.send(ctx, protocol.Start(req.ID, protocol.StartPayload{Query: req.Route, Variables: vars})); err != nil {
		return err
	}

	seen := 0
	for {
		m, err := ws.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch m.Kind {
		case protocol.KindConnectionKeepAlive:
		case protocol.KindData:
			if m.ID != req.ID {
				continue
			}
			if err := onData(m.ID, m.Payload); err != nil {
				return err
			}
			seen++
			if req.Limit > 0 && seen >= req.Limit {
				return ws.finish(req.ID, hs)
			}
		case protocol.KindError:
			if m.ID != req.ID {
				continue
			}
			return fmt.Errorf("%w: %s", ErrSubscriptionRejected, m.Diagnostic)
		case protocol.KindComplete:
			if m.ID == req.ID {
				return ws.terminate(hs)
			}
		case protocol.KindConnectionError:
			return fmt.Errorf("connection error: %s", m.Diagnostic)
		}
	}
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) send(ctx context.Context, m protocol.Message) error {
	raw, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return w.conn.Write(ctx, websocket.MessageText, raw)
}

func (w *wsConn) read(ctx context.Context) (protocol.Message, error) {
	for {
		_, raw, err := w.conn.Read(ctx)
		if err != nil {
			return protocol.Message{}, err
		}
		m, err := protocol.Decode(raw)
		if err != nil {
			// Unknown or malformed server messages are skipped.
			continue
		}
		return m, nil
	}
}

func (w *wsConn) awaitAck(ctx context.Context) error {
	for {
		m, err := w.read(ctx)
		if err != nil {
			return fmt.Errorf("await ack: %w", err)
		}
		switch m.Kind {
		case protocol.KindConnectionAck:
			return nil
		case protocol.KindConnectionError:
			return fmt.Errorf("connection rejected: %s", m.Diagnostic)
		}
	}
}

// finish stops id, waits briefly for complete, then terminates.
func (w *wsConn) finish(id string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := w.send(ctx, protocol.Stop(id)); err != nil {
		return err
	}
	for {
		m, err := w.read(ctx)
		if err != nil {
			return nil
		}
		if m.Kind == protocol.KindComplete && m.ID == id {
			return w.terminate(timeout)
		}
	}
}

func (w *wsConn) terminate(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := w.send(ctx, protocol.Terminate()); err != nil {
		return nil
	}
	_ = w.conn.Close(websocket.StatusNormalClosure, "")
	return nil
}
