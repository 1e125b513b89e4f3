package subsvc

import (
	"context"
	"errors"
)

var (
	// ErrFraming marks a transport stream that can no longer be trusted, such as
	// a binary frame or an oversize message. It always ends the connection.
	ErrFraming = errors.New("subscriptions: framing error")
	// ErrClosed is returned when sending to, or registering, a closing connection.
	ErrClosed = errors.New("subscriptions: connection closed")
)

// Transport is a message-oriented duplex channel, usually a websocket.
//
// Read returns exactly one complete text message; implementations reassemble
// fragmented frames before returning. A clean close by the peer is io.EOF.
// Write is only ever called from one goroutine at a time.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(reason string) error
	RemoteAddr() string
}
