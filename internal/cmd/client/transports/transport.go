// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"
	"encoding/json"
	"time"
)

// Report mirrors the delivery summary returned by a publish.
type Report struct {
	Route     string `json:"route"`
	Matched   int    `json:"matched"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Dropped   int    `json:"dropped"`
}

// Event is one journaled event returned by Recent.
type Event struct {
	Schema      string          `json:"schema"`
	Route       string          `json:"route"`
	Seq         uint64          `json:"seq"`
	PublishedAt time.Time       `json:"publishedAt"`
	Payload     json.RawMessage `json:"payload"`
}

// EventsTransport abstracts the transport used by the CLI (gRPC/HTTP) for
// publishing and reading events.
type EventsTransport interface {
	Publish(ctx context.Context, schema, route string, payload json.RawMessage) (Report, error)
	Recent(ctx context.Context, schema, route string, limit int) ([]Event, error)
}

// SubscribeRequest describes one graphql-ws subscription.
type SubscribeRequest struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:8080/graphql.
	URL string
	// ID is the client-chosen subscription id.
	ID     string
	Route  string
	Filter string
	Select string
	// InitPayload is sent as connection_init params.
	InitPayload json.RawMessage
	// Limit stops after N data messages (0 = infinite).
	Limit int
}
