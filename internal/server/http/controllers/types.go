package controllers

import (
	"encoding/json"

	subsvc "github.com/rzbill/relay/internal/services/subscriptions"
)

// Common request/response types for HTTP controllers

// publishReq represents a request to publish an event to a route.
type publishReq struct {
	Schema  string          `json:"schema"`
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload"`
}

// schemaJSON describes one configured schema.
type schemaJSON struct {
	Name          string   `json:"name"`
	Route         string   `json:"route,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	Connections   int      `json:"connections"`
	Subscriptions int      `json:"subscriptions"`
	CreatedAtMs   int64    `json:"createdAtMs,omitempty"`
}

// schemaConnectionsJSON is the live state of one schema.
type schemaConnectionsJSON struct {
	Schema        string                  `json:"schema"`
	Connections   []subsvc.ConnectionInfo `json:"connections"`
	Routes        map[string]int          `json:"routes"`
	Subscriptions int                     `json:"subscriptions"`
}
