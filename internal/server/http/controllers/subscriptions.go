package controllers

import (
	"net/http"

	"github.com/coder/websocket"

	cfgpkg "github.com/rzbill/relay/internal/config"
	"github.com/rzbill/relay/internal/runtime"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// SubscriptionsController serves the graphql-ws endpoint of every mounted
// schema and the live connection listing.
type SubscriptionsController struct {
	rt      *runtime.Runtime
	logger  logpkg.Logger
	origins []string
}

// NewSubscriptionsController creates the controller. origins are the
// OriginPatterns accepted on upgrade; empty allows same-origin only.
func NewSubscriptionsController(rt *runtime.Runtime, logger logpkg.Logger, origins []string) *SubscriptionsController {
	return &SubscriptionsController{rt: rt, logger: logger.With(logpkg.Component("ws")), origins: origins}
}

// RegisterRoutes mounts each schema on its route unless the schema disables
// it, plus GET /v1/connections.
func (c *SubscriptionsController) RegisterRoutes(mux *http.ServeMux) {
	for _, sc := range c.rt.Config().Schemas {
		if sc.DisableDefaultRoute {
			continue
		}
		mux.Handle(sc.Route, c.upgrade(sc))
	}
	mux.HandleFunc("/v1/connections", c.handleConnections)
}

func (c *SubscriptionsController) upgrade(sc cfgpkg.SchemaConfig) http.Handler {
	sup, err := c.rt.Supervisor(sc.Name)
	if err != nil {
		// Config and runtime are built from the same schema list.
		panic(err)
	}
	limit := c.rt.Config().MaxMessageBytes
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:    []string{Subprotocol},
			OriginPatterns:  c.origins,
			CompressionMode: websocket.CompressionDisabled,
		})
		if err != nil {
			c.logger.Debug("websocket accept failed", logpkg.Str("schema", sc.Name), logpkg.Err(err))
			return
		}
		if conn.Subprotocol() != Subprotocol {
			c.logger.Debug("client did not negotiate graphql-ws", logpkg.Str("remote", r.RemoteAddr))
		}
		t := newWSTransport(conn, r.RemoteAddr, limit)
		if err := sup.Serve(r.Context(), t); err != nil {
			c.logger.Debug("connection ended", logpkg.Str("schema", sc.Name), logpkg.Err(err))
		}
	})
}

// handleConnections lists live connections and per-route subscription counts.
//
// Query parameters: schema (optional; all schemas when empty).
func (c *SubscriptionsController) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	names := c.rt.Schemas()
	if s := r.URL.Query().Get("schema"); s != "" {
		names = []string{s}
	}
	out := make([]schemaConnectionsJSON, 0, len(names))
	for _, name := range names {
		sup, err := c.rt.Supervisor(name)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		out = append(out, schemaConnectionsJSON{
			Schema:        name,
			Connections:   sup.Connections(),
			Routes:        sup.Registry().Routes(),
			Subscriptions: sup.Registry().Len(),
		})
	}
	writeJSON(w, map[string]any{"schemas": out})
}
