package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rzbill/relay/internal/runtime"
	logpkg "github.com/rzbill/relay/pkg/log"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
)

// EventsController handles event publishing and the journal read API.
type EventsController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewEventsController creates a new events controller.
func NewEventsController(rt *runtime.Runtime, logger logpkg.Logger) *EventsController {
	return &EventsController{rt: rt, logger: logger.With(logpkg.Component("events"))}
}

// RegisterRoutes registers the event routes with the given mux.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events/publish", c.handlePublish)
	mux.HandleFunc("/v1/events", c.handleRecent)
}

// handlePublish fans one event out to the schema's subscribers.
//
// Expects {"schema", "route", "payload"}; schema defaults to the first
// configured schema. Returns 202 Accepted with the delivery report.
func (c *EventsController) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Schema == "" {
		req.Schema = c.defaultSchema()
	}
	rep, err := c.rt.Publish(r.Context(), req.Schema, req.Route, req.Payload)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	c.logger.Debug("event published",
		logpkg.Str("schema", req.Schema), logpkg.Str("route", req.Route), logpkg.Int("matched", rep.Matched))
	writeJSONStatus(w, http.StatusAccepted, rep)
}

// handleRecent returns journaled events, newest first.
//
// Query parameters: schema, route, limit (default 20, max 1000). Without a
// route it lists the journaled routes of the schema instead.
func (c *EventsController) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	schema := q.Get("schema")
	if schema == "" {
		schema = c.defaultSchema()
	}
	route := q.Get("route")
	if route == "" {
		routes, err := c.rt.JournalRoutes(schema)
		if err != nil {
			writeRuntimeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"schema": schema, "routes": routes})
		return
	}
	limit := parseLimit(q.Get("limit"))
	if limit == 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	entries, err := c.rt.Recent(schema, route, limit)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"schema": schema, "route": route, "events": entries})
}

func (c *EventsController) defaultSchema() string {
	if s := c.rt.Config().Schemas; len(s) > 0 {
		return s[0].Name
	}
	return ""
}

// writeRuntimeError maps runtime sentinel errors to status codes.
func writeRuntimeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runtime.ErrUnknownSchema), errors.Is(err, runtime.ErrJournalDisabled):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runtime.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
