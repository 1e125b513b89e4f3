package controllers

import (
	"net/http"

	"github.com/rzbill/relay/internal/runtime"
)

// GeneralController handles health and schema discovery endpoints.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Schema listing (/v1/schemas)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/schemas", c.handleSchemas)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleSchemas lists the configured schemas with their mount routes and
// live connection counts. Schemas this data directory served before but that
// are no longer configured are listed under "retired".
func (c *GeneralController) handleSchemas(w http.ResponseWriter, r *http.Request) {
	cfg := c.rt.Config()
	metas, err := c.rt.Catalog()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	created := make(map[string]int64, len(metas))
	for _, m := range metas {
		created[m.Name] = m.CreatedAtMs
	}
	out := make([]schemaJSON, 0, len(cfg.Schemas))
	for _, sc := range cfg.Schemas {
		item := schemaJSON{Name: sc.Name, Fields: sc.Fields, CreatedAtMs: created[sc.Name]}
		delete(created, sc.Name)
		if !sc.DisableDefaultRoute {
			item.Route = sc.Route
		}
		if sup, err := c.rt.Supervisor(sc.Name); err == nil {
			item.Connections = len(sup.Connections())
			item.Subscriptions = sup.Registry().Len()
		}
		out = append(out, item)
	}
	retired := make([]string, 0, len(created))
	for _, m := range metas {
		if _, ok := created[m.Name]; ok {
			retired = append(retired, m.Name)
		}
	}
	writeJSON(w, map[string]any{"schemas": out, "retired": retired})
}
