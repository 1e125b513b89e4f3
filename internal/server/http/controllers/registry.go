package controllers

import (
	"net/http"

	"github.com/rzbill/relay/internal/runtime"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general       *GeneralController
	events        *EventsController
	subscriptions *SubscriptionsController
}

// NewControllerRegistry creates a new controller registry.
//
// origins are the WebSocket OriginPatterns accepted by subscription endpoints.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger, origins []string) *ControllerRegistry {
	return &ControllerRegistry{
		general:       NewGeneralController(rt),
		events:        NewEventsController(rt, logger),
		subscriptions: NewSubscriptionsController(rt, logger, origins),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This method sets up all HTTP endpoints for the relay service: health and
// schemas, event publishing and the journal, and one subscription endpoint
// per mounted schema.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.events.RegisterRoutes(mux)
	r.subscriptions.RegisterRoutes(mux)
}
