package api

import (
	"dispatch-coordination-service/internal/api/handlers"
	"dispatch-coordination-service/internal/ports"
	"dispatch-coordination-service/internal/services"
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Loads   *services.LoadService
	Blasts  *services.BlastService
	Alerts  *services.AlertService
	Planner *services.RoutePlanner
	Clock   ports.Clock
	DB      handlers.Pinger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	health := &handlers.HealthHandler{DB: d.DB}
	loads := &handlers.LoadHandler{Loads: d.Loads}
	blasts := &handlers.BlastHandler{Blasts: d.Blasts, Clock: d.Clock}
	alerts := &handlers.AlertHandler{Alerts: d.Alerts}
	routes := &handlers.RouteHandler{Planner: d.Planner}

	mux.HandleFunc("GET /health", health.Health)

	mux.HandleFunc("POST /loads", loads.Create)
	mux.HandleFunc("GET /loads/{id}", loads.Get)
	mux.HandleFunc("PATCH /loads/{id}/status", loads.UpdateStatus)

	mux.HandleFunc("POST /blasts", blasts.Create)
	mux.HandleFunc("GET /blasts/analytics", blasts.Analytics)
	mux.HandleFunc("GET /blasts/{id}", blasts.Get)
	mux.HandleFunc("POST /blasts/{id}/view", blasts.View)
	mux.HandleFunc("POST /blasts/{id}/interest", blasts.Interest)
	mux.HandleFunc("POST /blasts/{id}/confirm", blasts.Confirm)
	mux.HandleFunc("POST /blasts/{id}/decline", blasts.Decline)
	mux.HandleFunc("POST /blasts/{id}/cancel", blasts.Cancel)

	mux.HandleFunc("GET /alerts", alerts.List)
	mux.HandleFunc("POST /alerts", alerts.Raise)
	mux.HandleFunc("POST /alerts/dismiss", alerts.Dismiss)
	mux.HandleFunc("POST /alerts/{id}/ack", alerts.Acknowledge)
	mux.HandleFunc("POST /alerts/{id}/resolve", alerts.Resolve)

	mux.HandleFunc("POST /routes/optimize", routes.Optimize)
	mux.HandleFunc("POST /couriers/{id}/route", routes.CourierRoute)

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	return requestLogger(logger)(mux)
}
