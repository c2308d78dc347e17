package handlers

import (
	"dispatch-coordination-service/internal/api/dto"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/services"
	"net/http"
)

const maxRouteStops = 200

type RouteHandler struct {
	Planner *services.RoutePlanner
}

// Optimize orders caller-supplied stops. Nothing is persisted.
func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRouteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if len(req.Stops) > maxRouteStops {
		writeError(w, r, http.StatusBadRequest, "too many stops")
		return
	}

	opts := routeOptions(req.RouteOptionsRequest)
	opts.StartIndex = req.StartIndex

	route, err := h.Planner.Optimize(r.Context(), req.Points(), opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoute(route))
}

// CourierRoute plans the courier's active loads, optionally from a current position.
func (h *RouteHandler) CourierRoute(w http.ResponseWriter, r *http.Request) {
	var req dto.CourierRouteRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	var start *domain.Coordinates
	if req.Start != nil {
		c := req.Start.Domain()
		start = &c
	}

	plan, err := h.Planner.PlanCourierRoute(r.Context(), services.PlanCourierRouteRequest{
		CourierID: pathID(r),
		Start:     start,
		Options:   routeOptions(req.RouteOptionsRequest),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.CourierRouteResponse{
		CourierID: plan.CourierID,
		Route:     dto.FromRoute(plan.Route),
		Skipped:   make([]dto.SkippedLoadResponse, 0, len(plan.Skipped)),
	}
	for _, s := range plan.Skipped {
		res.Skipped = append(res.Skipped, dto.SkippedLoadResponse{LoadID: s.LoadID, Reason: s.Reason})
	}
	writeJSON(w, r, http.StatusOK, res)
}

func routeOptions(o dto.RouteOptionsRequest) services.RouteOptions {
	return services.RouteOptions{
		StartTime:      o.StartTime,
		AvgSpeedMph:    o.AvgSpeedMph,
		MinutesPerStop: o.MinutesPerStop,
		ReturnToStart:  o.ReturnToStart,
	}
}
