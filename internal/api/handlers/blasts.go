package handlers

import (
	"dispatch-coordination-service/internal/api/dto"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/ports"
	"dispatch-coordination-service/internal/services"
	"net/http"
	"strings"
	"time"
)

// BlastHandler exposes the broadcast offer lifecycle to operators and couriers.
type BlastHandler struct {
	Blasts *services.BlastService
	Clock  ports.Clock
}

func (h *BlastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBlastRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, r, http.StatusBadRequest, "ttl_seconds must not be negative")
		return
	}

	detail, err := h.Blasts.CreateBlast(r.Context(), services.CreateBlastRequest{
		LoadID:      req.LoadID,
		CreatedBy:   req.CreatedBy,
		CourierIDs:  req.CourierIDs,
		Priority:    domain.BlastPriority(req.Priority),
		RadiusMiles: req.RadiusMiles,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.FromBlastDetail(detail))
}

func (h *BlastHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Blasts.GetBlast(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromBlastDetail(detail))
}

func (h *BlastHandler) View(w http.ResponseWriter, r *http.Request) {
	req, ok := h.courierAction(w, r)
	if !ok {
		return
	}
	h.writeResponse(w, r)(h.Blasts.MarkViewed(r.Context(), pathID(r), req.CourierID))
}

func (h *BlastHandler) Interest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.courierAction(w, r)
	if !ok {
		return
	}

	var loc *domain.Coordinates
	if req.Location != nil {
		c := req.Location.Domain()
		loc = &c
	}
	h.writeResponse(w, r)(h.Blasts.ExpressInterest(r.Context(), pathID(r), req.CourierID, loc))
}

func (h *BlastHandler) Decline(w http.ResponseWriter, r *http.Request) {
	req, ok := h.courierAction(w, r)
	if !ok {
		return
	}
	h.writeResponse(w, r)(h.Blasts.DeclineBlast(r.Context(), pathID(r), req.CourierID, req.Reason))
}

func (h *BlastHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := h.courierAction(w, r)
	if !ok {
		return
	}

	out, err := h.Blasts.ConfirmAssignment(r.Context(), pathID(r), req.CourierID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ConfirmResponse{
		Blast:            dto.FromBlast(out.Blast),
		Load:             dto.FromLoad(out.Load),
		ExpiredResponses: out.ExpiredResponses,
	})
}

func (h *BlastHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	blast, err := h.Blasts.CancelBlast(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromBlast(blast))
}

// Analytics aggregates blasts since the "since" query parameter (RFC 3339),
// defaulting to the start of the current day.
func (h *BlastHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	since := domain.StartOfDay(h.Clock.Now())
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	stats, err := h.Blasts.Analytics(r.Context(), since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.AnalyticsResponse{
		Since:              since,
		TotalBlasts:        stats.TotalBlasts,
		ActiveBlasts:       stats.ActiveBlasts,
		AcceptedBlasts:     stats.AcceptedBlasts,
		AssignmentRate:     stats.AssignmentRate,
		AvgResponseSeconds: stats.AvgResponseSeconds,
		TotalNotified:      stats.TotalNotified,
	})
}

func (h *BlastHandler) courierAction(w http.ResponseWriter, r *http.Request) (dto.CourierActionRequest, bool) {
	var req dto.CourierActionRequest
	if !decodeJSON(w, r, &req, false) {
		return req, false
	}
	req.CourierID = strings.TrimSpace(req.CourierID)
	if req.CourierID == "" {
		writeError(w, r, http.StatusBadRequest, "courier_id is required")
		return req, false
	}
	return req, true
}

func (h *BlastHandler) writeResponse(w http.ResponseWriter, r *http.Request) func(*domain.Response, error) {
	return func(resp *domain.Response, err error) {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, dto.FromResponse(resp))
	}
}
