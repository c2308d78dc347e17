package handlers

import (
	"dispatch-coordination-service/internal/api/dto"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/services"
	"net/http"
)

type AlertHandler struct {
	Alerts *services.AlertService
}

func (h *AlertHandler) Raise(w http.ResponseWriter, r *http.Request) {
	var req dto.RaiseAlertRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	a, err := h.Alerts.RaiseAlert(r.Context(), services.RaiseAlertRequest{
		LoadID:    req.LoadID,
		CourierID: req.CourierID,
		Type:      domain.AlertType(req.Type),
		Severity:  domain.Severity(req.Severity),
		Title:     req.Title,
		Message:   req.Message,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Same derivation as List, taken at the moment of creation.
	writeJSON(w, r, http.StatusCreated, alertResponse(services.EnrichAlerts([]*domain.Alert{a}, a.CreatedAt)[0]))
}

// List returns today's alerts with their derived severity and age.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Alerts.ListToday(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res := dto.ListAlertsResponse{Alerts: make([]dto.AlertResponse, 0, len(alerts))}
	for _, a := range alerts {
		res.Alerts = append(res.Alerts, alertResponse(a))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerts.Acknowledge(r.Context(), pathID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerts.Resolve(r.Context(), pathID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dismiss acknowledges the alerts the operator was looking at. Alerts raised
// after the view was loaded are not in ids and stay active.
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	var req dto.DismissAlertsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	n, err := h.Alerts.DismissAll(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.DismissAlertsResponse{Acknowledged: n})
}

func alertResponse(a services.EvaluatedAlert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:                a.ID,
		LoadID:            a.LoadID,
		CourierID:         a.CourierID,
		Type:              string(a.Type),
		Severity:          string(a.Severity),
		EscalatedSeverity: string(a.EscalatedSeverity),
		AgeMinutes:        a.AgeMinutes,
		Title:             a.Title,
		Message:           a.Message,
		Status:            string(a.Status),
		CreatedAt:         a.CreatedAt,
		AcknowledgedAt:    a.AcknowledgedAt,
		ResolvedAt:        a.ResolvedAt,
	}
}
