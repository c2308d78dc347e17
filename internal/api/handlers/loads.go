package handlers

import (
	"dispatch-coordination-service/internal/api/dto"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/services"
	"net/http"
)

// LoadHandler exposes manual load editing.
type LoadHandler struct {
	Loads *services.LoadService
}

func (h *LoadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoadRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	load, err := h.Loads.CreateLoad(r.Context(), services.CreateLoadRequest{
		ID:              req.ID,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
		Pickup:          req.Pickup.Domain(),
		Delivery:        req.Delivery.Domain(),
		RevenueCents:    req.RevenueCents,
		PackageCount:    req.PackageCount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.FromLoad(load))
}

func (h *LoadHandler) Get(w http.ResponseWriter, r *http.Request) {
	load, err := h.Loads.GetLoad(r.Context(), pathID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromLoad(load))
}

func (h *LoadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateLoadStatusRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	load, err := h.Loads.UpdateStatus(r.Context(), pathID(r), domain.LoadStatus(req.Status), req.CourierID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromLoad(load))
}
