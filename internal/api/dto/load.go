package dto

import (
	"dispatch-coordination-service/internal/domain"
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c *Coordinates) Domain() domain.Coordinates {
	if c == nil {
		return domain.Coordinates{}
	}
	return domain.Coordinates{Lat: c.Lat, Lon: c.Lon}
}

func FromCoordinates(c domain.Coordinates) *Coordinates {
	if c.IsZero() {
		return nil
	}
	return &Coordinates{Lat: c.Lat, Lon: c.Lon}
}

type CreateLoadRequest struct {
	ID              string       `json:"id"`
	PickupAddress   string       `json:"pickup_address"`
	DeliveryAddress string       `json:"delivery_address"`
	Pickup          *Coordinates `json:"pickup"`
	Delivery        *Coordinates `json:"delivery"`
	RevenueCents    int64        `json:"revenue_cents"`
	PackageCount    int          `json:"package_count"`
}

type UpdateLoadStatusRequest struct {
	Status    string `json:"status"`
	CourierID string `json:"courier_id"`
}

type LoadResponse struct {
	ID              string       `json:"id"`
	Status          string       `json:"status"`
	PickupAddress   string       `json:"pickup_address,omitempty"`
	DeliveryAddress string       `json:"delivery_address,omitempty"`
	Pickup          *Coordinates `json:"pickup,omitempty"`
	Delivery        *Coordinates `json:"delivery,omitempty"`
	CourierID       string       `json:"courier_id,omitempty"`
	RevenueCents    int64        `json:"revenue_cents"`
	PackageCount    int          `json:"package_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func FromLoad(l *domain.Load) LoadResponse {
	return LoadResponse{
		ID:              l.ID,
		Status:          string(l.Status),
		PickupAddress:   l.PickupAddress,
		DeliveryAddress: l.DeliveryAddress,
		Pickup:          FromCoordinates(l.Pickup),
		Delivery:        FromCoordinates(l.Delivery),
		CourierID:       l.CourierID,
		RevenueCents:    l.RevenueCents,
		PackageCount:    l.PackageCount,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}
