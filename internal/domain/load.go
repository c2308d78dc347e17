package domain

import (
	"strings"
	"time"
)

// Load is a single delivery job.
// Status only changes through the state machine; a load is never hard-deleted,
// cancellation is a status.
type Load struct {
	ID              string
	Status          LoadStatus
	PickupAddress   string
	DeliveryAddress string
	Pickup          Coordinates
	Delivery        Coordinates
	CourierID       string
	RevenueCents    int64
	PackageCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the load's stored invariants.
func (l *Load) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return Validation("load id must not be empty")
	}
	if !l.Status.Valid() {
		return Validation("load %s: unknown status %q", l.ID, l.Status)
	}
	if l.CourierID != "" && !l.Status.AllowsCourier() {
		return Validation("load %s: status %q cannot carry courier %q", l.ID, l.Status, l.CourierID)
	}
	if l.PackageCount < 0 {
		return Validation("load %s: package count must not be negative", l.ID)
	}
	return nil
}

// Transition validates a move to the next status and applies it to the in-memory load.
// Moving back to an unassigned status drops the courier.
func (l *Load) Transition(to LoadStatus, courierID string, at time.Time) error {
	if err := CheckTransition(l.Status, to); err != nil {
		return err
	}

	switch {
	case to == StatusAssigned && courierID == "":
		return Validation("load %s: assigning requires a courier", l.ID)
	case !to.AllowsCourier():
		courierID = ""
	case courierID == "":
		courierID = l.CourierID
	}

	l.Status = to
	l.CourierID = courierID
	l.UpdatedAt = at
	return nil
}
