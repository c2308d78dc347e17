package ports

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"time"
)

// Port: a boundary for reading and writing Load entities.
type LoadRepository interface {
	CreateLoad(ctx context.Context, load *domain.Load) error
	GetLoad(ctx context.Context, id string) (*domain.Load, error)
	// Apply a status change only if the load is still in status from.
	// Returns ErrIllegalTransition when the stored status moved underneath the caller.
	UpdateLoadStatus(ctx context.Context, id string, from, to domain.LoadStatus, courierID string, at time.Time) error
	// Retrieve the loads a courier is currently working.
	ListCourierLoads(ctx context.Context, courierID string, statuses []domain.LoadStatus) ([]*domain.Load, error)
	// Persist resolved coordinates back onto a load.
	SetLoadCoordinates(ctx context.Context, id string, pickup, delivery domain.Coordinates) error
}
