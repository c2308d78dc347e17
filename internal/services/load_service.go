package services

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"strings"

	"github.com/google/uuid"
)

type CreateLoadRequest struct {
	ID              string
	PickupAddress   string
	DeliveryAddress string
	Pickup          domain.Coordinates
	Delivery        domain.Coordinates
	RevenueCents    int64
	PackageCount    int
}

// LoadService is the manual editing path for loads. Status changes go through the
// state machine and are written as a compare-and-swap on the prior status.
type LoadService struct {
	repo  ports.LoadRepository
	clock ports.Clock
}

func NewLoadService(repo ports.LoadRepository, clock ports.Clock) *LoadService {
	return &LoadService{repo: repo, clock: clock}
}

func (s *LoadService) CreateLoad(ctx context.Context, req CreateLoadRequest) (*domain.Load, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if req.RevenueCents < 0 {
		return nil, domain.Validation("revenue must not be negative")
	}

	now := s.clock.Now()
	load := &domain.Load{
		ID:              id,
		Status:          domain.StatusPending,
		PickupAddress:   strings.TrimSpace(req.PickupAddress),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Pickup:          req.Pickup,
		Delivery:        req.Delivery,
		RevenueCents:    req.RevenueCents,
		PackageCount:    req.PackageCount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateLoad(ctx, load); err != nil {
		return nil, err
	}
	return load, nil
}

func (s *LoadService) GetLoad(ctx context.Context, id string) (*domain.Load, error) {
	return s.repo.GetLoad(ctx, id)
}

// UpdateStatus moves a load to status to. Assigning requires courierID; an empty
// courierID otherwise keeps the current courier where the new status allows one.
func (s *LoadService) UpdateStatus(
	ctx context.Context,
	id string,
	to domain.LoadStatus,
	courierID string,
) (_ *domain.Load, err error) {
	defer obs.Time(ctx, "loads.UpdateStatus")(&err)

	if !to.Valid() {
		return nil, domain.Validation("unknown status %q", to)
	}

	load, err := s.repo.GetLoad(ctx, id)
	if err != nil {
		return nil, err
	}

	from := load.Status
	if err := load.Transition(to, strings.TrimSpace(courierID), s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLoadStatus(ctx, id, from, load.Status, load.CourierID, load.UpdatedAt); err != nil {
		return nil, err
	}
	return load, nil
}
