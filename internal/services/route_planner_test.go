package services

import (
	"context"
	"dispatch-coordination-service/internal/adapters/geocode"
	"dispatch-coordination-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plannerDefaults = RouteOptions{
	StartTime:      DefaultStartTime,
	AvgSpeedMph:    float(DefaultAvgSpeedMph),
	MinutesPerStop: float(DefaultMinutesPerStop),
}

func assignLoad(t *testing.T, loads *LoadService, req CreateLoadRequest, courierID string) {
	t.Helper()
	ctx := context.Background()
	_, err := loads.CreateLoad(ctx, req)
	require.NoError(t, err)
	_, err = loads.UpdateStatus(ctx, req.ID, domain.StatusAssigned, courierID)
	require.NoError(t, err)
}

func TestPlanCourierRouteGeocodesAndSkips(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	loads := NewLoadService(store, newTestClock(baseTime))

	assignLoad(t, loads, CreateLoadRequest{ID: "L1", DeliveryAddress: "10 Oak  Ave"}, "c1")
	assignLoad(t, loads, CreateLoadRequest{ID: "L2", Delivery: domain.Coordinates{Lat: 33.50, Lon: -112.00}}, "c1")
	assignLoad(t, loads, CreateLoadRequest{ID: "L3", DeliveryAddress: "nowhere"}, "c1")
	assignLoad(t, loads, CreateLoadRequest{ID: "L4"}, "c1")
	assignLoad(t, loads, CreateLoadRequest{ID: "L5", Delivery: domain.Coordinates{Lat: 40, Lon: -100}}, "c2")

	gc := geocode.NewStaticGeocoder(map[string]domain.Coordinates{
		"10 Oak Ave": {Lat: 33.45, Lon: -112.07},
	})
	planner := NewRoutePlanner(store, gc, 0, nil, plannerDefaults)

	plan, err := planner.PlanCourierRoute(ctx, PlanCourierRouteRequest{CourierID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, []SkippedLoad{
		{LoadID: "L3", Reason: "address not found"},
		{LoadID: "L4", Reason: "no delivery location"},
	}, plan.Skipped)

	require.Len(t, plan.Route.Stops, 2)
	ids := []string{plan.Route.Stops[0].Point.ID, plan.Route.Stops[1].Point.ID}
	assert.Equal(t, []string{"L1", "L2"}, ids)
	assert.Equal(t, "08:00", plan.Route.Stops[0].ETA)

	stored, err := loads.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.InDelta(t, 33.45, stored.Delivery.Lat, 1e-9)
	assert.InDelta(t, -112.07, stored.Delivery.Lon, 1e-9)
}

func TestPlanCourierRouteFromCurrentPosition(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	loads := NewLoadService(store, newTestClock(baseTime))

	assignLoad(t, loads, CreateLoadRequest{ID: "far", Delivery: domain.Coordinates{Lat: 34.0, Lon: -112.0}}, "c1")
	assignLoad(t, loads, CreateLoadRequest{ID: "near", Delivery: domain.Coordinates{Lat: 33.1, Lon: -112.0}}, "c1")

	planner := NewRoutePlanner(store, nil, 0, nil, plannerDefaults)
	plan, err := planner.PlanCourierRoute(ctx, PlanCourierRouteRequest{
		CourierID: "c1",
		Start:     &domain.Coordinates{Lat: 33.0, Lon: -112.0},
		Options:   RouteOptions{StartIndex: 2, StartTime: "09:00"},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Skipped)

	require.Len(t, plan.Route.Stops, 3)
	assert.Equal(t, "start", plan.Route.Stops[0].Point.ID)
	assert.Equal(t, "near", plan.Route.Stops[1].Point.ID)
	assert.Equal(t, "far", plan.Route.Stops[2].Point.ID)
	assert.Equal(t, "09:00", plan.Route.Stops[0].ETA)
}

func TestPlanCourierRouteValidates(t *testing.T) {
	planner := NewRoutePlanner(newStore(t), nil, 0, nil, plannerDefaults)
	_, err := planner.PlanCourierRoute(context.Background(), PlanCourierRouteRequest{CourierID: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	plan, err := planner.PlanCourierRoute(context.Background(), PlanCourierRouteRequest{CourierID: "idle"})
	require.NoError(t, err)
	assert.Empty(t, plan.Route.Stops)
}
