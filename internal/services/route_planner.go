package services

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/metrics"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const geocodeConcurrency = 5

// SkippedLoad is a load left out of a plan because it has no usable location.
type SkippedLoad struct {
	LoadID string
	Reason string
}

type CourierRoute struct {
	CourierID string
	Route     *domain.OptimizedRoute
	Skipped   []SkippedLoad
}

type PlanCourierRouteRequest struct {
	CourierID string
	// Start, when set, is the courier's current position and becomes the fixed first stop.
	Start   *domain.Coordinates
	Options RouteOptions
}

// RoutePlanner orders a courier's active loads. Missing coordinates are resolved
// through the geocoder under a rate limit; loads that cannot be placed are skipped.
type RoutePlanner struct {
	loads    ports.LoadRepository
	geocoder ports.Geocoder
	limiter  *rate.Limiter
	metrics  *metrics.Collector
	defaults RouteOptions
}

// NewRoutePlanner builds a planner. A non-positive geocodeRate disables the limit.
func NewRoutePlanner(
	loads ports.LoadRepository,
	geocoder ports.Geocoder,
	geocodeRate float64,
	m *metrics.Collector,
	defaults RouteOptions,
) *RoutePlanner {
	limit := rate.Inf
	if geocodeRate > 0 {
		limit = rate.Limit(geocodeRate)
	}
	return &RoutePlanner{
		loads:    loads,
		geocoder: geocoder,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  m,
		defaults: defaults,
	}
}

// Optimize runs the optimizer on caller-supplied points, filling unset options
// from the planner's defaults.
func (p *RoutePlanner) Optimize(
	ctx context.Context,
	points []domain.RoutePoint,
	opts RouteOptions,
) (_ *domain.OptimizedRoute, err error) {
	defer obs.Time(ctx, "routes.Optimize")(&err)

	route, err := OptimizeRoute(points, p.merge(opts))
	if err != nil {
		return nil, err
	}
	if len(points) > 1 {
		p.metrics.RouteOptimized(route.SavingsVsOriginal)
	}
	return route, nil
}

func (p *RoutePlanner) PlanCourierRoute(
	ctx context.Context,
	req PlanCourierRouteRequest,
) (_ *CourierRoute, err error) {
	defer obs.Time(ctx, "routes.PlanCourierRoute")(&err)

	courierID := strings.TrimSpace(req.CourierID)
	if courierID == "" {
		return nil, domain.Validation("courier id must not be empty")
	}

	loads, err := p.loads.ListCourierLoads(ctx, courierID, domain.ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("plan courier route: list loads: %w", err)
	}

	skipped, err := p.resolveLocations(ctx, loads)
	if err != nil {
		return nil, fmt.Errorf("plan courier route: %w", err)
	}

	skippedIDs := make(map[string]struct{}, len(skipped))
	for _, s := range skipped {
		skippedIDs[s.LoadID] = struct{}{}
	}

	points := make([]domain.RoutePoint, 0, len(loads)+1)
	opts := req.Options
	if req.Start != nil {
		zero := 0.0
		points = append(points, domain.RoutePoint{
			ID:           "start",
			Label:        "Current position",
			Coordinates:  *req.Start,
			DwellMinutes: &zero,
		})
		opts.StartIndex = 0
	}
	for _, l := range loads {
		if _, ok := skippedIDs[l.ID]; ok {
			continue
		}
		points = append(points, domain.RoutePoint{
			ID:          l.ID,
			Label:       l.DeliveryAddress,
			Coordinates: l.Delivery,
		})
	}

	route, err := p.Optimize(ctx, points, opts)
	if err != nil {
		return nil, fmt.Errorf("plan courier route: %w", err)
	}

	return &CourierRoute{CourierID: courierID, Route: route, Skipped: skipped}, nil
}

// resolveLocations geocodes loads without delivery coordinates, writing results
// back onto the load. Geocoding runs on a small bounded pool under the limiter.
func (p *RoutePlanner) resolveLocations(ctx context.Context, loads []*domain.Load) ([]SkippedLoad, error) {
	log := obs.Logger(ctx)

	var (
		mu      sync.Mutex
		skipped []SkippedLoad
		wg      sync.WaitGroup
	)
	skip := func(id, reason string) {
		mu.Lock()
		skipped = append(skipped, SkippedLoad{LoadID: id, Reason: reason})
		mu.Unlock()
	}

	sem := make(chan struct{}, geocodeConcurrency)

	for _, l := range loads {
		if !l.Delivery.IsZero() {
			continue
		}
		if strings.TrimSpace(l.DeliveryAddress) == "" || p.geocoder == nil {
			skip(l.ID, "no delivery location")
			continue
		}

		wg.Add(1)
		go func(load *domain.Load) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			if err := p.limiter.Wait(ctx); err != nil {
				skip(load.ID, "geocode cancelled")
				return
			}

			c, err := p.geocoder.Geocode(ctx, load.DeliveryAddress)
			switch {
			case err != nil:
				log.Warn().Err(err).Str("load_id", load.ID).Msg("geocode failed")
				skip(load.ID, "geocode failed")
				return
			case c == nil:
				skip(load.ID, "address not found")
				return
			}

			load.Delivery = *c
			if err := p.loads.SetLoadCoordinates(ctx, load.ID, load.Pickup, load.Delivery); err != nil {
				log.Warn().Err(err).Str("load_id", load.ID).Msg("store geocoded location failed")
			}
		}(l)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Keep the report in load order regardless of goroutine scheduling.
	order := make(map[string]int, len(loads))
	for i, l := range loads {
		order[l.ID] = i
	}
	slices.SortFunc(skipped, func(a, b SkippedLoad) int { return order[a.LoadID] - order[b.LoadID] })

	if len(skipped) == len(loads) && len(loads) > 0 {
		log.Warn().Int("loads", len(loads)).Msg("no load could be placed on the route")
	}
	return skipped, nil
}

func (p *RoutePlanner) merge(opts RouteOptions) RouteOptions {
	if opts.StartTime == "" {
		opts.StartTime = p.defaults.StartTime
	}
	if opts.AvgSpeedMph == nil {
		opts.AvgSpeedMph = p.defaults.AvgSpeedMph
	}
	if opts.MinutesPerStop == nil {
		opts.MinutesPerStop = p.defaults.MinutesPerStop
	}
	return opts
}
