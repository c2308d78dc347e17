package services

import (
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/geo"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultAvgSpeedMph    = 30.0
	DefaultMinutesPerStop = 10.0
	DefaultStartTime      = "08:00"

	// A reversal must shorten the tour by more than this many miles.
	twoOptEpsilon = 0.01
	// Runaway guard on 2-opt passes.
	twoOptMaxPasses = 1000

	minutesPerDay = 24 * 60
)

// RouteOptions tunes OptimizeRoute. An empty StartTime and nil speed or dwell
// fall back to the defaults; an explicit zero dwell means no time at stops.
type RouteOptions struct {
	StartIndex     int
	StartTime      string
	AvgSpeedMph    *float64
	MinutesPerStop *float64
	// ReturnToStart closes the tour with a leg back to the first stop.
	ReturnToStart bool
}

func (o RouteOptions) withDefaults() RouteOptions {
	if strings.TrimSpace(o.StartTime) == "" {
		o.StartTime = DefaultStartTime
	}
	if o.AvgSpeedMph == nil {
		v := DefaultAvgSpeedMph
		o.AvgSpeedMph = &v
	}
	if o.MinutesPerStop == nil {
		v := DefaultMinutesPerStop
		o.MinutesPerStop = &v
	}
	return o
}

// OptimizeRoute orders stops to minimize Haversine travel distance.
//
// The tour is built greedily with nearest-neighbor from the start index and then
// improved with 2-opt. The start stop never moves. The result is deterministic for
// a given input; ties go to the lower input index. The route is an open path
// unless ReturnToStart is set, so the closing leg only counts for a closed tour.
func OptimizeRoute(points []domain.RoutePoint, opts RouteOptions) (*domain.OptimizedRoute, error) {
	opts = opts.withDefaults()

	startMinute, err := parseClock(opts.StartTime)
	if err != nil {
		return nil, err
	}
	speed, dwell := *opts.AvgSpeedMph, *opts.MinutesPerStop
	if !(speed > 0) || math.IsInf(speed, 1) {
		return nil, domain.Validation("average speed must be positive, got %v", speed)
	}
	if !(dwell >= 0) || math.IsInf(dwell, 1) {
		return nil, domain.Validation("minutes per stop must not be negative, got %v", dwell)
	}

	n := len(points)
	if n == 0 {
		return &domain.OptimizedRoute{Stops: []domain.RouteStop{}}, nil
	}
	if opts.StartIndex < 0 || opts.StartIndex >= n {
		return nil, domain.Validation("start index %d out of range for %d stops", opts.StartIndex, n)
	}
	for i, p := range points {
		if p.DwellMinutes != nil && *p.DwellMinutes < 0 {
			return nil, domain.Validation("stop %d: dwell minutes must not be negative", i)
		}
	}

	coords := make([]domain.Coordinates, n)
	for i, p := range points {
		coords[i] = p.Coordinates
	}
	matrix := geo.DistanceMatrix(coords)

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	baseline := TourLength(matrix, identity, opts.ReturnToStart)

	order := NearestNeighborOrder(matrix, opts.StartIndex)
	TwoOpt(matrix, order, opts.ReturnToStart)

	route := walkRoute(points, matrix, order, startMinute, speed, dwell, opts.ReturnToStart)
	route.BaselineDistanceMiles = baseline
	route.SavingsVsOriginal = baseline - route.TotalDistanceMiles

	return route, nil
}

// NearestNeighborOrder builds a tour by repeatedly moving to the closest unvisited stop.
func NearestNeighborOrder(matrix [][]float64, start int) []int {
	n := len(matrix)
	visited := make([]bool, n)
	order := make([]int, 0, n)

	current := start
	visited[current] = true
	order = append(order, current)

	for len(order) < n {
		best := -1
		bestDist := math.Inf(1)
		// Strict comparison over ascending indexes keeps the lowest index on ties.
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			if matrix[current][j] < bestDist {
				bestDist = matrix[current][j]
				best = j
			}
		}
		visited[best] = true
		order = append(order, best)
		current = best
	}

	return order
}

// TwoOpt improves order in place by reversing segments while that shortens the tour.
// Position 0 is fixed. It returns the number of passes made.
func TwoOpt(matrix [][]float64, order []int, closed bool) int {
	n := len(order)
	passes := 0

	for passes < twoOptMaxPasses {
		passes++
		improved := false

		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				if reversalDelta(matrix, order, i, j, closed) < -twoOptEpsilon {
					reverse(order[i : j+1])
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return passes
}

// reversalDelta is the change in tour length from reversing order[i..j].
func reversalDelta(m [][]float64, order []int, i, j int, closed bool) float64 {
	a, b, c := order[i-1], order[i], order[j]

	switch {
	case j+1 < len(order):
		d := order[j+1]
		return m[a][c] + m[b][d] - m[a][b] - m[c][d]
	case closed:
		d := order[0]
		return m[a][c] + m[b][d] - m[a][b] - m[c][d]
	default:
		return m[a][c] - m[a][b]
	}
}

func reverse(s []int) {
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
}

// TourLength sums the legs of order, adding the closing leg when closed is set.
func TourLength(matrix [][]float64, order []int, closed bool) float64 {
	total := 0.0
	for k := 1; k < len(order); k++ {
		total += matrix[order[k-1]][order[k]]
	}
	if closed && len(order) > 1 {
		total += matrix[order[len(order)-1]][order[0]]
	}
	return total
}

// walkRoute simulates driving the final order, accumulating distance and arrival times.
func walkRoute(
	points []domain.RoutePoint,
	matrix [][]float64,
	order []int,
	startMinute float64,
	speed, dwell float64,
	closed bool,
) *domain.OptimizedRoute {
	stops := make([]domain.RouteStop, 0, len(order))
	clock := startMinute
	cumulative := 0.0

	for k, idx := range order {
		leg := 0.0
		if k > 0 {
			leg = matrix[order[k-1]][idx]
			clock += travelMinutes(leg, speed)
		}
		cumulative += leg

		arrive := wrapMinute(clock)
		stops = append(stops, domain.RouteStop{
			Order:              k + 1,
			Point:              points[idx],
			DistanceFromPrev:   leg,
			CumulativeDistance: cumulative,
			ETA:                formatClock(arrive),
			ArriveMinute:       arrive,
		})

		clock += dwellMinutes(points[idx], dwell)
	}

	total := cumulative
	if closed && len(order) > 1 {
		back := matrix[order[len(order)-1]][order[0]]
		total += back
		clock += travelMinutes(back, speed)
	}

	return &domain.OptimizedRoute{
		Stops:                stops,
		TotalDistanceMiles:   total,
		TotalDurationMinutes: clock - startMinute,
	}
}

func travelMinutes(miles, mph float64) float64 {
	if mph <= 0 {
		return 0
	}
	return miles / mph * 60
}

func dwellMinutes(p domain.RoutePoint, fallback float64) float64 {
	if p.DwellMinutes != nil {
		return *p.DwellMinutes
	}
	return fallback
}

func wrapMinute(m float64) int {
	v := int(math.Round(m)) % minutesPerDay
	if v < 0 {
		v += minutesPerDay
	}
	return v
}

func formatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(s string) (float64, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, domain.Validation("start time %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, domain.Validation("start time %q has an invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, domain.Validation("start time %q has an invalid minute", s)
	}
	return float64(h*60 + m), nil
}
