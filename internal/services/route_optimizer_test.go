package services

import (
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/geo"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(id string, lat, lon float64) domain.RoutePoint {
	return domain.RoutePoint{ID: id, Label: id, Coordinates: domain.Coordinates{Lat: lat, Lon: lon}}
}

func float(v float64) *float64 { return &v }

func squarePoints() []domain.RoutePoint {
	return []domain.RoutePoint{pt("a", 0, 0), pt("b", 0, 1), pt("c", 1, 1), pt("d", 1, 0)}
}

func stopIDs(r *domain.OptimizedRoute) []string {
	ids := make([]string, 0, len(r.Stops))
	for _, s := range r.Stops {
		ids = append(ids, s.Point.ID)
	}
	return ids
}

func TestOptimizeRouteDegenerateInputs(t *testing.T) {
	empty, err := OptimizeRoute(nil, RouteOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Stops)
	assert.Zero(t, empty.TotalDistanceMiles)

	single, err := OptimizeRoute([]domain.RoutePoint{pt("only", 33.45, -112.07)}, RouteOptions{})
	require.NoError(t, err)
	require.Len(t, single.Stops, 1)
	assert.Zero(t, single.TotalDistanceMiles)
	assert.Equal(t, "08:00", single.Stops[0].ETA)
	assert.Equal(t, 1, single.Stops[0].Order)
}

func TestOptimizeRouteSquare(t *testing.T) {
	route, err := OptimizeRoute(squarePoints(), RouteOptions{AvgSpeedMph: float(60)})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, stopIDs(route))
	assert.Equal(t, "a", route.Stops[0].Point.ID)
	// Three sides of the one-degree square.
	assert.InDelta(t, 207.28, route.TotalDistanceMiles, 0.05)
	assert.InDelta(t, route.TotalDistanceMiles, route.Stops[3].CumulativeDistance, 1e-9)

	closed, err := OptimizeRoute(squarePoints(), RouteOptions{AvgSpeedMph: float(60), ReturnToStart: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, stopIDs(closed))
	// Full perimeter.
	assert.InDelta(t, 276.38, closed.TotalDistanceMiles, 0.05)
}

func TestOptimizeRouteIsDeterministic(t *testing.T) {
	points := randomPoints(rand.New(rand.NewSource(42)), 25)

	first, err := OptimizeRoute(points, RouteOptions{StartIndex: 3})
	require.NoError(t, err)
	second, err := OptimizeRoute(points, RouteOptions{StartIndex: 3})
	require.NoError(t, err)

	assert.Equal(t, stopIDs(first), stopIDs(second))
	assert.Equal(t, first.TotalDistanceMiles, second.TotalDistanceMiles)
	assert.Equal(t, first.TotalDurationMinutes, second.TotalDurationMinutes)
	assert.Equal(t, "p3", first.Stops[0].Point.ID)
}

func TestTwoOptNeverWorsensNearestNeighbor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		points := randomPoints(rng, 5+trial)
		coords := make([]domain.Coordinates, len(points))
		for i, p := range points {
			coords[i] = p.Coordinates
		}
		matrix := geo.DistanceMatrix(coords)

		for _, closed := range []bool{false, true} {
			order := NearestNeighborOrder(matrix, 0)
			nn := TourLength(matrix, order, closed)

			TwoOpt(matrix, order, closed)
			opt := TourLength(matrix, order, closed)

			assert.LessOrEqual(t, opt, nn, "trial %d closed=%v", trial, closed)
			assert.GreaterOrEqual(t, opt, 0.0)
			assert.Equal(t, 0, order[0])
			assert.ElementsMatch(t, identityOrder(len(points)), order)
		}
	}
}

func TestTwoOptUncrossesTour(t *testing.T) {
	coords := []domain.Coordinates{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}}
	matrix := geo.DistanceMatrix(coords)

	order := []int{0, 2, 1, 3}
	TwoOpt(matrix, order, false)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestNearestNeighborPrefersLowerIndexOnTie(t *testing.T) {
	coords := []domain.Coordinates{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: -1}}
	order := NearestNeighborOrder(geo.DistanceMatrix(coords), 0)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestOptimizeRouteETAs(t *testing.T) {
	a, b := pt("a", 33.0, -112.0), pt("b", 33.5, -112.0)
	leg := geo.HaversineMiles(a.Coordinates, b.Coordinates)

	// Speed equal to the leg length makes the drive exactly one hour.
	route, err := OptimizeRoute([]domain.RoutePoint{a, b}, RouteOptions{AvgSpeedMph: &leg})
	require.NoError(t, err)
	require.Len(t, route.Stops, 2)
	assert.Equal(t, "08:00", route.Stops[0].ETA)
	assert.Equal(t, "09:10", route.Stops[1].ETA)
	assert.InDelta(t, 80.0, route.TotalDurationMinutes, 1e-6)

	dwell := 25.0
	a.DwellMinutes = &dwell
	late, err := OptimizeRoute([]domain.RoutePoint{a, b}, RouteOptions{AvgSpeedMph: &leg, StartTime: "23:30"})
	require.NoError(t, err)
	assert.Equal(t, "23:30", late.Stops[0].ETA)
	assert.Equal(t, "00:55", late.Stops[1].ETA)
	assert.Equal(t, 55, late.Stops[1].ArriveMinute)
}

func TestOptimizeRouteZeroDwell(t *testing.T) {
	a, b := pt("a", 33.0, -112.0), pt("b", 33.5, -112.0)
	leg := geo.HaversineMiles(a.Coordinates, b.Coordinates)

	route, err := OptimizeRoute([]domain.RoutePoint{a, b}, RouteOptions{AvgSpeedMph: float(60), MinutesPerStop: float(0)})
	require.NoError(t, err)
	require.Len(t, route.Stops, 2)
	assert.Equal(t, "08:35", route.Stops[1].ETA)
	assert.InDelta(t, leg, route.TotalDurationMinutes, 1e-6)

	// Unset dwell still falls back to ten minutes per stop.
	dflt, err := OptimizeRoute([]domain.RoutePoint{a, b}, RouteOptions{AvgSpeedMph: float(60)})
	require.NoError(t, err)
	assert.Equal(t, "08:45", dflt.Stops[1].ETA)
}

func TestOptimizeRouteReportsSavings(t *testing.T) {
	// Input order zig-zags across the square's diagonals.
	points := []domain.RoutePoint{pt("a", 0, 0), pt("c", 1, 1), pt("b", 0, 1), pt("d", 1, 0)}

	route, err := OptimizeRoute(points, RouteOptions{})
	require.NoError(t, err)
	assert.Greater(t, route.SavingsVsOriginal, 0.0)
	assert.InDelta(t, route.BaselineDistanceMiles-route.TotalDistanceMiles, route.SavingsVsOriginal, 1e-9)

	inOrder, err := OptimizeRoute(squarePoints(), RouteOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, inOrder.SavingsVsOriginal, 1e-9)
}

func TestOptimizeRouteRejectsBadOptions(t *testing.T) {
	cases := []RouteOptions{
		{StartIndex: 4},
		{StartIndex: -1},
		{StartTime: "8am"},
		{StartTime: "25:00"},
		{AvgSpeedMph: float(-5)},
		{AvgSpeedMph: float(0)},
		{MinutesPerStop: float(-1)},
	}
	for i, opts := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := OptimizeRoute(squarePoints(), opts)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func randomPoints(rng *rand.Rand, n int) []domain.RoutePoint {
	points := make([]domain.RoutePoint, n)
	for i := range points {
		points[i] = pt(fmt.Sprintf("p%d", i), 33+rng.Float64(), -112+rng.Float64())
	}
	return points
}

func identityOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
