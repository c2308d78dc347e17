package dto

import "dispatch-coordination-service/internal/domain"

type RoutePointRequest struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	DwellMinutes *float64 `json:"dwell_minutes"`
}

type RouteOptionsRequest struct {
	StartTime      string   `json:"start_time"`
	AvgSpeedMph    *float64 `json:"avg_speed_mph"`
	MinutesPerStop *float64 `json:"minutes_per_stop"`
	ReturnToStart  bool     `json:"return_to_start"`
}

type OptimizeRouteRequest struct {
	RouteOptionsRequest
	Stops      []RoutePointRequest `json:"stops"`
	StartIndex int                 `json:"start_index"`
}

type CourierRouteRequest struct {
	RouteOptionsRequest
	Start *Coordinates `json:"start"`
}

type RouteStopResponse struct {
	Order              int     `json:"order"`
	ID                 string  `json:"id"`
	Label              string  `json:"label,omitempty"`
	Lat                float64 `json:"lat"`
	Lon                float64 `json:"lon"`
	DistanceFromPrev   float64 `json:"distance_from_prev_miles"`
	CumulativeDistance float64 `json:"cumulative_distance_miles"`
	ETA                string  `json:"eta"`
}

type RouteResponse struct {
	Stops                 []RouteStopResponse `json:"stops"`
	TotalDistanceMiles    float64             `json:"total_distance_miles"`
	TotalDurationMinutes  float64             `json:"total_duration_minutes"`
	BaselineDistanceMiles float64             `json:"baseline_distance_miles"`
	SavingsVsOriginal     float64             `json:"savings_vs_original_miles"`
}

type SkippedLoadResponse struct {
	LoadID string `json:"load_id"`
	Reason string `json:"reason"`
}

type CourierRouteResponse struct {
	CourierID string                `json:"courier_id"`
	Route     RouteResponse         `json:"route"`
	Skipped   []SkippedLoadResponse `json:"skipped"`
}

func FromRoute(route *domain.OptimizedRoute) RouteResponse {
	stops := make([]RouteStopResponse, 0, len(route.Stops))
	for _, s := range route.Stops {
		stops = append(stops, RouteStopResponse{
			Order:              s.Order,
			ID:                 s.Point.ID,
			Label:              s.Point.Label,
			Lat:                s.Point.Coordinates.Lat,
			Lon:                s.Point.Coordinates.Lon,
			DistanceFromPrev:   s.DistanceFromPrev,
			CumulativeDistance: s.CumulativeDistance,
			ETA:                s.ETA,
		})
	}
	return RouteResponse{
		Stops:                 stops,
		TotalDistanceMiles:    route.TotalDistanceMiles,
		TotalDurationMinutes:  route.TotalDurationMinutes,
		BaselineDistanceMiles: route.BaselineDistanceMiles,
		SavingsVsOriginal:     route.SavingsVsOriginal,
	}
}

// Points converts request stops into optimizer input.
func (r OptimizeRouteRequest) Points() []domain.RoutePoint {
	points := make([]domain.RoutePoint, 0, len(r.Stops))
	for _, s := range r.Stops {
		points = append(points, domain.RoutePoint{
			ID:           s.ID,
			Label:        s.Label,
			Coordinates:  domain.Coordinates{Lat: s.Lat, Lon: s.Lon},
			DwellMinutes: s.DwellMinutes,
		})
	}
	return points
}
