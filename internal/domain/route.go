package domain

// RoutePoint is one stop handed to the route optimizer.
// DwellMinutes overrides the optimizer's per-stop default when set.
type RoutePoint struct {
	ID           string
	Label        string
	Coordinates  Coordinates
	DwellMinutes *float64
}

// Represents a single stop in an optimized route.
// Distances are in miles; ETA is a wall-clock "HH:MM" that wraps at midnight.
type RouteStop struct {
	Order              int
	Point              RoutePoint
	DistanceFromPrev   float64
	CumulativeDistance float64
	ETA                string
	ArriveMinute       int
}

// OptimizedRoute is the output of the route optimizer.
// It is decision-support data and contains no side effects; callers decide
// whether to persist the order.
type OptimizedRoute struct {
	Stops                 []RouteStop
	TotalDistanceMiles    float64
	TotalDurationMinutes  float64
	BaselineDistanceMiles float64
	SavingsVsOriginal     float64
}
