// Package geo holds great-circle distance math used by the route optimizer.
package geo

import (
	"dispatch-coordination-service/internal/domain"
	"math"
)

// EarthRadiusMiles is the mean radius of Earth in statute miles.
const EarthRadiusMiles = 3959.0

// HaversineMiles returns the great-circle distance between two points in miles.
func HaversineMiles(a, b domain.Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*sinLon*sinLon
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusMiles * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceMatrix builds the full symmetric matrix of pairwise distances in miles.
func DistanceMatrix(points []domain.Coordinates) [][]float64 {
	n := len(points)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := HaversineMiles(points[i], points[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
