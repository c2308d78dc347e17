package geocode

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/ports"
)

var _ ports.Geocoder = (*StaticGeocoder)(nil)

// StaticGeocoder answers from a fixed address table. Used when no ORS key is
// configured and in tests.
type StaticGeocoder struct {
	m map[string]domain.Coordinates
}

func NewStaticGeocoder(entries map[string]domain.Coordinates) *StaticGeocoder {
	m := make(map[string]domain.Coordinates, len(entries))
	for addr, c := range entries {
		m[Normalize(addr)] = c
	}
	return &StaticGeocoder{m: m}
}

func (g *StaticGeocoder) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	c, ok := g.m[Normalize(address)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
