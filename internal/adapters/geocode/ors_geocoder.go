package geocode

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openrouteservice.org"

var _ ports.Geocoder = (*ORSGeocoder)(nil)

// AddressCache stores resolved addresses between runs.
type AddressCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

// ORSGeocoder resolves addresses with OpenRouteService (/geocode/search).
// Hits are served from the cache; misses are fetched and written back.
// The geocoder is safe for concurrent use.
type ORSGeocoder struct {
	client  *http.Client
	apiKey  string
	baseURL string
	backoff time.Duration
	cache   AddressCache
}

type Option func(*ORSGeocoder)

// WithBaseURL points the geocoder at another ORS-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(g *ORSGeocoder) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithBackoff sets the initial retry delay.
func WithBackoff(d time.Duration) Option {
	return func(g *ORSGeocoder) { g.backoff = d }
}

func NewORSGeocoder(apiKey string, cache AddressCache, opts ...Option) (*ORSGeocoder, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	g := &ORSGeocoder{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		backoff: 200 * time.Millisecond,
		cache:   cache,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Normalize collapses whitespace so equivalent addresses share a cache key.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode returns nil, nil when the service has no match for the address.
func (g *ORSGeocoder) Geocode(ctx context.Context, address string) (_ *domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	norm := Normalize(address)
	if norm == "" {
		return nil, domain.Validation("address must be non-empty")
	}

	if g.cache != nil {
		hits, err := g.cache.GetMany(ctx, []string{norm})
		if err != nil {
			obs.Logger(ctx).Warn().Err(err).Str("address", norm).Msg("geocode cache read failed")
		} else if c, ok := hits[norm]; ok {
			return &c, nil
		}
	}

	endpoint := g.baseURL + "/geocode/search"
	resp, err := doWithRetry(ctx, g.client, g.backoff, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", g.apiKey)
		req.Header.Set("Accept", "application/json")

		q := req.URL.Query()
		q.Set("text", norm)
		q.Set("boundary.country", "US")
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return nil, domain.Upstream("geocoder", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.Upstream("geocoder", fmt.Errorf("decode geocode response: %w", err))
	}

	if len(decoded.Features) == 0 {
		return nil, nil
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return nil, domain.Upstream("geocoder", fmt.Errorf("invalid coordinate format for %q", norm))
	}

	out := domain.Coordinates{Lon: coords[0], Lat: coords[1]}

	if g.cache != nil {
		if err := g.cache.PutMany(ctx, map[string]domain.Coordinates{norm: out}); err != nil {
			obs.Logger(ctx).Warn().Err(err).Str("address", norm).Msg("geocode cache write failed")
		}
	}

	return &out, nil
}
