package geocode

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu sync.Mutex
	m  map[string]domain.Coordinates
}

func (c *memCache) GetMany(_ context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]domain.Coordinates{}
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memCache) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range results {
		c.m[k] = v
	}
	return nil
}

func TestORSGeocoderResolvesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "1 Main St Phoenix", r.URL.Query().Get("text"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-112.07,33.45]}}]}`))
	}))
	defer srv.Close()

	cache := &memCache{m: map[string]domain.Coordinates{}}
	g, err := NewORSGeocoder("secret", cache, WithBaseURL(srv.URL))
	require.NoError(t, err)

	c, err := g.Geocode(context.Background(), "  1 Main St   Phoenix ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.Coordinates{Lon: -112.07, Lat: 33.45}, *c)

	_, err = g.Geocode(context.Background(), "1 Main St Phoenix")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestORSGeocoderNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	g, err := NewORSGeocoder("secret", nil, WithBaseURL(srv.URL))
	require.NoError(t, err)

	c, err := g.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestORSGeocoderRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewORSGeocoder("secret", nil, WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "1 Main St")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, int32(4), calls.Load())
}

func TestORSGeocoderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g, err := NewORSGeocoder("secret", nil, WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "1 Main St")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewORSGeocoderRequiresKey(t *testing.T) {
	_, err := NewORSGeocoder("", nil)
	assert.Error(t, err)
}

func TestStaticGeocoder(t *testing.T) {
	g := NewStaticGeocoder(map[string]domain.Coordinates{"1  Main St": {Lat: 1, Lon: 2}})

	c, err := g.Geocode(context.Background(), "1 Main St")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 1.0, c.Lat)

	c, err = g.Geocode(context.Background(), "2 Main St")
	require.NoError(t, err)
	assert.Nil(t, c)
}
