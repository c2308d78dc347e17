package services

import (
	"context"
	"dispatch-coordination-service/internal/adapters/repositories"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/db"
	"dispatch-coordination-service/internal/ports"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockPush struct {
	mock.Mock
}

func (m *mockPush) Send(ctx context.Context, msg ports.PushMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func newStore(t *testing.T) *repositories.SQLStore {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, repositories.InitSchema(conn))
	return repositories.NewSQLStore(conn, db.DriverSQLite)
}

func createLoad(t *testing.T, loads *LoadService, id string) *domain.Load {
	t.Helper()
	load, err := loads.CreateLoad(context.Background(), CreateLoadRequest{
		ID:              id,
		PickupAddress:   "100 Dock St",
		DeliveryAddress: "200 Main St",
		PackageCount:    2,
	})
	require.NoError(t, err)
	return load
}
