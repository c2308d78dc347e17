package repositories

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/db"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, InitSchema(conn))
	return NewSQLStore(conn, db.DriverSQLite)
}

func seedLoad(t *testing.T, s *SQLStore, id string) {
	t.Helper()
	require.NoError(t, s.CreateLoad(context.Background(), &domain.Load{
		ID:              id,
		Status:          domain.StatusPending,
		PickupAddress:   "100 Dock St",
		DeliveryAddress: "200 Main St",
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}))
}

func seedBlast(t *testing.T, s *SQLStore, id, loadID string, couriers ...string) {
	t.Helper()
	seedLoad(t, s, loadID)
	_, err := s.CreateBlast(context.Background(), &domain.Blast{
		ID:            id,
		LoadID:        loadID,
		CreatedBy:     "dispatcher-1",
		Priority:      domain.PriorityNormal,
		RadiusMiles:   25,
		Status:        domain.BlastActive,
		ExpiresAt:     t0.Add(domain.DefaultBlastTTL),
		NotifiedCount: len(couriers),
		CreatedAt:     t0,
	}, couriers)
	require.NoError(t, err)
}

func TestCreateBlastMovesLoadToBlasted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1", "c2", "c3")

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BlastActive, detail.Blast.Status)
	assert.Equal(t, 3, detail.Blast.NotifiedCount)
	require.Len(t, detail.Responses, 3)
	for _, r := range detail.Responses {
		assert.Equal(t, domain.ResponsePending, r.Status)
	}

	load, err := s.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlasted, load.Status)
}

func TestCreateBlastRejectsLoadInFlight(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLoad(t, s, "L1")
	require.NoError(t, s.UpdateLoadStatus(ctx, "L1", domain.StatusPending, domain.StatusAssigned, "c9", t0))

	_, err := s.CreateBlast(ctx, &domain.Blast{
		ID: "b1", LoadID: "L1", Priority: domain.PriorityNormal, Status: domain.BlastActive,
		ExpiresAt: t0.Add(time.Hour), CreatedAt: t0,
	}, []string{"c1"})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = s.GetBlast(ctx, "b1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmAssignmentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	couriers := make([]string, 10)
	for i := range couriers {
		couriers[i] = fmt.Sprintf("c%d", i)
	}
	seedBlast(t, s, "b1", "L1", couriers...)
	for _, c := range couriers {
		_, err := s.ExpressInterest(ctx, "b1", c, nil, t0.Add(time.Minute))
		require.NoError(t, err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		assigned int
		other    []error
	)
	for _, c := range couriers {
		wg.Add(1)
		go func(courierID string) {
			defer wg.Done()
			_, err := s.ConfirmAssignment(ctx, "b1", courierID, t0.Add(2*time.Minute))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, courierID)
			case errors.Is(err, domain.ErrAlreadyAssigned):
				assigned++
			default:
				other = append(other, err)
			}
		}(c)
	}
	wg.Wait()

	require.Empty(t, other)
	require.Len(t, winners, 1)
	assert.Equal(t, 9, assigned)

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BlastAccepted, detail.Blast.Status)
	assert.Equal(t, winners[0], detail.Blast.AcceptedBy)
	for _, r := range detail.Responses {
		if r.CourierID == winners[0] {
			assert.Equal(t, domain.ResponseInterested, r.Status)
			continue
		}
		assert.Equal(t, domain.ResponseExpired, r.Status, r.CourierID)
	}

	load, err := s.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, load.Status)
	assert.Equal(t, winners[0], load.CourierID)
}

func TestConfirmAfterMixedResponses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1", "c2", "c3")

	_, err := s.ExpressInterest(ctx, "b1", "c2", &domain.Coordinates{Lat: 33.45, Lon: -112.07}, t0.Add(45*time.Second))
	require.NoError(t, err)
	_, _, err = s.DeclineBlast(ctx, "b1", "c3", "too far", t0.Add(time.Minute))
	require.NoError(t, err)

	out, err := s.ConfirmAssignment(ctx, "b1", "c2", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "c2", out.Blast.AcceptedBy)
	assert.Equal(t, domain.StatusAssigned, out.Load.Status)
	assert.Equal(t, 2, out.ExpiredResponses)

	_, err = s.ConfirmAssignment(ctx, "b1", "c1", t0.Add(3*time.Minute))
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	winner := detail.Response("c2")
	require.NotNil(t, winner)
	require.NotNil(t, winner.ResponseSeconds)
	assert.InDelta(t, 45.0, *winner.ResponseSeconds, 0.001)
	require.NotNil(t, winner.Location)
	assert.InDelta(t, 33.45, winner.Location.Lat, 1e-9)
	assert.Equal(t, domain.ResponseExpired, detail.Response("c3").Status)
	assert.Equal(t, 1, detail.Blast.DeclinedCount)
}

func TestConfirmRejectsFinalResponses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1", "c2")

	_, _, err := s.DeclineBlast(ctx, "b1", "c1", "", t0.Add(time.Minute))
	require.NoError(t, err)

	_, err = s.ConfirmAssignment(ctx, "b1", "c1", t0.Add(2*time.Minute))
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrResponseFinal)

	_, err = s.ConfirmAssignment(ctx, "b1", "stranger", t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.ConfirmAssignment(ctx, "missing", "c1", t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BlastActive, detail.Blast.Status)
}

func TestConfirmAfterExpiryIsClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1")

	_, err := s.ConfirmAssignment(ctx, "b1", "c1", t0.Add(domain.DefaultBlastTTL))
	require.ErrorIs(t, err, domain.ErrBlastClosed)

	load, err := s.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlasted, load.Status)
}

func TestExpressInterestUnknownBlast(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ExpressInterest(context.Background(), "nope", "c1", nil, t0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpressInterestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1")

	first, err := s.ExpressInterest(ctx, "b1", "c1", nil, t0.Add(10*time.Second))
	require.NoError(t, err)
	second, err := s.ExpressInterest(ctx, "b1", "c1", nil, t0.Add(20*time.Second))
	require.NoError(t, err)

	require.NotNil(t, second.ResponseSeconds)
	assert.Equal(t, *first.ResponseSeconds, *second.ResponseSeconds)

	load, err := s.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlasted, load.Status)
}

func TestMarkViewedCountsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1")

	for i := 0; i < 3; i++ {
		r, err := s.MarkViewed(ctx, "b1", "c1", t0.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, domain.ResponseViewed, r.Status)
	}

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Blast.ViewedCount)
}

func TestDeclineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1", "c2")

	for i := 0; i < 2; i++ {
		r, changed, err := s.DeclineBlast(ctx, "b1", "c1", "busy", t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, i == 0, changed)
		assert.Equal(t, domain.ResponseDeclined, r.Status)
		assert.Equal(t, "busy", r.DeclineReason)
	}

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Blast.DeclinedCount)
}

func TestCancelBlastLeavesLoadAlone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1", "c2")

	b, err := s.CancelBlast(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BlastCancelled, b.Status)

	_, err = s.CancelBlast(ctx, "b1")
	require.NoError(t, err)

	detail, err := s.GetBlast(ctx, "b1")
	require.NoError(t, err)
	for _, r := range detail.Responses {
		assert.Equal(t, domain.ResponseExpired, r.Status)
	}

	load, err := s.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlasted, load.Status)

	_, err = s.ExpressInterest(ctx, "b1", "c1", nil, t0.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrBlastClosed)
}

func TestExpireStaleReopensLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedBlast(t, s, "b1", "L1", "c1")
	seedBlast(t, s, "b2", "L2", "c1")

	_, err := s.ConfirmAssignment(ctx, "b2", "c1", t0.Add(time.Minute))
	require.NoError(t, err)

	out, err := s.ExpireStale(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b1", out[0].Blast.ID)
	assert.Equal(t, domain.BlastExpired, out[0].Blast.Status)
	assert.Equal(t, domain.StatusPending, out[0].Load.Status)
	assert.Equal(t, domain.AlertUnassigned, out[0].Alert.Type)

	load, err := s.GetLoad(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, load.Status)

	alerts, err := s.ListAlertsSince(ctx, t0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "L1", alerts[0].LoadID)

	again, err := s.ExpireStale(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestUpdateLoadStatusCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLoad(t, s, "L1")

	err := s.UpdateLoadStatus(ctx, "L1", domain.StatusPending, domain.StatusDelivered, "", t0)
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	require.NoError(t, s.UpdateLoadStatus(ctx, "L1", domain.StatusPending, domain.StatusCancelled, "", t0))

	err = s.UpdateLoadStatus(ctx, "L1", domain.StatusPending, domain.StatusBlasted, "", t0)
	var ite *domain.IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.StatusCancelled, ite.From)

	err = s.UpdateLoadStatus(ctx, "missing", domain.StatusPending, domain.StatusCancelled, "", t0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCourierLoadsFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLoad(t, s, "L1")
	seedLoad(t, s, "L2")
	seedLoad(t, s, "L3")
	require.NoError(t, s.UpdateLoadStatus(ctx, "L1", domain.StatusPending, domain.StatusAssigned, "c1", t0))
	require.NoError(t, s.UpdateLoadStatus(ctx, "L2", domain.StatusPending, domain.StatusAssigned, "c1", t0))
	require.NoError(t, s.UpdateLoadStatus(ctx, "L2", domain.StatusAssigned, domain.StatusInProgress, "c1", t0))

	loads, err := s.ListCourierLoads(ctx, "c1", []domain.LoadStatus{domain.StatusAssigned})
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, "L1", loads[0].ID)

	loads, err = s.ListCourierLoads(ctx, "c1", domain.ActiveStatuses)
	require.NoError(t, err)
	assert.Len(t, loads, 2)
}

func TestAlertAcknowledgeAndResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, s.CreateAlert(ctx, &domain.Alert{
			ID: id, LoadID: "L1", Type: domain.AlertWaitTime, Severity: domain.SeverityInfo,
			Title: "Waiting", Status: domain.AlertActive, CreatedAt: t0,
		}))
	}

	n, err := s.AcknowledgeAlerts(ctx, []string{"a1", "a2", "ghost"}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.AcknowledgeAlerts(ctx, []string{"a1"}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.ResolveAlert(ctx, "a1", t0.Add(3*time.Minute)))
	require.NoError(t, s.ResolveAlert(ctx, "a1", t0.Add(4*time.Minute)))
	assert.ErrorIs(t, s.ResolveAlert(ctx, "ghost", t0), domain.ErrNotFound)

	alerts, err := s.ListAlertsSince(ctx, t0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.AlertResolved, alerts[0].Status)
	require.NotNil(t, alerts[0].ResolvedAt)
	assert.True(t, alerts[0].ResolvedAt.Equal(t0.Add(3*time.Minute)))
	assert.Equal(t, domain.AlertAcknowledged, alerts[1].Status)
}

func TestSeedFromJSONSkipsExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLoad(t, s, "L1")

	path := t.TempDir() + "/loads.json"
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"L1"},{"id":"L2","delivery_address":"9 Elm","package_count":3}]`), 0o600))

	n, err := SeedFromJSON(ctx, s, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	load, err := s.GetLoad(ctx, "L2")
	require.NoError(t, err)
	assert.Equal(t, 3, load.PackageCount)
	assert.Equal(t, domain.StatusPending, load.Status)
}

func TestNewSQLStorePlaceholders(t *testing.T) {
	cases := []struct {
		driver string
		want   string
	}{
		{db.DriverSQLite, "SELECT id FROM loads WHERE id = ?"},
		{db.DriverPostgres, "SELECT id FROM loads WHERE id = $1"},
	}
	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			s := NewSQLStore(nil, tc.driver)
			query, args, err := s.sb.Select("id").From("loads").Where("id = ?", "L1").ToSql()
			require.NoError(t, err)
			assert.Equal(t, tc.want, query)
			assert.Equal(t, []any{"L1"}, args)
		})
	}
}
