package services

import (
	"context"
	"dispatch-coordination-service/internal/adapters/ledger"
	"dispatch-coordination-service/internal/domain"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertAged(id string, age time.Duration, now time.Time) *domain.Alert {
	return &domain.Alert{
		ID:        id,
		Type:      domain.AlertWaitTime,
		Severity:  domain.SeverityInfo,
		Title:     "Driver waiting at dock",
		Status:    domain.AlertActive,
		CreatedAt: now.Add(-age),
	}
}

func TestEnrichAlertsBands(t *testing.T) {
	now := baseTime
	cases := []struct {
		age  time.Duration
		want domain.Severity
	}{
		{0, domain.SeverityInfo},
		{5*time.Minute - time.Millisecond, domain.SeverityInfo},
		{5 * time.Minute, domain.SeverityWarning},
		{15*time.Minute - time.Millisecond, domain.SeverityWarning},
		{15 * time.Minute, domain.SeverityCritical},
		{30*time.Minute - time.Millisecond, domain.SeverityCritical},
		{30 * time.Minute, domain.SeverityAutoPing},
		{3 * time.Hour, domain.SeverityAutoPing},
	}
	for _, tc := range cases {
		t.Run(tc.age.String(), func(t *testing.T) {
			got := EnrichAlerts([]*domain.Alert{alertAged("a", tc.age, now)}, now)
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0].EscalatedSeverity)
		})
	}
}

func TestEnrichAlertsFortyMinutes(t *testing.T) {
	got := EnrichAlerts([]*domain.Alert{alertAged("a", 40*time.Minute, baseTime)}, baseTime)
	require.Len(t, got, 1)
	assert.Equal(t, domain.SeverityAutoPing, got[0].EscalatedSeverity)
	assert.Equal(t, 40, got[0].AgeMinutes)
}

func TestEnrichAlertsFreezesNonActive(t *testing.T) {
	a := alertAged("a", time.Hour, baseTime)
	a.Status = domain.AlertAcknowledged
	a.Severity = domain.SeverityWarning

	got := EnrichAlerts([]*domain.Alert{a}, baseTime)
	assert.Equal(t, domain.SeverityWarning, got[0].EscalatedSeverity)
	assert.Equal(t, 60, got[0].AgeMinutes)
}

func TestAutoPingFiresOnce(t *testing.T) {
	ctx := context.Background()
	engine := NewAlertEngine(ledger.NewMemoryPingLedger(nil), 0)

	alerts := []*domain.Alert{
		alertAged("old", 31*time.Minute, baseTime),
		alertAged("young", 29*time.Minute, baseTime),
	}

	fired := map[string]int{}
	now := baseTime
	for i := 0; i < 10; i++ {
		ev := engine.Evaluate(ctx, alerts, now)
		for _, a := range ev.AutoPinged {
			fired[a.ID]++
		}
		now = now.Add(time.Minute)
	}

	assert.Equal(t, map[string]int{"old": 1, "young": 1}, fired)
}

func TestAutoPingSurvivesEngineRestart(t *testing.T) {
	ctx := context.Background()
	shared := ledger.NewMemoryPingLedger(nil)
	alerts := []*domain.Alert{alertAged("a", 45*time.Minute, baseTime)}

	first := NewAlertEngine(shared, time.Hour).Evaluate(ctx, alerts, baseTime)
	second := NewAlertEngine(shared, time.Hour).Evaluate(ctx, alerts, baseTime)

	assert.Len(t, first.AutoPinged, 1)
	assert.Empty(t, second.AutoPinged)
}

type flakyLedger struct {
	fail  bool
	marks map[string]bool
}

func (l *flakyLedger) MarkPinged(_ context.Context, id string, _ time.Duration) (bool, error) {
	if l.fail {
		return false, errors.New("ledger offline")
	}
	if l.marks[id] {
		return false, nil
	}
	l.marks[id] = true
	return true, nil
}

func TestAutoPingRetriesAfterLedgerFailure(t *testing.T) {
	ctx := context.Background()
	l := &flakyLedger{fail: true, marks: map[string]bool{}}
	engine := NewAlertEngine(l, 0)
	alerts := []*domain.Alert{alertAged("a", time.Hour, baseTime)}

	assert.Empty(t, engine.Evaluate(ctx, alerts, baseTime).AutoPinged)

	l.fail = false
	assert.Len(t, engine.Evaluate(ctx, alerts, baseTime).AutoPinged, 1)
	assert.Empty(t, engine.Evaluate(ctx, alerts, baseTime).AutoPinged)
}

func TestNewAlertDetectionSkipsFirstLoad(t *testing.T) {
	ctx := context.Background()
	engine := NewAlertEngine(ledger.NewMemoryPingLedger(nil), 0)

	a := alertAged("a", time.Minute, baseTime)
	b := alertAged("b", time.Minute, baseTime)
	c := alertAged("c", 0, baseTime)

	first := engine.Evaluate(ctx, []*domain.Alert{a, b}, baseTime)
	assert.Empty(t, first.NewAlerts)

	same := engine.Evaluate(ctx, []*domain.Alert{a, b}, baseTime)
	assert.Empty(t, same.NewAlerts)

	next := engine.Evaluate(ctx, []*domain.Alert{a, b, c}, baseTime)
	require.Len(t, next.NewAlerts, 1)
	assert.Equal(t, "c", next.NewAlerts[0].ID)

	// An alert that drops out and comes back counts as new again.
	engine.Evaluate(ctx, []*domain.Alert{a, c}, baseTime)
	back := engine.Evaluate(ctx, []*domain.Alert{a, b, c}, baseTime)
	require.Len(t, back.NewAlerts, 1)
	assert.Equal(t, "b", back.NewAlerts[0].ID)
}
