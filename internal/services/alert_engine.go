package services

import (
	"context"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"sync"
	"time"
)

// DefaultPingMarkerTTL outlives any alert, since alerts are scoped to one day.
const DefaultPingMarkerTTL = 48 * time.Hour

// EvaluatedAlert is a stored alert plus the values derived at evaluation time.
type EvaluatedAlert struct {
	*domain.Alert
	EscalatedSeverity domain.Severity
	AgeMinutes        int
}

// Evaluation is the result of one pass over the alert set.
type Evaluation struct {
	Alerts []EvaluatedAlert
	// AutoPinged holds alerts that crossed into auto_ping for the first time.
	AutoPinged []EvaluatedAlert
	// NewAlerts holds alerts absent from the previous evaluation. Always empty on
	// the first evaluation.
	NewAlerts []EvaluatedAlert
}

// EnrichAlerts derives escalation band and age for each alert. It has no side effects.
func EnrichAlerts(alerts []*domain.Alert, now time.Time) []EvaluatedAlert {
	out := make([]EvaluatedAlert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, EvaluatedAlert{
			Alert:             a,
			EscalatedSeverity: a.Escalate(now),
			AgeMinutes:        a.AgeMinutes(now),
		})
	}
	return out
}

// AlertEngine re-derives alert severity and emits one-time side effects.
//
// The auto-ping marker lives in the PingLedger, keyed by alert id, so it survives
// re-fetches and process restarts. New-alert tracking is per engine instance.
// Safe for concurrent use.
type AlertEngine struct {
	ledger    ports.PingLedger
	markerTTL time.Duration

	mu     sync.Mutex
	primed bool
	seen   map[string]struct{}
}

func NewAlertEngine(ledger ports.PingLedger, markerTTL time.Duration) *AlertEngine {
	if markerTTL <= 0 {
		markerTTL = DefaultPingMarkerTTL
	}
	return &AlertEngine{ledger: ledger, markerTTL: markerTTL, seen: map[string]struct{}{}}
}

// Evaluate enriches the full current alert set and reports first-time crossings.
// It may be re-run on the same data any number of times.
func (e *AlertEngine) Evaluate(ctx context.Context, alerts []*domain.Alert, now time.Time) *Evaluation {
	ev := &Evaluation{Alerts: EnrichAlerts(alerts, now)}

	for _, a := range ev.Alerts {
		if a.Status != domain.AlertActive || a.EscalatedSeverity != domain.SeverityAutoPing {
			continue
		}
		first, err := e.ledger.MarkPinged(ctx, a.ID, e.markerTTL)
		if err != nil {
			// Unmarked, so the next tick tries again.
			obs.Logger(ctx).Warn().Err(err).Str("alert_id", a.ID).Msg("ping ledger unavailable")
			continue
		}
		if first {
			ev.AutoPinged = append(ev.AutoPinged, a)
		}
	}

	ev.NewAlerts = e.detectNew(ev.Alerts)
	return ev
}

func (e *AlertEngine) detectNew(alerts []EvaluatedAlert) []EvaluatedAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := make(map[string]struct{}, len(alerts))
	var fresh []EvaluatedAlert
	for _, a := range alerts {
		current[a.ID] = struct{}{}
		if !e.primed {
			continue
		}
		if _, ok := e.seen[a.ID]; !ok {
			fresh = append(fresh, a)
		}
	}

	e.seen = current
	e.primed = true
	return fresh
}
