package domain

import "time"

type AlertType string

const (
	AlertWaitTime       AlertType = "wait_time"
	AlertDetention      AlertType = "detention"
	AlertETABreach      AlertType = "eta_breach"
	AlertIdleDriver     AlertType = "idle_driver"
	AlertRouteDeviation AlertType = "route_deviation"
	AlertUnassigned     AlertType = "unassigned"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertWaitTime, AlertDetention, AlertETABreach, AlertIdleDriver, AlertRouteDeviation, AlertUnassigned:
		return true
	}
	return false
}

// Severity is both the stored base severity and the derived escalation band.
// SeverityAutoPing is only ever derived.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityAutoPing Severity = "auto_ping"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertAutoResolved AlertStatus = "auto_resolved"
)

// Escalation band boundaries, measured from CreatedAt. Bands are closed-open.
const (
	WarningAfter  = 5 * time.Minute
	CriticalAfter = 15 * time.Minute
	AutoPingAfter = 30 * time.Minute
)

// Alert is a standing notice about a load or courier condition.
type Alert struct {
	ID             string
	LoadID         string
	CourierID      string
	Type           AlertType
	Severity       Severity
	Title          string
	Message        string
	Status         AlertStatus
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// EscalationBand maps an alert age to its severity band.
func EscalationBand(age time.Duration) Severity {
	switch {
	case age >= AutoPingAfter:
		return SeverityAutoPing
	case age >= CriticalAfter:
		return SeverityCritical
	case age >= WarningAfter:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Escalate derives the alert's severity at now. Escalation freezes once the alert
// leaves active, so non-active alerts keep their stored severity.
func (a *Alert) Escalate(now time.Time) Severity {
	if a.Status != AlertActive {
		return a.Severity
	}
	return EscalationBand(now.Sub(a.CreatedAt))
}

// AgeMinutes is the whole number of minutes since the alert was raised.
func (a *Alert) AgeMinutes(now time.Time) int {
	age := now.Sub(a.CreatedAt)
	if age < 0 {
		return 0
	}
	return int(age / time.Minute)
}

// StartOfDay returns local midnight for t. Alerts are scoped to the current day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
