package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEscalationBand(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want Severity
	}{
		{-time.Minute, SeverityInfo},
		{4*time.Minute + 59*time.Second, SeverityInfo},
		{5 * time.Minute, SeverityWarning},
		{14 * time.Minute, SeverityWarning},
		{15 * time.Minute, SeverityCritical},
		{29 * time.Minute, SeverityCritical},
		{30 * time.Minute, SeverityAutoPing},
	}
	for _, tc := range cases {
		if got := EscalationBand(tc.age); got != tc.want {
			t.Errorf("EscalationBand(%v) = %s, want %s", tc.age, got, tc.want)
		}
	}
}

func TestAlertAge(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := &Alert{Status: AlertActive, Severity: SeverityInfo, CreatedAt: now.Add(-40 * time.Minute)}

	if got := a.AgeMinutes(now); got != 40 {
		t.Errorf("age = %d, want 40", got)
	}
	if got := a.Escalate(now); got != SeverityAutoPing {
		t.Errorf("escalate = %s, want auto_ping", got)
	}

	// Clock skew must not produce a negative age.
	future := &Alert{CreatedAt: now.Add(time.Minute)}
	if got := future.AgeMinutes(now); got != 0 {
		t.Errorf("future alert age = %d, want 0", got)
	}

	if got := StartOfDay(now); !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start of day = %v", got)
	}
}

func TestUserMessage(t *testing.T) {
	lost := errors.Join(errors.New("confirm blast b1"), ErrAlreadyAssigned)
	if got := UserMessage(lost); got != "load already assigned" {
		t.Errorf("lost race message = %q", got)
	}

	other := NotFound("blast", "b1")
	if got, want := UserMessage(other), "request failed: not found: blast \"b1\""; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if UserMessage(nil) != "" {
		t.Error("nil error should have no message")
	}

	up := Upstream("push", errors.New("timeout"))
	if !errors.Is(up, ErrUpstreamUnavailable) {
		t.Error("upstream error lost its kind")
	}
	if !errors.Is(ErrNoCouriers, ErrValidation) || !errors.Is(ErrBlastClosed, ErrValidation) {
		t.Error("derived errors must be validation errors")
	}
}
