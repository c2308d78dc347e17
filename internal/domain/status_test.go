package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTransitionTable(t *testing.T) {
	allowed := 0
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			err := CheckTransition(from, to)
			if IsTransitionAllowed(from, to) {
				allowed++
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
				continue
			}

			var ite *IllegalTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("%s -> %s: err = %v, want IllegalTransitionError", from, to, err)
			}
			if ite.From != from || ite.To != to {
				t.Errorf("error carries %s -> %s, want %s -> %s", ite.From, ite.To, from, to)
			}
			if !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("%s -> %s: error does not match ErrIllegalTransition", from, to)
			}
		}
	}

	if allowed != 22 {
		t.Errorf("allowed transitions = %d, want 22", allowed)
	}
	if len(Transitions[StatusCompleted]) != 0 {
		t.Errorf("completed must be terminal, has %v", Transitions[StatusCompleted])
	}
}

func TestLoadTransition(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	load := &Load{ID: "L1", Status: StatusPending}

	if err := load.Transition(StatusAssigned, "", at); !errors.Is(err, ErrValidation) {
		t.Fatalf("assign without courier: err = %v, want validation", err)
	}
	if load.Status != StatusPending {
		t.Fatalf("status changed on rejected move: %s", load.Status)
	}

	if err := load.Transition(StatusAssigned, "c1", at); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := load.Transition(StatusInProgress, "", at.Add(time.Minute)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if load.CourierID != "c1" {
		t.Errorf("courier = %q, want c1 kept", load.CourierID)
	}
	if !load.UpdatedAt.Equal(at.Add(time.Minute)) {
		t.Errorf("updated at = %v", load.UpdatedAt)
	}

	if err := load.Transition(StatusCancelled, "", at); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if load.CourierID != "" {
		t.Errorf("cancelled load still carries courier %q", load.CourierID)
	}
	if err := load.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadValidate(t *testing.T) {
	bad := []*Load{
		{ID: " ", Status: StatusPending},
		{ID: "L1", Status: "lost"},
		{ID: "L1", Status: StatusPending, CourierID: "c1"},
		{ID: "L1", Status: StatusBlasted, CourierID: "c1"},
		{ID: "L1", Status: StatusPending, PackageCount: -1},
	}
	for i, l := range bad {
		if err := l.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: err = %v, want validation", i, err)
		}
	}
}
