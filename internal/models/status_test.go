package models

import "testing"

func TestStatusTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusCreated:         {StatusProcessing},
		StatusProcessing:      {StatusSuccess, StatusFailed, StatusCancelled},
		StatusSuccess:         {StatusRefunded, StatusPartialRefunded},
		StatusPartialRefunded: {StatusRefunded, StatusPartialRefunded},
		StatusFailed:          {},
		StatusCancelled:       {},
		StatusRefunded:        {},
	}
	all := []Status{
		StatusCreated,
		StatusProcessing,
		StatusSuccess,
		StatusFailed,
		StatusCancelled,
		StatusRefunded,
		StatusPartialRefunded,
	}

	for from, targets := range allowed {
		permitted := make(map[Status]bool, len(targets))
		for _, to := range targets {
			permitted[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != permitted[to] {
				t.Fatalf("transition %s -> %s: expected %v, got %v", from, to, permitted[to], got)
			}
		}
	}
}

func TestStatusTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	terminal := []Status{StatusFailed, StatusCancelled, StatusRefunded}
	all := []Status{
		StatusCreated,
		StatusProcessing,
		StatusSuccess,
		StatusFailed,
		StatusCancelled,
		StatusRefunded,
		StatusPartialRefunded,
	}
	for _, from := range terminal {
		if !from.IsTerminal() {
			t.Fatalf("expected %s to be terminal", from)
		}
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Fatalf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
	for _, from := range []Status{StatusCreated, StatusProcessing, StatusSuccess, StatusPartialRefunded} {
		if from.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", from)
		}
	}
}

func TestStatusSettled(t *testing.T) {
	if !StatusSuccess.IsSettled() {
		t.Fatalf("expected success to be settled")
	}
	if !StatusPartialRefunded.IsSettled() {
		t.Fatalf("expected partial_refunded to be settled")
	}
	for _, s := range []Status{StatusCreated, StatusProcessing, StatusFailed, StatusCancelled, StatusRefunded} {
		if s.IsSettled() {
			t.Fatalf("expected %s not to be settled", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if Status("shipped").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
	if !StatusProcessing.Valid() {
		t.Fatalf("expected processing to be valid")
	}
}
