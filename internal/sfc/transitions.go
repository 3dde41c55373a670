package sfc

import (
	"fmt"

	"mockmes/internal/routing"
	"mockmes/internal/status"
)

// validTransitions lists, per operation state, the states an SFC-level
// transition may move it to. Staying in the same state is always allowed.
//
// done -> bypassed is deliberately absent: completed work is never
// reclassified as skipped.
var validTransitions = map[status.State][]status.State{
	status.Blank:    {status.InWork, status.Done, status.Bypassed},
	status.InWork:   {status.Done, status.Blank, status.Bypassed},
	status.Done:     {status.InWork, status.Blank},
	status.Bypassed: {status.Done, status.InWork, status.Blank},
}

// CanTransition reports whether a single operation may move from one state to
// another.
func CanTransition(from, to status.State) bool {
	if from == to {
		return from.IsValid()
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransitions validates every per-operation change between two versions
// of the same sequence, and that at most one operation ends up in work.
func checkTransitions(before, after routing.Operations) error {
	if len(before) != len(after) {
		return fmt.Errorf("operation count changed from %d to %d: %w", len(before), len(after), ErrInvalidTransition)
	}

	inWork := 0
	for i := range after {
		if after[i].ID != before[i].ID {
			return fmt.Errorf("operation %d: id changed to %d: %w", before[i].ID, after[i].ID, ErrInvalidTransition)
		}
		if !CanTransition(before[i].State, after[i].State) {
			return fmt.Errorf("operation %d: %s -> %s: %w", after[i].ID, before[i].State, after[i].State, ErrInvalidTransition)
		}
		if after[i].State == status.InWork {
			inWork++
		}
	}
	if inWork > 1 {
		return fmt.Errorf("%d operations in work: %w", inWork, ErrInvalidTransition)
	}
	return nil
}

// statesEqual reports whether two sequences hold the same states.
func statesEqual(a, b routing.Operations) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].State != b[i].State {
			return false
		}
	}
	return true
}
