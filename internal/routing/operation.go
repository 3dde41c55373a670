package routing

import (
	"fmt"

	"mockmes/internal/status"
)

// Operation is a single step of a routing or of an SFC's working copy.
//
// ID is the operation's 1-based position within its owning sequence. It is
// assigned at creation time and never changes afterwards.
type Operation struct {
	// ID is the 1-based sequence position.
	ID int `json:"id" yaml:"id"`

	// Description is a human-readable label, "Operation N" for generated
	// routings or the manifest text for registered ones.
	Description string `json:"description" yaml:"description"`

	// State is the operation's current state. Always [status.Blank] inside a
	// routing template.
	State status.State `json:"state" yaml:"state"`
}

// Operations is an ordered operation sequence.
type Operations []Operation

// newOperations builds a blank sequence with ids 1..len(descriptions).
func newOperations(descriptions []string) Operations {
	ops := make(Operations, len(descriptions))
	for i, d := range descriptions {
		ops[i] = Operation{ID: i + 1, Description: d, State: status.Blank}
	}
	return ops
}

// generatedDescriptions returns "Operation 1" .. "Operation n".
func generatedDescriptions(n int) []string {
	descs := make([]string, n)
	for i := range descs {
		descs[i] = fmt.Sprintf("Operation %d", i+1)
	}
	return descs
}

// Clone returns an independent copy of ops. A nil sequence clones to an
// empty, non-nil one so that JSON renders it as [].
func (ops Operations) Clone() Operations {
	out := make(Operations, len(ops))
	copy(out, ops)
	return out
}

// States returns the state of every operation in order.
func (ops Operations) States() []status.State {
	states := make([]status.State, len(ops))
	for i, op := range ops {
		states[i] = op.State
	}
	return states
}

// InWork returns the 0-based index of the first in-work operation.
func (ops Operations) InWork() (int, bool) {
	for i, op := range ops {
		if op.State == status.InWork {
			return i, true
		}
	}
	return -1, false
}
