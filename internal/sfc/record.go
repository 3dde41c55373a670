package sfc

import (
	"mockmes/internal/routing"
	"mockmes/internal/status"
)

// Record is the full read model of an SFC.
type Record struct {
	ID         string             `json:"sfc_id" yaml:"sfc_id"`
	RoutingID  string             `json:"routing_id,omitempty" yaml:"routing_id,omitempty"`
	Operations routing.Operations `json:"operations" yaml:"operations"`
	Status     status.SFCStatus   `json:"sfc_state" yaml:"sfc_state"`
}

// Transition is the outcome of a state-changing call.
//
// Changed is false when the call had no effect, most notably an Advance on an
// SFC with no operation in work.
type Transition struct {
	Record
	Changed bool `json:"changed"`
}

// OperationState is one row of a [RoutingState] projection.
type OperationState struct {
	ID          int          `json:"id"`
	Description string       `json:"description"`
	State       status.State `json:"state"`
}

// RoutingState is the projection returned by [Machine.GetRoutingState]: the
// per-operation states and the derived status, without anything else the
// record may carry.
type RoutingState struct {
	SFCID      string           `json:"sfc_id"`
	RoutingID  string           `json:"routing_id,omitempty"`
	Operations []OperationState `json:"operations"`
	Status     status.SFCStatus `json:"sfc_state"`
}

// Project builds the routing-state projection of r.
func (r Record) Project() RoutingState {
	ops := make([]OperationState, len(r.Operations))
	for i, op := range r.Operations {
		ops[i] = OperationState{ID: op.ID, Description: op.Description, State: op.State}
	}
	return RoutingState{
		SFCID:      r.ID,
		RoutingID:  r.RoutingID,
		Operations: ops,
		Status:     r.Status,
	}
}
