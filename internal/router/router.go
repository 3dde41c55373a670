// Package router suggests what to do next with an SFC.
//
// The router maps an SFC's derived status and its operation cursor to the
// next command that moves it toward Done. It is advisory: nothing is
// executed, and the suggested command still goes through validation.
//
// Key types:
//   - [Router] - picks the next step or the remaining plan for a record
//   - [Step] - one suggested command with a human-readable reason
package router

import (
	"errors"
	"fmt"

	"mockmes/internal/command"
	"mockmes/internal/sfc"
	"mockmes/internal/status"
)

// Sentinel errors for SFC routing.
var (
	// ErrSFCComplete indicates the SFC is Done and no step is needed.
	// Callers should report it, not treat it as a failure.
	ErrSFCComplete = errors.New("sfc is complete, no action needed")

	// ErrUnknownStatus indicates a status value the router does not know,
	// most likely from a hand-edited report file.
	ErrUnknownStatus = errors.New("unknown sfc status")
)

// Step is one suggested command.
type Step struct {
	// Name is the command name, one of the command.Name* constants.
	Name string

	// Command is the ready-to-run command, or nil when it needs an argument
	// the record cannot supply (the routing for an assignment).
	Command command.Command

	// Reason explains the suggestion.
	Reason string
}

// Router suggests steps for SFC records.
//
// Create with [NewRouter].
type Router struct {
	known map[status.SFCStatus]bool
}

// NewRouter creates a Router with the standard rules:
//   - no operations: assign a routing
//   - an operation in work: advance it, completing the last one
//   - nothing in work (only done, bypassed or blank left): roll back to the
//     first operation that is not done
//   - Done: [ErrSFCComplete]
func NewRouter() *Router {
	return &Router{
		known: map[status.SFCStatus]bool{
			status.StatusNew:    true,
			status.StatusInWork: true,
			status.StatusDone:   true,
		},
	}
}

// Next returns the single next step for rec.
func (r *Router) Next(rec sfc.Record) (Step, error) {
	steps, err := r.Plan(rec)
	if err != nil {
		return Step{}, err
	}
	return steps[0], nil
}

// Plan returns every step from rec's current position to completion,
// assuming each one succeeds. A plan that starts with a rollback stops there,
// since what follows depends on the rolled-back state.
//
// Returns [ErrSFCComplete] for Done records and [ErrUnknownStatus] for
// unrecognized status values.
func (r *Router) Plan(rec sfc.Record) ([]Step, error) {
	if !r.known[rec.Status] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, rec.Status)
	}
	if rec.Status == status.StatusDone {
		return nil, ErrSFCComplete
	}

	ops := rec.Operations
	if len(ops) == 0 {
		return []Step{{
			Name:   command.NameAssignRouting,
			Reason: "no routing assigned",
		}}, nil
	}

	i, ok := ops.InWork()
	if !ok {
		for _, op := range ops {
			if op.State != status.Done {
				return []Step{{
					Name:    command.NameRollback,
					Command: command.Rollback{SFCID: rec.ID, Step: op.ID},
					Reason:  fmt.Sprintf("operation %d is %s", op.ID, op.State),
				}}, nil
			}
		}
		return nil, ErrSFCComplete
	}

	steps := make([]Step, 0, len(ops)-i)
	for j := i; j < len(ops); j++ {
		if j == len(ops)-1 {
			steps = append(steps, Step{
				Name:    command.NameComplete,
				Command: command.Complete{SFCID: rec.ID},
				Reason:  fmt.Sprintf("finish operation %d, the last one", ops[j].ID),
			})
			continue
		}
		steps = append(steps, Step{
			Name:    command.NameAdvance,
			Command: command.Advance{SFCID: rec.ID},
			Reason:  fmt.Sprintf("finish operation %d and start %d", ops[j].ID, ops[j+1].ID),
		})
	}
	return steps, nil
}
