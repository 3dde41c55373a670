// Package command defines the closed set of operations a client can ask the
// mock MES to perform, and the [Dispatcher] that executes them.
//
// Every transport (HTTP handlers, the CLI, the chat loop) funnels requests
// through a [Command] value: it is validated once with [Command.Validate] and
// then executed against a [Backend]. Free-form input never reaches the store
// directly; it must first be turned into a Command, either by [Decode] for
// JSON or by an intent resolver for natural language.
//
// Key types:
//   - [Command] - sealed interface implemented by the variants below
//   - [Backend] - the store surface, implemented by mes.Service and client.Client
//   - [Dispatcher] - validates and executes commands
//   - [Result] - whichever record shape a command produced
package command

import (
	"errors"
	"fmt"

	"mockmes/internal/fault"
	"mockmes/internal/routing"
)

// Sentinel errors for command validation and decoding.
var (
	// ErrUnknownCommand is returned by [Decode] for an unrecognized command name.
	ErrUnknownCommand = fmt.Errorf("unknown command: %w", fault.ErrInvalidArgument)

	// ErrMissingArgument is returned when a required argument is absent.
	ErrMissingArgument = fmt.Errorf("missing argument: %w", fault.ErrInvalidArgument)

	// ErrNilCommand is returned by [Dispatcher.Execute] for a nil command.
	ErrNilCommand = errors.New("nil command")
)

// Command names as they appear in JSON and logs.
const (
	NameCreateRouting   = "create_routing"
	NameGetRouting      = "get_routing"
	NameListRoutings    = "list_routings"
	NameCreateSFC       = "create_sfc"
	NameAssignRouting   = "assign_routing"
	NameAdvance         = "advance"
	NameComplete        = "complete"
	NameRollback        = "rollback"
	NameRollbackSingle  = "rollback_single"
	NameForceAdvance    = "force_advance"
	NameGetSFC          = "get_sfc"
	NameGetRoutingState = "get_routing_state"
	NameListSFCs        = "list_sfcs"
	NameHistory         = "history"
)

// Names lists every command name in a stable order.
var Names = []string{
	NameCreateRouting, NameGetRouting, NameListRoutings,
	NameCreateSFC, NameAssignRouting,
	NameAdvance, NameComplete, NameRollback, NameRollbackSingle, NameForceAdvance,
	NameGetSFC, NameGetRoutingState, NameListSFCs, NameHistory,
}

// Command is one request to the store. The set of implementations is closed.
type Command interface {
	// Name returns the wire name of the command.
	Name() string

	// Validate checks arguments that can be checked without the store.
	// Range checks that depend on store contents (step within the SFC's
	// operation count) are left to the backend.
	Validate() error

	sealed()
}

// CreateRouting creates a routing. A nil Operations draws the count from the
// ad-hoc default range.
type CreateRouting struct {
	Operations *int
}

// GetRouting reads one routing template.
type GetRouting struct {
	RoutingID string
}

// ListRoutings reads every routing template.
type ListRoutings struct{}

// CreateSFC creates an empty SFC.
type CreateSFC struct{}

// AssignRouting instantiates a routing on an SFC.
type AssignRouting struct {
	SFCID     string
	RoutingID string
}

// Advance completes the in-work operation.
type Advance struct {
	SFCID string
}

// Complete is the alias of Advance.
type Complete struct {
	SFCID string
}

// Rollback resets the cursor to Step.
type Rollback struct {
	SFCID string
	Step  int
}

// RollbackSingle moves the cursor back one operation.
type RollbackSingle struct {
	SFCID string
}

// ForceAdvance jumps the cursor to Step.
type ForceAdvance struct {
	SFCID string
	Step  int
}

// GetSFC reads the full SFC record.
type GetSFC struct {
	SFCID string
}

// GetRoutingState reads the routing-state projection of an SFC.
type GetRoutingState struct {
	SFCID string
}

// ListSFCs reads every SFC.
type ListSFCs struct{}

// History reads the transition journal of an SFC.
type History struct {
	SFCID string
}

func (CreateRouting) Name() string   { return NameCreateRouting }
func (GetRouting) Name() string      { return NameGetRouting }
func (ListRoutings) Name() string    { return NameListRoutings }
func (CreateSFC) Name() string       { return NameCreateSFC }
func (AssignRouting) Name() string   { return NameAssignRouting }
func (Advance) Name() string         { return NameAdvance }
func (Complete) Name() string        { return NameComplete }
func (Rollback) Name() string        { return NameRollback }
func (RollbackSingle) Name() string  { return NameRollbackSingle }
func (ForceAdvance) Name() string    { return NameForceAdvance }
func (GetSFC) Name() string          { return NameGetSFC }
func (GetRoutingState) Name() string { return NameGetRoutingState }
func (ListSFCs) Name() string        { return NameListSFCs }
func (History) Name() string         { return NameHistory }

func (c CreateRouting) Validate() error {
	if c.Operations == nil {
		return nil
	}
	if n := *c.Operations; n < routing.MinOperations || n > routing.MaxOperations {
		return fmt.Errorf("operations %d: %w", n, routing.ErrInvalidCount)
	}
	return nil
}

func (c GetRouting) Validate() error { return requireID("routing_id", c.RoutingID) }
func (ListRoutings) Validate() error { return nil }
func (CreateSFC) Validate() error    { return nil }

func (c AssignRouting) Validate() error {
	if err := requireID("sfc_id", c.SFCID); err != nil {
		return err
	}
	return requireID("routing_id", c.RoutingID)
}

func (c Advance) Validate() error        { return requireID("sfc_id", c.SFCID) }
func (c Complete) Validate() error       { return requireID("sfc_id", c.SFCID) }
func (c Rollback) Validate() error       { return requireStep(c.SFCID, c.Step) }
func (c RollbackSingle) Validate() error { return requireID("sfc_id", c.SFCID) }
func (c ForceAdvance) Validate() error   { return requireStep(c.SFCID, c.Step) }
func (c GetSFC) Validate() error         { return requireID("sfc_id", c.SFCID) }
func (c GetRoutingState) Validate() error {
	return requireID("sfc_id", c.SFCID)
}
func (ListSFCs) Validate() error  { return nil }
func (c History) Validate() error { return requireID("sfc_id", c.SFCID) }

func (CreateRouting) sealed()   {}
func (GetRouting) sealed()      {}
func (ListRoutings) sealed()    {}
func (CreateSFC) sealed()       {}
func (AssignRouting) sealed()   {}
func (Advance) sealed()         {}
func (Complete) sealed()        {}
func (Rollback) sealed()        {}
func (RollbackSingle) sealed()  {}
func (ForceAdvance) sealed()    {}
func (GetSFC) sealed()          {}
func (GetRoutingState) sealed() {}
func (ListSFCs) sealed()        {}
func (History) sealed()         {}

func requireID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s not provided: %w", field, ErrMissingArgument)
	}
	return nil
}

func requireStep(sfcID string, step int) error {
	if err := requireID("sfc_id", sfcID); err != nil {
		return err
	}
	if step < 1 {
		return fmt.Errorf("step %d must be at least 1: %w", step, fault.ErrInvalidArgument)
	}
	return nil
}
