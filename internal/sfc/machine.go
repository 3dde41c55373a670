// Package sfc implements the shop floor card state machine.
//
// An SFC is created empty, receives a private copy of a routing's operations
// on assignment, and is then driven through its operations by the transition
// methods of [Machine]. Every transition runs under the SFC's own lock, works
// on a copy of the operation list and commits only on success, so a failed
// call never leaves a partial mutation behind.
//
// Transitions:
//   - [Machine.Advance] / [Machine.Complete] - finish the in-work operation, start the next
//   - [Machine.Rollback] - reset the cursor to a step; earlier done, later blank
//   - [Machine.RollbackSingle] - move the cursor back exactly one position
//   - [Machine.ForceAdvance] - jump to a step, bypassing unfinished earlier steps
//
// Errors wrap the kinds from the fault package.
package sfc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"mockmes/internal/fault"
	"mockmes/internal/routing"
	"mockmes/internal/status"
)

// Sentinel errors for state-machine operations.
var (
	// ErrSFCNotFound is returned when an sfc_id is unknown.
	ErrSFCNotFound = fmt.Errorf("sfc %w", fault.ErrNotFound)

	// ErrInvalidStep is returned when a step is outside [1, len(operations)].
	ErrInvalidStep = fmt.Errorf("invalid step: %w", fault.ErrInvalidArgument)

	// ErrNoOperationInWork is returned by RollbackSingle when nothing is in work.
	ErrNoOperationInWork = fmt.Errorf("no operation currently in work: %w", fault.ErrFailedPrecondition)

	// ErrFirstOperation is returned by RollbackSingle when the in-work
	// operation is the first one.
	ErrFirstOperation = fmt.Errorf("cannot rollback the first operation: %w", fault.ErrFailedPrecondition)

	// ErrInvalidTransition signals a bug: a transition produced a state change
	// outside the transition table. The change is discarded.
	ErrInvalidTransition = errors.New("invalid operation transition")
)

// RoutingSource supplies routing templates at assignment time.
// [routing.Catalog] implements it.
type RoutingSource interface {
	GetRouting(id string) (routing.Routing, error)
}

// Options configures a [Machine].
type Options struct {
	// Prefix is prepended to the ordinal to build sfc ids.
	Prefix string

	// Policy controls how the SFC status is derived.
	Policy status.Policy

	// Now returns the current time for journal entries. Defaults to time.Now.
	Now func() time.Time

	// Logger receives transition logs at debug level. Defaults to a discarding
	// logger.
	Logger *slog.Logger
}

// DefaultOptions returns the historical defaults ("SFCMOCK" ids).
func DefaultOptions() Options {
	return Options{Prefix: "SFCMOCK"}
}

// card is the mutable state of one SFC.
type card struct {
	mu        sync.Mutex
	id        string
	routingID string
	ops       routing.Operations
	history   []Entry
}

// Machine owns every SFC and its operation list.
//
// Create with [NewMachine]. All methods are safe for concurrent use;
// transitions on the same SFC are serialized.
type Machine struct {
	routings RoutingSource
	prefix   string
	policy   status.Policy
	journal  *journal
	logger   *slog.Logger

	mu    sync.RWMutex
	next  int
	cards map[string]*card
	order []string
}

// NewMachine creates a [Machine] that reads templates from routings.
func NewMachine(routings RoutingSource, opts Options) (*Machine, error) {
	if routings == nil {
		return nil, errors.New("routing source is required")
	}
	if opts.Prefix == "" {
		return nil, errors.New("sfc prefix must not be empty")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Machine{
		routings: routings,
		prefix:   opts.Prefix,
		policy:   opts.Policy,
		journal:  newJournal(now),
		logger:   logger,
		next:     1,
		cards:    make(map[string]*card),
	}, nil
}

// CreateSFC allocates a new SFC with no routing and no operations.
func (m *Machine) CreateSFC() Record {
	m.mu.Lock()
	id := m.prefix + strconv.Itoa(m.next)
	m.next++
	c := &card{id: id, ops: routing.Operations{}}
	m.cards[id] = c
	m.order = append(m.order, id)
	m.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, m.journal.entry(id, ActionCreate, "", 0, nil))
	m.logger.Debug("sfc created", "sfc_id", id)
	return m.recordLocked(c)
}

// AssignRouting gives the SFC a fresh copy of the routing's operations with
// the first one in work. Any earlier progress is discarded.
func (m *Machine) AssignRouting(sfcID, routingID string) (Record, error) {
	c, err := m.card(sfcID)
	if err != nil {
		return Record{}, err
	}
	r, err := m.routings.GetRouting(routingID)
	if err != nil {
		return Record{}, err
	}

	ops := r.Operations.Clone()
	if len(ops) > 0 {
		ops[0].State = status.InWork
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.routingID = r.ID
	c.ops = ops
	c.history = append(c.history, m.journal.entry(c.id, ActionAssignRouting, r.ID, 0, ops.States()))
	m.logger.Debug("routing assigned", "sfc_id", c.id, "routing_id", r.ID, "operations", len(ops))
	return m.recordLocked(c), nil
}

// Advance completes the in-work operation and puts the next one, if any, in
// work. Without an in-work operation the call is a no-op and the returned
// [Transition] has Changed set to false.
func (m *Machine) Advance(sfcID string) (Transition, error) {
	return m.transition(sfcID, ActionAdvance, 0, advance)
}

// Complete is an alias of [Machine.Advance].
func (m *Machine) Complete(sfcID string) (Transition, error) {
	return m.transition(sfcID, ActionComplete, 0, advance)
}

// Rollback sets every operation before step to done, step to in work, and
// every operation after step to blank. Bypassed markers in the range are
// overwritten.
func (m *Machine) Rollback(sfcID string, step int) (Transition, error) {
	return m.transition(sfcID, ActionRollback, step, func(ops routing.Operations) error {
		if err := validateStep(step, len(ops)); err != nil {
			return err
		}
		for i := range ops {
			switch {
			case i < step-1:
				ops[i].State = status.Done
			case i == step-1:
				ops[i].State = status.InWork
			default:
				ops[i].State = status.Blank
			}
		}
		return nil
	})
}

// RollbackSingle moves the in-work cursor back one position: the current
// operation becomes blank and the previous one in work.
func (m *Machine) RollbackSingle(sfcID string) (Transition, error) {
	return m.transition(sfcID, ActionRollbackSingle, 0, func(ops routing.Operations) error {
		idx, ok := ops.InWork()
		if !ok {
			return ErrNoOperationInWork
		}
		if idx == 0 {
			return ErrFirstOperation
		}
		ops[idx].State = status.Blank
		ops[idx-1].State = status.InWork
		return nil
	})
}

// ForceAdvance jumps to step. Operations before step that are not done
// become bypassed; done ones are left alone. Step becomes in work and every
// later operation blank.
func (m *Machine) ForceAdvance(sfcID string, step int) (Transition, error) {
	return m.transition(sfcID, ActionForceAdvance, step, func(ops routing.Operations) error {
		if err := validateStep(step, len(ops)); err != nil {
			return err
		}
		for i := range ops {
			switch {
			case i < step-1:
				if ops[i].State != status.Done {
					ops[i].State = status.Bypassed
				}
			case i == step-1:
				ops[i].State = status.InWork
			default:
				ops[i].State = status.Blank
			}
		}
		return nil
	})
}

// GetSFC returns the full record of an SFC.
func (m *Machine) GetSFC(sfcID string) (Record, error) {
	c, err := m.card(sfcID)
	if err != nil {
		return Record{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.recordLocked(c), nil
}

// GetRoutingState returns the routing-state projection of an SFC.
func (m *Machine) GetRoutingState(sfcID string) (RoutingState, error) {
	rec, err := m.GetSFC(sfcID)
	if err != nil {
		return RoutingState{}, err
	}
	return rec.Project(), nil
}

// ListSFCs returns every SFC in creation order.
func (m *Machine) ListSFCs() []Record {
	m.mu.RLock()
	cards := make([]*card, len(m.order))
	for i, id := range m.order {
		cards[i] = m.cards[id]
	}
	m.mu.RUnlock()

	out := make([]Record, len(cards))
	for i, c := range cards {
		c.mu.Lock()
		out[i] = m.recordLocked(c)
		c.mu.Unlock()
	}
	return out
}

// History returns the journal of an SFC, oldest first.
func (m *Machine) History(sfcID string) ([]Entry, error) {
	c, err := m.card(sfcID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.history))
	copy(out, c.history)
	return out, nil
}

func (m *Machine) card(sfcID string) (*card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[sfcID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sfcID, ErrSFCNotFound)
	}
	return c, nil
}

// transition applies fn to a copy of the SFC's operations under its lock and
// commits the copy only if fn succeeds and every change is a legal one.
func (m *Machine) transition(sfcID string, action Action, step int, fn func(routing.Operations) error) (Transition, error) {
	c, err := m.card(sfcID)
	if err != nil {
		return Transition{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.ops.Clone()
	if err := fn(next); err != nil {
		return Transition{}, err
	}
	if err := checkTransitions(c.ops, next); err != nil {
		m.logger.Error("transition rejected", "sfc_id", c.id, "action", action, "error", err)
		return Transition{}, err
	}

	changed := !statesEqual(c.ops, next)
	c.ops = next
	if changed {
		c.history = append(c.history, m.journal.entry(c.id, action, "", step, next.States()))
	}
	m.logger.Debug("sfc transition", "sfc_id", c.id, "action", action, "step", step, "changed", changed)

	return Transition{Record: m.recordLocked(c), Changed: changed}, nil
}

func (m *Machine) recordLocked(c *card) Record {
	return Record{
		ID:         c.id,
		RoutingID:  c.routingID,
		Operations: c.ops.Clone(),
		Status:     status.Derive(c.ops.States(), m.policy),
	}
}

func advance(ops routing.Operations) error {
	idx, ok := ops.InWork()
	if !ok {
		return nil
	}
	ops[idx].State = status.Done
	if idx+1 < len(ops) {
		ops[idx+1].State = status.InWork
	}
	return nil
}

func validateStep(step, n int) error {
	if step < 1 || step > n {
		return fmt.Errorf("step %d not in [1,%d]: %w", step, n, ErrInvalidStep)
	}
	return nil
}
