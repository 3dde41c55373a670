package sfc

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"mockmes/internal/status"
)

// Action names a state-machine call recorded in the journal.
type Action string

// Journaled actions.
const (
	ActionCreate         Action = "create"
	ActionAssignRouting  Action = "assign_routing"
	ActionAdvance        Action = "advance"
	ActionComplete       Action = "complete"
	ActionRollback       Action = "rollback"
	ActionRollbackSingle Action = "rollback_single"
	ActionForceAdvance   Action = "force_advance"
)

// Entry is one journaled transition of an SFC.
type Entry struct {
	// ID sorts entries by creation time, including across SFCs.
	ID        ulid.ULID      `json:"id"`
	SFCID     string         `json:"sfc_id"`
	Action    Action         `json:"action"`
	RoutingID string         `json:"routing_id,omitempty"`
	Step      int            `json:"step,omitempty"`
	States    []status.State `json:"states"`
	At        time.Time      `json:"at"`
}

// journal hands out monotonic ULIDs. ulid.Monotonic readers are not safe
// for concurrent use, hence the mutex.
type journal struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func newJournal(now func() time.Time) *journal {
	return &journal{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

func (j *journal) entry(sfcID string, action Action, routingID string, step int, states []status.State) Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	at := j.now()
	return Entry{
		ID:        ulid.MustNew(ulid.Timestamp(at), j.entropy),
		SFCID:     sfcID,
		Action:    action,
		RoutingID: routingID,
		Step:      step,
		States:    states,
		At:        at,
	}
}
