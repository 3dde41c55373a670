package sfc

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockmes/internal/fault"
	"mockmes/internal/routing"
	"mockmes/internal/status"
)

const (
	B = status.Blank
	W = status.InWork
	D = status.Done
	X = status.Bypassed
)

func newTestMachine(t *testing.T) (*Machine, *routing.Catalog) {
	t.Helper()
	opts := routing.DefaultOptions()
	opts.Rand = rand.New(rand.NewPCG(3, 4))
	cat, err := routing.NewCatalog(opts)
	require.NoError(t, err)

	mopts := DefaultOptions()
	mopts.Now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	m, err := NewMachine(cat, mopts)
	require.NoError(t, err)
	return m, cat
}

// startedSFC creates a routing with n operations and an SFC assigned to it.
func startedSFC(t *testing.T, m *Machine, cat *routing.Catalog, n int) string {
	t.Helper()
	r, err := cat.CreateRouting(n)
	require.NoError(t, err)
	rec := m.CreateSFC()
	_, err = m.AssignRouting(rec.ID, r.ID)
	require.NoError(t, err)
	return rec.ID
}

// setStates forces an SFC's operation states for table-driven setups.
func setStates(t *testing.T, m *Machine, sfcID string, states ...status.State) {
	t.Helper()
	c, err := m.card(sfcID)
	require.NoError(t, err)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.ops, len(states))
	for i, s := range states {
		c.ops[i].State = s
	}
}

func statesOf(t *testing.T, m *Machine, sfcID string) []status.State {
	t.Helper()
	rec, err := m.GetSFC(sfcID)
	require.NoError(t, err)
	return rec.Operations.States()
}

func TestNewMachine_Validation(t *testing.T) {
	_, err := NewMachine(nil, DefaultOptions())
	assert.Error(t, err)

	cat, err := routing.NewCatalog(routing.DefaultOptions())
	require.NoError(t, err)
	_, err = NewMachine(cat, Options{})
	assert.Error(t, err)
}

func TestMachine_CreateSFC(t *testing.T) {
	m, _ := newTestMachine(t)

	first := m.CreateSFC()
	second := m.CreateSFC()

	assert.Equal(t, "SFCMOCK1", first.ID)
	assert.Equal(t, "SFCMOCK2", second.ID)
	assert.Empty(t, first.RoutingID)
	assert.NotNil(t, first.Operations)
	assert.Empty(t, first.Operations)
	assert.Equal(t, status.StatusNew, first.Status)
}

func TestMachine_AssignRouting(t *testing.T) {
	m, cat := newTestMachine(t)
	r, err := cat.CreateRouting(4)
	require.NoError(t, err)
	sfc := m.CreateSFC()

	rec, err := m.AssignRouting(sfc.ID, r.ID)
	require.NoError(t, err)

	assert.Equal(t, r.ID, rec.RoutingID)
	assert.Equal(t, []status.State{W, B, B, B}, rec.Operations.States())
	assert.Equal(t, status.StatusInWork, rec.Status)

	t.Run("copy is independent of the template", func(t *testing.T) {
		_, err := m.Advance(sfc.ID)
		require.NoError(t, err)

		tmpl, err := cat.GetRouting(r.ID)
		require.NoError(t, err)
		assert.Equal(t, []status.State{B, B, B, B}, tmpl.Operations.States())
	})

	t.Run("sibling sfcs do not share operations", func(t *testing.T) {
		other := m.CreateSFC()
		_, err := m.AssignRouting(other.ID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, []status.State{W, B, B, B}, statesOf(t, m, other.ID))
		assert.Equal(t, []status.State{D, W, B, B}, statesOf(t, m, sfc.ID))
	})

	t.Run("reassignment restarts progress", func(t *testing.T) {
		rec, err := m.AssignRouting(sfc.ID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, []status.State{W, B, B, B}, rec.Operations.States())
	})
}

func TestMachine_AssignRouting_NotFound(t *testing.T) {
	m, cat := newTestMachine(t)
	r, err := cat.CreateRouting(2)
	require.NoError(t, err)
	sfc := m.CreateSFC()

	_, err = m.AssignRouting("SFCMOCK404", r.ID)
	assert.True(t, errors.Is(err, ErrSFCNotFound))
	assert.True(t, errors.Is(err, fault.ErrNotFound))

	_, err = m.AssignRouting(sfc.ID, "ROUTING404")
	assert.True(t, errors.Is(err, routing.ErrRoutingNotFound))
	assert.True(t, errors.Is(err, fault.ErrNotFound))

	rec, err := m.GetSFC(sfc.ID)
	require.NoError(t, err)
	assert.Empty(t, rec.RoutingID)
	assert.Empty(t, rec.Operations)
}

func TestMachine_AdvanceScenario(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 3)

	tr, err := m.Advance(id)
	require.NoError(t, err)
	assert.True(t, tr.Changed)

	tr, err = m.Complete(id)
	require.NoError(t, err)
	assert.Equal(t, []status.State{D, D, W}, tr.Operations.States())
	assert.Equal(t, status.StatusInWork, tr.Status)

	tr, err = m.Advance(id)
	require.NoError(t, err)
	assert.Equal(t, []status.State{D, D, D}, tr.Operations.States())
	assert.Equal(t, status.StatusDone, tr.Status)

	t.Run("advance on a finished sfc is a no-op", func(t *testing.T) {
		tr, err := m.Advance(id)
		require.NoError(t, err)
		assert.False(t, tr.Changed)
		assert.Equal(t, []status.State{D, D, D}, tr.Operations.States())
	})
}

func TestMachine_Advance_NoInWork(t *testing.T) {
	m, _ := newTestMachine(t)
	sfc := m.CreateSFC()

	tr, err := m.Advance(sfc.ID)
	require.NoError(t, err)
	assert.False(t, tr.Changed)
	assert.Empty(t, tr.Operations)

	_, err = m.Advance("SFCMOCK404")
	assert.True(t, errors.Is(err, fault.ErrNotFound))
	_, err = m.Complete("SFCMOCK404")
	assert.True(t, errors.Is(err, fault.ErrNotFound))
}

func TestMachine_Rollback(t *testing.T) {
	tests := []struct {
		name   string
		before []status.State
		step   int
		want   []status.State
	}{
		{
			name:   "back to the first step",
			before: []status.State{D, D, W, B},
			step:   1,
			want:   []status.State{W, B, B, B},
		},
		{
			name:   "middle step",
			before: []status.State{D, D, D, W},
			step:   2,
			want:   []status.State{D, W, B, B},
		},
		{
			name:   "overwrites bypassed markers",
			before: []status.State{D, X, X, W},
			step:   4,
			want:   []status.State{D, D, D, W},
		},
		{
			name:   "forward target marks skipped steps done",
			before: []status.State{W, B, B, B},
			step:   3,
			want:   []status.State{D, D, W, B},
		},
		{
			name:   "finished sfc back to last step",
			before: []status.State{D, D, D, D},
			step:   4,
			want:   []status.State{D, D, D, W},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cat := newTestMachine(t)
			id := startedSFC(t, m, cat, len(tt.before))
			setStates(t, m, id, tt.before...)

			tr, err := m.Rollback(id, tt.step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Operations.States())
			assert.Equal(t, tt.want, statesOf(t, m, id))
		})
	}
}

func TestMachine_Rollback_EveryStep(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 6)

	for step := 1; step <= 6; step++ {
		_, err := m.Rollback(id, step)
		require.NoError(t, err)

		for i, s := range statesOf(t, m, id) {
			switch {
			case i+1 < step:
				assert.Equal(t, D, s, "step %d position %d", step, i+1)
			case i+1 == step:
				assert.Equal(t, W, s, "step %d position %d", step, i+1)
			default:
				assert.Equal(t, B, s, "step %d position %d", step, i+1)
			}
		}
	}
}

func TestMachine_InvalidStep(t *testing.T) {
	calls := map[string]func(*Machine, string, int) (Transition, error){
		"rollback":      (*Machine).Rollback,
		"force advance": (*Machine).ForceAdvance,
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			m, cat := newTestMachine(t)
			id := startedSFC(t, m, cat, 3)
			_, err := m.Advance(id)
			require.NoError(t, err)
			before, err := m.GetSFC(id)
			require.NoError(t, err)

			for _, step := range []int{0, -1, 4, 100} {
				_, err := call(m, id, step)
				require.Error(t, err, "step %d", step)
				assert.True(t, errors.Is(err, ErrInvalidStep))
				assert.True(t, errors.Is(err, fault.ErrInvalidArgument))
			}

			after, err := m.GetSFC(id)
			require.NoError(t, err)
			assert.Equal(t, before, after, "failed calls must not mutate state")

			_, err = call(m, "SFCMOCK404", 1)
			assert.True(t, errors.Is(err, fault.ErrNotFound))
		})
	}

	t.Run("sfc without routing has no valid step", func(t *testing.T) {
		m, _ := newTestMachine(t)
		sfc := m.CreateSFC()
		_, err := m.Rollback(sfc.ID, 1)
		assert.True(t, errors.Is(err, ErrInvalidStep))
	})
}

func TestMachine_RollbackSingle(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 4)
	setStates(t, m, id, D, D, W, B)

	tr, err := m.RollbackSingle(id)
	require.NoError(t, err)
	assert.Equal(t, []status.State{D, W, B, B}, tr.Operations.States())

	tr, err = m.RollbackSingle(id)
	require.NoError(t, err)
	assert.Equal(t, []status.State{W, B, B, B}, tr.Operations.States())

	t.Run("first operation is a failed precondition", func(t *testing.T) {
		_, err := m.RollbackSingle(id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFirstOperation))
		assert.True(t, errors.Is(err, fault.ErrFailedPrecondition))
		assert.Equal(t, []status.State{W, B, B, B}, statesOf(t, m, id))
	})

	t.Run("nothing in work is a failed precondition", func(t *testing.T) {
		setStates(t, m, id, D, D, D, D)
		_, err := m.RollbackSingle(id)
		assert.True(t, errors.Is(err, ErrNoOperationInWork))
		assert.True(t, errors.Is(err, fault.ErrFailedPrecondition))
		assert.Equal(t, []status.State{D, D, D, D}, statesOf(t, m, id))
	})

	t.Run("sfc without routing", func(t *testing.T) {
		sfc := m.CreateSFC()
		_, err := m.RollbackSingle(sfc.ID)
		assert.True(t, errors.Is(err, ErrNoOperationInWork))
	})

	t.Run("unknown sfc", func(t *testing.T) {
		_, err := m.RollbackSingle("nope")
		assert.True(t, errors.Is(err, fault.ErrNotFound))
	})
}

func TestMachine_ForceAdvance(t *testing.T) {
	tests := []struct {
		name   string
		before []status.State
		step   int
		want   []status.State
	}{
		{
			name:   "done operations are kept, blank ones bypassed",
			before: []status.State{D, W, B, B, B},
			step:   4,
			want:   []status.State{D, X, X, W, B},
		},
		{
			name:   "first op done and the rest blank",
			before: []status.State{D, B, B, B, B},
			step:   4,
			want:   []status.State{D, X, X, W, B},
		},
		{
			name:   "jump to last",
			before: []status.State{W, B, B},
			step:   3,
			want:   []status.State{X, X, W},
		},
		{
			name:   "backwards clears later steps",
			before: []status.State{D, D, D, W},
			step:   2,
			want:   []status.State{D, W, B, B},
		},
		{
			name:   "step one leaves nothing before it",
			before: []status.State{D, W, B},
			step:   1,
			want:   []status.State{W, B, B},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cat := newTestMachine(t)
			id := startedSFC(t, m, cat, len(tt.before))
			setStates(t, m, id, tt.before...)

			tr, err := m.ForceAdvance(id, tt.step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Operations.States())
			assert.Equal(t, status.StatusInWork, tr.Status)
		})
	}
}

func TestMachine_ForceAdvance_NeverBypassesDone(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 8)
	setStates(t, m, id, D, B, D, B, D, W, B, B)

	for step := 1; step <= 8; step++ {
		before := statesOf(t, m, id)
		_, err := m.ForceAdvance(id, step)
		require.NoError(t, err)
		after := statesOf(t, m, id)
		for i := 0; i < step-1; i++ {
			if before[i] == D {
				assert.Equal(t, D, after[i], "step %d position %d", step, i+1)
			}
		}
	}
}

func TestMachine_ExactlyOneInWork(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 5)

	countInWork := func() int {
		n := 0
		for _, s := range statesOf(t, m, id) {
			if s == W {
				n++
			}
		}
		return n
	}

	_, err := m.Advance(id)
	require.NoError(t, err)
	assert.Equal(t, 1, countInWork())

	_, err = m.ForceAdvance(id, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, countInWork())

	_, err = m.Rollback(id, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, countInWork())

	for i := 0; i < 4; i++ {
		_, err = m.Advance(id)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, countInWork())
}

func TestMachine_GetRoutingState(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 2)

	rs, err := m.GetRoutingState(id)
	require.NoError(t, err)
	assert.Equal(t, RoutingState{
		SFCID:     id,
		RoutingID: "ROUTING1",
		Operations: []OperationState{
			{ID: 1, Description: "Operation 1", State: W},
			{ID: 2, Description: "Operation 2", State: B},
		},
		Status: status.StatusInWork,
	}, rs)

	_, err = m.GetRoutingState("missing")
	assert.True(t, errors.Is(err, ErrSFCNotFound))
}

func TestMachine_ListSFCs(t *testing.T) {
	m, cat := newTestMachine(t)
	startedSFC(t, m, cat, 2)
	m.CreateSFC()

	list := m.ListSFCs()
	require.Len(t, list, 2)
	assert.Equal(t, "SFCMOCK1", list[0].ID)
	assert.Equal(t, status.StatusInWork, list[0].Status)
	assert.Equal(t, "SFCMOCK2", list[1].ID)
	assert.Equal(t, status.StatusNew, list[1].Status)

	list[0].Operations[0].State = D
	assert.Equal(t, []status.State{W, B}, statesOf(t, m, "SFCMOCK1"), "list results must be copies")
}

func TestMachine_StatusPolicy(t *testing.T) {
	cat, err := routing.NewCatalog(routing.DefaultOptions())
	require.NoError(t, err)
	r, err := cat.CreateRouting(3)
	require.NoError(t, err)

	for _, tt := range []struct {
		policy status.Policy
		want   status.SFCStatus
	}{
		{policy: status.Policy{}, want: status.StatusNew},
		{policy: status.Policy{BypassedCountsAsDone: true}, want: status.StatusDone},
	} {
		opts := DefaultOptions()
		opts.Policy = tt.policy
		m, err := NewMachine(cat, opts)
		require.NoError(t, err)

		sfc := m.CreateSFC()
		_, err = m.AssignRouting(sfc.ID, r.ID)
		require.NoError(t, err)
		_, err = m.ForceAdvance(sfc.ID, 3)
		require.NoError(t, err)
		tr, err := m.Advance(sfc.ID)
		require.NoError(t, err)

		assert.Equal(t, []status.State{X, X, D}, tr.Operations.States())
		assert.Equal(t, tt.want, tr.Status)
	}
}

func TestMachine_ConcurrentAdvance(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 15)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Advance(id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	states := statesOf(t, m, id)
	for i := 0; i < 10; i++ {
		assert.Equal(t, D, states[i], "position %d", i+1)
	}
	assert.Equal(t, W, states[10])
	for i := 11; i < 15; i++ {
		assert.Equal(t, B, states[i], "position %d", i+1)
	}
}

func TestMachine_History(t *testing.T) {
	m, cat := newTestMachine(t)
	id := startedSFC(t, m, cat, 3)

	_, err := m.Advance(id)
	require.NoError(t, err)
	_, err = m.Rollback(id, 1)
	require.NoError(t, err)
	_, err = m.RollbackSingle(id) // fails, not journaled
	require.Error(t, err)
	_, err = m.ForceAdvance(id, 3)
	require.NoError(t, err)

	entries, err := m.History(id)
	require.NoError(t, err)

	actions := make([]Action, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
		assert.Equal(t, id, e.SFCID)
		if i > 0 {
			assert.Equal(t, 1, e.ID.Compare(entries[i-1].ID), "ids must be increasing")
		}
	}
	assert.Equal(t, []Action{ActionCreate, ActionAssignRouting, ActionAdvance, ActionRollback, ActionForceAdvance}, actions)
	assert.Equal(t, "ROUTING1", entries[1].RoutingID)
	assert.Equal(t, 3, entries[4].Step)
	assert.Equal(t, []status.State{X, X, W}, entries[4].States)

	_, err = m.History("missing")
	assert.True(t, errors.Is(err, ErrSFCNotFound))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(B, W))
	assert.True(t, CanTransition(W, D))
	assert.True(t, CanTransition(W, B))
	assert.True(t, CanTransition(D, B))
	assert.True(t, CanTransition(B, X))
	assert.True(t, CanTransition(D, D))
	assert.False(t, CanTransition(D, X))
	assert.False(t, CanTransition(status.State("bogus"), status.State("bogus")))
}

func TestCheckTransitions(t *testing.T) {
	ops := func(states ...status.State) routing.Operations {
		out := make(routing.Operations, len(states))
		for i, s := range states {
			out[i] = routing.Operation{ID: i + 1, State: s}
		}
		return out
	}

	assert.NoError(t, checkTransitions(ops(W, B), ops(D, W)))
	assert.ErrorIs(t, checkTransitions(ops(D, W), ops(X, W)), ErrInvalidTransition)
	assert.ErrorIs(t, checkTransitions(ops(W, B), ops(W, W)), ErrInvalidTransition)
	assert.ErrorIs(t, checkTransitions(ops(W), ops(W, B)), ErrInvalidTransition)
}
