// Package status defines operation states and the derived SFC status.
//
// An operation is always in exactly one [State]. The SFC-level [SFCStatus] is
// never stored; it is computed on read from the operation states with
// [Derive].
//
// Key types:
//   - [State] - per-operation state (blank, in_work, done, bypassed)
//   - [SFCStatus] - aggregate status of an SFC (New, In Work, Done)
//   - [Policy] - knobs for the derivation rule
package status

import "fmt"

// State represents the state of a single operation.
type State string

// Operation states.
const (
	// Blank is the initial state of every operation in a routing template.
	Blank State = "blank"

	// InWork marks the single currently-active operation of an SFC.
	InWork State = "in_work"

	// Done marks a completed operation.
	Done State = "done"

	// Bypassed marks an operation skipped by a forced advance without being
	// completed.
	Bypassed State = "bypassed"
)

// legacyInWork is the spelling used by older clients ("in work").
const legacyInWork = "in work"

// IsValid returns true if s is one of the four operation states.
func (s State) IsValid() bool {
	switch s {
	case Blank, InWork, Done, Bypassed:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid operation state: %q", string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The legacy "in work"
// spelling is accepted and normalized to [InWork].
func (s *State) UnmarshalText(text []byte) error {
	v := State(text)
	if string(text) == legacyInWork {
		v = InWork
	}
	if !v.IsValid() {
		return fmt.Errorf("invalid operation state: %q", string(text))
	}
	*s = v
	return nil
}

// SFCStatus is the aggregate status of an SFC.
type SFCStatus string

// SFC statuses.
const (
	StatusNew    SFCStatus = "New"
	StatusInWork SFCStatus = "In Work"
	StatusDone   SFCStatus = "Done"
)

// Policy tunes the derivation rule in [Derive].
type Policy struct {
	// BypassedCountsAsDone treats bypassed operations as finished when deciding
	// whether an SFC is Done. The default (false) reproduces the historical
	// rule under which a mix of done and bypassed operations is reported as
	// New.
	BypassedCountsAsDone bool
}

// Derive computes the SFC status from its operation states.
//
// The rule is: Done if every operation is done; else In Work if any
// operation is in work; else New. An SFC without operations is New.
func Derive(states []State, p Policy) SFCStatus {
	if len(states) == 0 {
		return StatusNew
	}

	allDone := true
	anyInWork := false
	for _, s := range states {
		switch s {
		case Done:
		case Bypassed:
			if !p.BypassedCountsAsDone {
				allDone = false
			}
		case InWork:
			anyInWork = true
			allDone = false
		default:
			allDone = false
		}
	}

	switch {
	case allDone:
		return StatusDone
	case anyInWork:
		return StatusInWork
	default:
		return StatusNew
	}
}
