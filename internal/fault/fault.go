// Package fault defines the error kinds shared by the routing catalog, the SFC
// state machine and the transports built on top of them.
//
// Domain packages declare their own sentinel errors wrapping one of the kinds
// below with %w, so callers can match either the precise sentinel
// (e.g. sfc.ErrSFCNotFound) or the broad kind (ErrNotFound) with [errors.Is].
//
// Key functions:
//   - [KindOf] classifies any error into a [Kind] for transport mapping
//   - [FromKind] rebuilds a classified error on the client side
package fault

import "errors"

// Error kinds.
var (
	// ErrNotFound indicates an unknown sfc_id or routing_id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates an out-of-range or malformed step or
	// operation count.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFailedPrecondition indicates the SFC is not in a state that allows the
	// requested transition (e.g. rollback-single at the first operation).
	ErrFailedPrecondition = errors.New("failed precondition")
)

// Kind is the wire name of an error kind.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidArgument    Kind = "invalid_argument"
	KindFailedPrecondition Kind = "failed_precondition"
	KindInternal           Kind = "internal"
)

// KindOf classifies err. Errors that wrap none of the known kinds are
// reported as [KindInternal].
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrFailedPrecondition):
		return KindFailedPrecondition
	default:
		return KindInternal
	}
}

// FromKind returns an error whose text is exactly message and that matches
// the sentinel for kind under [errors.Is]. Unknown kinds produce a plain
// error.
func FromKind(kind Kind, message string) error {
	switch kind {
	case KindNotFound:
		return &kindError{msg: message, kind: ErrNotFound}
	case KindInvalidArgument:
		return &kindError{msg: message, kind: ErrInvalidArgument}
	case KindFailedPrecondition:
		return &kindError{msg: message, kind: ErrFailedPrecondition}
	default:
		return errors.New(message)
	}
}

// kindError keeps a remote message verbatim; the message already names the
// kind, so wrapping with %w would repeat it.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
