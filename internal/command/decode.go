package command

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mockmes/internal/fault"
)

// wireCommand is the JSON shape accepted by [Decode]:
//
//	{"command": "rollback", "sfc_id": "SFCMOCK1", "step": 2}
type wireCommand struct {
	Command    string `json:"command"`
	SFCID      string `json:"sfc_id,omitempty"`
	RoutingID  string `json:"routing_id,omitempty"`
	Step       *int   `json:"step,omitempty"`
	Operations *int   `json:"operations,omitempty"`
}

// Decode builds a validated [Command] from its JSON form. Unknown fields are
// ignored; a missing step on rollback or force_advance is reported as
// "step not provided".
func Decode(data []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(bytes.TrimSpace(data), &w); err != nil {
		return nil, fmt.Errorf("decode command: %v: %w", err, fault.ErrInvalidArgument)
	}

	cmd, err := w.command()
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Encode returns the JSON form of cmd understood by [Decode].
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	w := wireCommand{Command: cmd.Name()}
	switch c := cmd.(type) {
	case CreateRouting:
		w.Operations = c.Operations
	case GetRouting:
		w.RoutingID = c.RoutingID
	case AssignRouting:
		w.SFCID, w.RoutingID = c.SFCID, c.RoutingID
	case Advance:
		w.SFCID = c.SFCID
	case Complete:
		w.SFCID = c.SFCID
	case Rollback:
		w.SFCID, w.Step = c.SFCID, &c.Step
	case RollbackSingle:
		w.SFCID = c.SFCID
	case ForceAdvance:
		w.SFCID, w.Step = c.SFCID, &c.Step
	case GetSFC:
		w.SFCID = c.SFCID
	case GetRoutingState:
		w.SFCID = c.SFCID
	case History:
		w.SFCID = c.SFCID
	}
	return json.Marshal(w)
}

func (w wireCommand) command() (Command, error) {
	switch w.Command {
	case NameCreateRouting:
		return CreateRouting{Operations: w.Operations}, nil
	case NameGetRouting:
		return GetRouting{RoutingID: w.RoutingID}, nil
	case NameListRoutings:
		return ListRoutings{}, nil
	case NameCreateSFC:
		return CreateSFC{}, nil
	case NameAssignRouting:
		return AssignRouting{SFCID: w.SFCID, RoutingID: w.RoutingID}, nil
	case NameAdvance:
		return Advance{SFCID: w.SFCID}, nil
	case NameComplete:
		return Complete{SFCID: w.SFCID}, nil
	case NameRollback:
		if w.Step == nil {
			return nil, fmt.Errorf("step not provided: %w", ErrMissingArgument)
		}
		return Rollback{SFCID: w.SFCID, Step: *w.Step}, nil
	case NameRollbackSingle:
		return RollbackSingle{SFCID: w.SFCID}, nil
	case NameForceAdvance:
		if w.Step == nil {
			return nil, fmt.Errorf("step not provided: %w", ErrMissingArgument)
		}
		return ForceAdvance{SFCID: w.SFCID, Step: *w.Step}, nil
	case NameGetSFC:
		return GetSFC{SFCID: w.SFCID}, nil
	case NameGetRoutingState:
		return GetRoutingState{SFCID: w.SFCID}, nil
	case NameListSFCs:
		return ListSFCs{}, nil
	case NameHistory:
		return History{SFCID: w.SFCID}, nil
	case "":
		return nil, fmt.Errorf("command not provided: %w", ErrMissingArgument)
	default:
		return nil, fmt.Errorf("%q: %w", w.Command, ErrUnknownCommand)
	}
}
