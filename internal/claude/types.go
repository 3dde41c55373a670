// Package claude runs the Claude CLI as a subprocess and decodes its
// stream-json output. The intent package uses it to turn free-form operator
// text into a command when the rule-based resolver gives up.
//
// Key types:
//   - [Executor]: runs one prompt and streams [Event] values to a handler
//   - [Parser]: decodes stream-json lines into events
//   - [Event]: a decoded event with the fields the resolver needs
//
// Tests use [MockExecutor], which replays canned events without spawning a
// process.
package claude

// StreamEvent is one raw line of stream-json output.
type StreamEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message *MessageContent `json:"message,omitempty"`

	// Result and IsError are set on the final "result" event.
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// MessageContent is the message body of an assistant event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is a single block of an assistant message. Type is "text" or
// "tool_use"; Text is set for the former and Name for the latter.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// EventType is the type of a stream-json event.
type EventType string

const (
	// EventTypeSystem is emitted first, with subtype [SubtypeInit].
	EventTypeSystem EventType = "system"

	// EventTypeAssistant carries model output.
	EventTypeAssistant EventType = "assistant"

	// EventTypeUser carries tool results fed back to the model.
	EventTypeUser EventType = "user"

	// EventTypeResult closes the session.
	EventTypeResult EventType = "result"
)

// SubtypeInit marks the system event that starts a session.
const SubtypeInit = "init"

// Event is a decoded stream-json event.
//
// Created by [NewEventFromStream] and emitted by [Parser.Parse].
type Event struct {
	// Raw is the undecoded event.
	Raw *StreamEvent

	Type    EventType
	Subtype string

	// Text is the concatenated text blocks of an assistant event.
	Text string

	// ToolName is set when an assistant event invokes a tool.
	ToolName string

	// Result is the final answer carried by a result event.
	Result string

	// IsError reports a failed session on a result event.
	IsError bool

	SessionStarted  bool
	SessionComplete bool
}

// NewEventFromStream decodes raw into an [Event].
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{
		Raw:     raw,
		Type:    EventType(raw.Type),
		Subtype: raw.Subtype,
	}

	switch e.Type {
	case EventTypeSystem:
		e.SessionStarted = raw.Subtype == SubtypeInit

	case EventTypeAssistant:
		if raw.Message == nil {
			break
		}
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "text":
				e.Text += block.Text
			case "tool_use":
				e.ToolName = block.Name
			}
		}

	case EventTypeResult:
		e.SessionComplete = true
		e.Result = raw.Result
		e.IsError = raw.IsError
	}

	return e
}

// IsText reports whether e is assistant text output.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}

// IsToolUse reports whether e is a tool invocation.
func (e Event) IsToolUse() bool {
	return e.Type == EventTypeAssistant && e.ToolName != ""
}
