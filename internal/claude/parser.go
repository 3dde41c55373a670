package claude

import (
	"bufio"
	"encoding/json"
	"io"
)

// defaultBufferSize caps a single stream-json line.
const defaultBufferSize = 1024 * 1024

// Parser decodes stream-json output, one JSON object per line.
type Parser interface {
	// Parse returns a channel of events read from reader. The channel is
	// closed at EOF or on a read error. Blank and malformed lines are skipped.
	Parse(reader io.Reader) <-chan Event
}

// DefaultParser implements [Parser] with a line scanner.
//
// Create instances with [NewParser].
type DefaultParser struct {
	// BufferSize is the longest accepted line in bytes. Values <= 0 mean
	// the 1MB default.
	BufferSize int
}

// NewParser creates a [DefaultParser] with the default buffer size.
func NewParser() *DefaultParser {
	return &DefaultParser{BufferSize: defaultBufferSize}
}

// Parse starts a goroutine that scans reader and sends each decoded event.
// The caller must drain the channel; the goroutine exits once the reader is
// exhausted.
func (p *DefaultParser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = defaultBufferSize
		}
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, min(bufSize, 64*1024)), bufSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var raw StreamEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
	}()

	return events
}

// ParseSingle decodes one stream-json line. Unlike [DefaultParser.Parse] it
// reports malformed input.
func ParseSingle(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}
