// Package intent turns free-form operator text into a [command.Command].
//
// Resolution is replaceable: [KeywordResolver] applies fixed phrase rules and
// needs nothing external, [ClaudeResolver] asks the Claude CLI to pick a
// command, and [Chain] runs one and falls back to the other when the first
// does not recognize the text. Whatever resolves the text, the result is a
// validated Command; raw text never reaches the store.
//
// Key types:
//   - [Resolver] - the resolution interface
//   - [KeywordResolver] - rule based, deterministic
//   - [ClaudeResolver] - LLM backed via the claude package
//   - [Chain] - primary plus fallback
//   - [MockResolver] - test double
package intent

import (
	"context"
	"errors"
	"fmt"

	"mockmes/internal/command"
)

// ErrUnrecognized is returned when a resolver cannot map the text to any
// command. [Chain] falls back only on this error.
var ErrUnrecognized = errors.New("request not recognized")

// Resolver maps operator text to a command.
type Resolver interface {
	Resolve(ctx context.Context, text string) (command.Command, error)
}

// Chain tries Primary and, if it returns [ErrUnrecognized], Fallback.
// Any other error from Primary is returned as is.
type Chain struct {
	Primary  Resolver
	Fallback Resolver
}

// Resolve implements [Resolver].
func (c Chain) Resolve(ctx context.Context, text string) (command.Command, error) {
	if c.Primary == nil {
		return nil, errors.New("chain has no primary resolver")
	}
	cmd, err := c.Primary.Resolve(ctx, text)
	if err == nil || !errors.Is(err, ErrUnrecognized) || c.Fallback == nil {
		return cmd, err
	}
	cmd, fbErr := c.Fallback.Resolve(ctx, text)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback resolver: %w", fbErr)
	}
	return cmd, nil
}

// MockResolver implements [Resolver] for testing.
//
//	mock := &MockResolver{Cmd: command.ListSFCs{}}
type MockResolver struct {
	// Cmd is returned when Err is nil.
	Cmd command.Command

	// Err is the error to return.
	Err error

	// Calls records every resolved text.
	Calls []string
}

// Resolve returns the configured command or error.
func (m *MockResolver) Resolve(_ context.Context, text string) (command.Command, error) {
	m.Calls = append(m.Calls, text)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Cmd == nil {
		return nil, fmt.Errorf("MockResolver: %w", ErrUnrecognized)
	}
	return m.Cmd, nil
}
