package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// EventHandler receives every event of a session in order.
type EventHandler func(Event)

// Executor runs a single prompt through the Claude CLI.
type Executor interface {
	// ExecuteWithResult runs prompt, passing each event to handler, and
	// returns the process exit code. A non-nil error means the process could
	// not be started or waited for; a non-zero exit code alone is not an
	// error. An empty model uses the executor's configured model.
	ExecuteWithResult(ctx context.Context, prompt string, handler EventHandler, model string) (int, error)
}

// Config controls how the CLI binary is invoked.
type Config struct {
	// BinaryPath is the claude executable. Defaults to "claude".
	BinaryPath string

	// OutputFormat is passed as --output-format. Defaults to "stream-json".
	OutputFormat string

	// Model is passed as --model when set.
	Model string

	// Timeout bounds a single run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// DefaultExecutor runs the real CLI with [exec.CommandContext].
//
// Create instances with [NewExecutor].
type DefaultExecutor struct {
	config Config
	parser Parser
}

// NewExecutor creates a [DefaultExecutor], filling in defaults for empty
// config fields.
func NewExecutor(cfg Config) *DefaultExecutor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "claude"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "stream-json"
	}
	return &DefaultExecutor{config: cfg, parser: NewParser()}
}

// Args returns the command-line arguments for prompt.
func (e *DefaultExecutor) Args(prompt, model string) []string {
	args := []string{"-p", prompt, "--output-format", e.config.OutputFormat}
	if e.config.OutputFormat == "stream-json" {
		args = append(args, "--verbose")
	}
	if model == "" {
		model = e.config.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

// ExecuteWithResult implements [Executor].
func (e *DefaultExecutor) ExecuteWithResult(ctx context.Context, prompt string, handler EventHandler, model string) (int, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.config.BinaryPath, e.Args(prompt, model)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start claude: %w", err)
	}

	for event := range e.parser.Parse(stdout) {
		if handler != nil {
			handler(event)
		}
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return exitErr.ExitCode(), nil
		}
		if ctx.Err() != nil {
			return -1, fmt.Errorf("claude interrupted: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		return -1, fmt.Errorf("claude failed: %w (stderr: %s)", err, msg)
	}
	return 0, nil
}

// MockExecutor implements [Executor] for tests.
//
//	mock := &MockExecutor{
//	    Events: []Event{{Type: EventTypeAssistant, Text: `{"command":"list_sfcs"}`}},
//	}
type MockExecutor struct {
	// Events are replayed to the handler in order.
	Events []Event

	// ExitCode is returned after the events are replayed.
	ExitCode int

	// Error, when set, is returned without replaying events.
	Error error

	// RecordedPrompts and RecordedModels capture each call.
	RecordedPrompts []string
	RecordedModels  []string
}

// ExecuteWithResult implements [Executor].
func (m *MockExecutor) ExecuteWithResult(_ context.Context, prompt string, handler EventHandler, model string) (int, error) {
	m.RecordedPrompts = append(m.RecordedPrompts, prompt)
	m.RecordedModels = append(m.RecordedModels, model)
	if m.Error != nil {
		return -1, m.Error
	}
	for _, e := range m.Events {
		if handler != nil {
			handler(e)
		}
	}
	return m.ExitCode, nil
}
