package intent

import (
	"context"
	"fmt"
	"strings"

	"mockmes/internal/claude"
	"mockmes/internal/command"
)

// noneCommand is the answer the model is told to give for requests that are
// not store operations.
const noneCommand = "none"

const promptTemplate = `You translate requests for a manufacturing execution system into exactly one command.
Reply with a single JSON object and nothing else.

Commands:
  {"command":"create_routing","operations":N}      operations is optional, 1-15
  {"command":"get_routing","routing_id":ID}
  {"command":"list_routings"}
  {"command":"create_sfc"}
  {"command":"assign_routing","sfc_id":ID,"routing_id":ID}
  {"command":"advance","sfc_id":ID}
  {"command":"complete","sfc_id":ID}
  {"command":"rollback","sfc_id":ID,"step":N}       earlier steps done, step N in work, later blank
  {"command":"rollback_single","sfc_id":ID}         move the in-work operation back by one
  {"command":"force_advance","sfc_id":ID,"step":N}  unfinished earlier steps become bypassed
  {"command":"get_sfc","sfc_id":ID}
  {"command":"get_routing_state","sfc_id":ID}
  {"command":"list_sfcs"}
  {"command":"history","sfc_id":ID}

If the request is not one of these, reply {"command":"none"}.

Request: %s`

// ClaudeResolver implements [Resolver] by asking the Claude CLI to answer
// with one JSON command, which is then decoded and validated by
// [command.Decode].
//
// Create instances with [NewClaudeResolver].
type ClaudeResolver struct {
	executor claude.Executor
	model    string
}

// NewClaudeResolver creates a ClaudeResolver. An empty model uses the
// executor's default.
func NewClaudeResolver(executor claude.Executor, model string) *ClaudeResolver {
	return &ClaudeResolver{executor: executor, model: model}
}

// Resolve implements [Resolver].
func (c *ClaudeResolver) Resolve(ctx context.Context, text string) (command.Command, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.TrimSpace(text))

	var response, result strings.Builder
	handler := func(event claude.Event) {
		switch {
		case event.IsText():
			response.WriteString(event.Text)
		case event.SessionComplete:
			result.WriteString(event.Result)
		}
	}

	exitCode, err := c.executor.ExecuteWithResult(ctx, prompt, handler, c.model)
	if err != nil {
		return nil, fmt.Errorf("claude execution failed: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("claude returned exit code %d", exitCode)
	}

	answer := response.String()
	if strings.TrimSpace(answer) == "" {
		answer = result.String()
	}
	return ParseResponse(answer)
}

// ParseResponse extracts the JSON command from a model answer. Text around
// the outermost braces, such as a code fence, is ignored.
func ParseResponse(response string) (command.Command, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("response contains no JSON command: %w", ErrUnrecognized)
	}
	body := response[start : end+1]

	if strings.Contains(strings.ReplaceAll(body, " ", ""), `"command":"`+noneCommand+`"`) {
		return nil, fmt.Errorf("model declined the request: %w", ErrUnrecognized)
	}
	return command.Decode([]byte(body))
}
