package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mockmes/internal/claude"
	"mockmes/internal/command"
	"mockmes/internal/intent"
)

func newChatCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Drive the store with plain-language requests",
		Long: `Read requests line by line, turn each into a command and print the result.

Requests are matched by keyword first ("advance SFCMOCK1", "rollback SFCMOCK2
to step 3", "list routings"). Anything the keywords miss is sent to the
Claude CLI unless --no-llm is given. Type "exit" or "quit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := app.backend(cmd)
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(ExitGeneral)
			}
			noLLM, _ := cmd.Flags().GetBool("no-llm")

			d := command.NewDispatcher(backend)
			d.SetLogger(app.Logger)
			d.SetObserver(func(c command.Command) {
				app.Logger.Debug("chat command resolved", "command", c.Name())
			})

			return app.chatLoop(cmd, app.resolver(noLLM), d)
		},
	}
	cmd.Flags().Bool("no-llm", false, "match keywords only, never call the Claude CLI")
	return cmd
}

func (app *App) resolver(noLLM bool) intent.Resolver {
	if app.Resolver != nil {
		return app.Resolver
	}
	keywords := intent.NewKeywordResolver(app.Config.SFC.Prefix, app.Config.Catalog.RoutingPrefix)
	if noLLM {
		return keywords
	}
	executor := claude.NewExecutor(claude.Config{
		BinaryPath:   app.Config.Claude.BinaryPath,
		OutputFormat: app.Config.Claude.OutputFormat,
		Model:        app.Config.Claude.Model,
	})
	return intent.Chain{
		Primary:  keywords,
		Fallback: intent.NewClaudeResolver(executor, app.Config.Claude.Model),
	}
}

// chatLoop runs until input ends, the user quits or the context is done.
// Errors for single requests are printed and do not end the loop.
func (app *App) chatLoop(cmd *cobra.Command, resolver intent.Resolver, d *command.Dispatcher) error {
	ctx := cmd.Context()
	scanner := bufio.NewScanner(app.In)

	for ctx.Err() == nil {
		app.Printer.Prompt("mes>")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			app.Printer.Muted("bye")
			return nil
		}

		c, err := resolver.Resolve(ctx, line)
		if errors.Is(err, intent.ErrUnrecognized) {
			app.Printer.Muted(fmt.Sprintf("could not understand %q", line))
			continue
		}
		if err != nil {
			app.Printer.Error(err)
			continue
		}

		res, err := d.Execute(ctx, c)
		if err != nil {
			app.Printer.Error(err)
			continue
		}
		app.Printer.Result(res)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
