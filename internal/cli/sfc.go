package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mockmes/internal/command"
	"mockmes/internal/fault"
	"mockmes/internal/router"
)

func newSFCCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sfc",
		Short: "Create and drive shop floor cards",
		Long: `Create shop floor cards (SFCs), assign routings and move them through
their operations.

Operation states: blank, in_work, done, bypassed. An SFC is New without
operations, Done when every operation is done, In Work otherwise.`,
	}

	// byID builds a subcommand taking just an SFC id.
	byID := func(use, short string, build func(id string) command.Command) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <sfc-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.dispatch(cmd, build(args[0]))
			},
		}
	}

	// byStep builds a subcommand taking an SFC id and a 1-based step.
	byStep := func(use, short string, build func(id string, step int) command.Command) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <sfc-id> <step>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				step, err := parseStep(args[1])
				if err != nil {
					app.Printer.Error(err)
					return NewExitError(ExitInvalidArgument)
				}
				return app.dispatch(cmd, build(args[0], step))
			},
		}
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an SFC with no routing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd, command.CreateSFC{})
		},
	}

	assign := &cobra.Command{
		Use:   "assign <sfc-id> <routing-id>",
		Short: "Assign a routing, replacing any previous one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd, command.AssignRouting{SFCID: args[0], RoutingID: args[1]})
		},
	}

	next := &cobra.Command{
		Use:   "next <sfc-id>",
		Short: "Suggest the next step toward Done",
		Long: `Suggest the command that moves the SFC toward Done, with a reason.

With --run the suggestion is executed when it needs no further argument.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.next(cmd, args[0])
		},
	}
	next.Flags().Bool("run", false, "execute the suggested command")

	list := &cobra.Command{
		Use:   "list",
		Short: "List all SFCs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd, command.ListSFCs{})
		},
	}

	cmd.AddCommand(
		create,
		assign,
		byID("advance", "Finish the in-work operation and start the next", func(id string) command.Command {
			return command.Advance{SFCID: id}
		}),
		byID("complete", "Complete the in-work operation", func(id string) command.Command {
			return command.Complete{SFCID: id}
		}),
		byStep("rollback", "Put the SFC back to a step", func(id string, step int) command.Command {
			return command.Rollback{SFCID: id, Step: step}
		}),
		byID("rollback-single", "Move the in-work operation back one step", func(id string) command.Command {
			return command.RollbackSingle{SFCID: id}
		}),
		byStep("force-advance", "Jump to a step, bypassing unfinished earlier steps", func(id string, step int) command.Command {
			return command.ForceAdvance{SFCID: id, Step: step}
		}),
		byID("get", "Show an SFC", func(id string) command.Command {
			return command.GetSFC{SFCID: id}
		}),
		byID("state", "Show the routing state of an SFC", func(id string) command.Command {
			return command.GetRoutingState{SFCID: id}
		}),
		next,
		list,
		byID("history", "Show the transition journal of an SFC", func(id string) command.Command {
			return command.History{SFCID: id}
		}),
	)
	return cmd
}

// next prints the router's suggestion for one SFC and optionally runs it.
func (app *App) next(cmd *cobra.Command, sfcID string) error {
	backend, err := app.backend(cmd)
	if err != nil {
		return err
	}
	d := command.NewDispatcher(backend)
	d.SetLogger(app.Logger)

	res, err := d.Execute(cmd.Context(), command.GetSFC{SFCID: sfcID})
	if err != nil {
		app.Printer.Error(err)
		return NewExitError(exitCodeFor(err))
	}

	step, err := router.NewRouter().Next(*res.Record)
	if errors.Is(err, router.ErrSFCComplete) {
		app.Printer.Success(fmt.Sprintf("%s is done", sfcID))
		return nil
	}
	if err != nil {
		app.Printer.Error(err)
		return NewExitError(ExitGeneral)
	}
	app.Printer.Muted(fmt.Sprintf("next: %s (%s)", step.Name, step.Reason))

	if run, _ := cmd.Flags().GetBool("run"); !run {
		return nil
	}
	if step.Command == nil {
		app.Printer.Error(fmt.Errorf("%s needs more arguments, run it directly", step.Name))
		return NewExitError(ExitInvalidArgument)
	}
	out, err := d.Execute(cmd.Context(), step.Command)
	if err != nil {
		app.Printer.Error(err)
		return NewExitError(exitCodeFor(err))
	}
	app.Printer.Result(out)
	return nil
}

func parseStep(arg string) (int, error) {
	step, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("step %q is not an integer: %w", arg, fault.ErrInvalidArgument)
	}
	return step, nil
}
