package cli

import (
	"github.com/spf13/cobra"

	"mockmes/internal/command"
)

func newRoutingCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routing",
		Short: "Create and inspect routings",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a routing",
		Long: `Create a routing of blank operations.

Without --operations the count is drawn from the ad-hoc range (1-15 by default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := command.CreateRouting{}
			if cmd.Flags().Changed("operations") {
				n, _ := cmd.Flags().GetInt("operations")
				c.Operations = &n
			}
			return app.dispatch(cmd, c)
		},
	}
	create.Flags().Int("operations", 0, "number of operations")

	get := &cobra.Command{
		Use:   "get <routing-id>",
		Short: "Show a routing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd, command.GetRouting{RoutingID: args[0]})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all routings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd, command.ListRoutings{})
		},
	}

	cmd.AddCommand(create, get, list)
	return cmd
}
