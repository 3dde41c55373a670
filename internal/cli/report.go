package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mockmes/internal/report"
)

func newReportCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export and inspect YAML snapshots of the store",
	}

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write every routing and SFC to a YAML file",
		Long: fmt.Sprintf(`Write every routing and SFC to a YAML file.

The file is %s unless given as an argument; %s overrides both.`, report.DefaultPath, report.PathEnv),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			path = report.ResolvePath(path)

			backend, err := app.backend(cmd)
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(ExitGeneral)
			}
			source, _ := cmd.Flags().GetString("server")
			if local, _ := cmd.Flags().GetBool("local"); local {
				source = "local"
			}

			r, err := report.Build(cmd.Context(), backend, source, app.Now())
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(exitCodeFor(err))
			}
			if err := report.NewWriter(app.Fs).Write(path, r); err != nil {
				app.Printer.Error(err)
				return NewExitError(ExitGeneral)
			}
			app.Printer.Success(fmt.Sprintf("report written to %s", path))
			app.Printer.ReportSummary(r)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a report written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.NewReader(app.Fs).Read(args[0])
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(ExitGeneral)
			}
			app.Printer.ReportSummary(r)
			app.Printer.Routings(r.Routings)
			app.Printer.Records(r.SFCs)
			return nil
		},
	}

	cmd.AddCommand(export, show)
	return cmd
}
