package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mockmes/internal/server"
)

// shutdownTimeout bounds the graceful shutdown after a signal.
const shutdownTimeout = 5 * time.Second

func newServeCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock MES HTTP server",
		Long: `Start the HTTP API on a seeded in-memory store.

The store is seeded with generated routings and SFCs (see the seed.* config
keys). A manifest of named routings can be registered first with --manifest.
The server runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if cmd.Flags().Changed("host") {
				cfg.Server.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("manifest") {
				cfg.Seed.Manifest, _ = cmd.Flags().GetString("manifest")
			}
			if noSeed, _ := cmd.Flags().GetBool("no-seed"); noSeed {
				cfg.Seed.Enabled = false
			}

			svc, err := app.newService(cmd.Context())
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(ExitGeneral)
			}

			srv := server.NewServer(server.Settings{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}, svc, server.WithLogger(app.Logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(context.WithoutCancel(ctx)); err != nil {
				app.Printer.Error(err)
				return NewExitError(ExitGeneral)
			}
			app.Printer.Success(fmt.Sprintf("mock MES listening on %s", srv.BaseURL()))

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Printer.Error(fmt.Errorf("shutdown: %w", err))
				return NewExitError(ExitGeneral)
			}
			app.Printer.Muted("server stopped")
			return nil
		},
	}
	cmd.Flags().String("host", "", "interface to bind (default from config)")
	cmd.Flags().Int("port", 0, "port to listen on (default from config)")
	cmd.Flags().String("manifest", "", "CSV or YAML manifest of routings to register")
	cmd.Flags().Bool("no-seed", false, "start with an empty store")
	return cmd
}
