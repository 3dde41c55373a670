// Package cli provides the command-line interface for mockmes.
//
// Commands are built with Cobra. Every store operation goes through a
// command.Dispatcher, against either a running server (the default, via the
// HTTP client) or an in-process store (--local). Output is rendered by an
// output.Printer.
//
// Key types:
//   - [App] holds the dependencies shared by all commands
//   - [ExitError] signals a non-zero exit code without calling os.Exit
//   - [ExecuteResult] is the testable outcome of a run
//
// Command tree:
//
//	mockmes serve
//	mockmes routing create|get|list
//	mockmes sfc create|assign|advance|complete|rollback|rollback-single|force-advance|get|state|next|list|history
//	mockmes chat
//	mockmes report export|show
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"mockmes/internal/client"
	"mockmes/internal/command"
	"mockmes/internal/config"
	"mockmes/internal/fault"
	"mockmes/internal/intent"
	"mockmes/internal/manifest"
	"mockmes/internal/mes"
	"mockmes/internal/output"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
	"mockmes/internal/status"
)

// Exit codes returned for store errors.
const (
	ExitGeneral            = 1
	ExitInvalidArgument    = 2
	ExitNotFound           = 3
	ExitFailedPrecondition = 4
)

// App holds the dependencies shared by all commands.
//
// Fields left nil are filled with production defaults by [NewRootCommand].
// Tests replace them with fakes.
type App struct {
	Config  *config.Config
	Printer *output.Printer
	Fs      afero.Fs
	Logger  *slog.Logger

	// In is read by the chat command.
	In io.Reader

	// Now stamps reports.
	Now func() time.Time

	// NewBackend builds the backend for client commands from the server URL.
	NewBackend func(serverURL string) (command.Backend, error)

	// Resolver turns chat input into commands. When nil the chat command
	// builds a keyword resolver with a Claude CLI fallback from the config.
	Resolver intent.Resolver
}

// NewApp creates an App for cfg with production dependencies.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	printer := output.NewPrinter()
	printer.SetColor(cfg.Output.Color)
	return &App{
		Config:  cfg,
		Printer: printer,
		Fs:      afero.NewOsFs(),
		Logger:  logger,
		In:      os.Stdin,
		Now:     time.Now,
	}, nil
}

func (app *App) fillDefaults() {
	if app.Config == nil {
		app.Config = config.DefaultConfig()
	}
	if app.Printer == nil {
		app.Printer = output.NewPrinter()
	}
	if app.Fs == nil {
		app.Fs = afero.NewOsFs()
	}
	if app.Logger == nil {
		app.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if app.In == nil {
		app.In = os.Stdin
	}
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.NewBackend == nil {
		app.NewBackend = func(serverURL string) (command.Backend, error) {
			return client.New(serverURL, client.WithTimeout(app.Config.Client.Timeout))
		}
	}
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	app.fillDefaults()

	rootCmd := &cobra.Command{
		Use:   "mockmes",
		Short: "Mock manufacturing execution system",
		Long: `mockmes simulates a manufacturing execution system: routings of operations
and shop floor cards (SFCs) driven through them by a state machine.

Run "mockmes serve" to start the HTTP API, then drive it with the routing,
sfc, chat and report commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", app.Config.Client.BaseURL, "mock MES server URL")
	rootCmd.PersistentFlags().Bool("local", false, "use a seeded in-process store instead of a server")

	rootCmd.AddCommand(
		newServeCommand(app),
		newRoutingCommand(app),
		newSFCCommand(app),
		newChatCommand(app),
		newReportCommand(app),
	)
	return rootCmd
}

// ExecuteResult is the outcome of [RunWithConfig].
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig runs the CLI with args against cfg and returns the exit code
// instead of exiting.
func RunWithConfig(ctx context.Context, cfg *config.Config, args []string) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		return ExecuteResult{ExitCode: ExitGeneral, Err: err}
	}
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return ExecuteResult{ExitCode: ExitGeneral, Err: err}
	}
	return ExecuteResult{}
}

// Execute loads the configuration, runs the CLI with the process arguments
// and exits with the resulting code.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitGeneral)
	}
	result := RunWithConfig(context.Background(), cfg, os.Args[1:])
	os.Exit(result.ExitCode)
}

// backend returns the backend selected by the --local and --server flags.
func (app *App) backend(cmd *cobra.Command) (command.Backend, error) {
	local, _ := cmd.Flags().GetBool("local")
	if local {
		svc, err := app.newService(cmd.Context())
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	serverURL, _ := cmd.Flags().GetString("server")
	return app.NewBackend(serverURL)
}

// newService builds an in-process store configured and seeded from the
// config, registering the manifest routings first when one is configured.
func (app *App) newService(ctx context.Context) (*mes.Service, error) {
	cfg := app.Config
	opts := mes.DefaultOptions()
	opts.Catalog.Prefix = cfg.Catalog.RoutingPrefix
	opts.Catalog.AdHocRange = routing.Range{Min: cfg.Catalog.AdHocRange.Min, Max: cfg.Catalog.AdHocRange.Max}
	opts.Catalog.SeedRange = routing.Range{Min: cfg.Catalog.SeedRange.Min, Max: cfg.Catalog.SeedRange.Max}
	opts.SFC = sfc.Options{
		Prefix: cfg.SFC.Prefix,
		Policy: status.Policy{BypassedCountsAsDone: cfg.Status.BypassedCountsAsDone},
		Logger: app.Logger,
	}
	opts.Logger = app.Logger

	svc, err := mes.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if cfg.Seed.Manifest != "" {
		m, err := manifest.ReadFromFile(app.Fs, cfg.Seed.Manifest)
		if err != nil {
			return nil, err
		}
		if _, err := svc.LoadManifest(ctx, m); err != nil {
			return nil, err
		}
	}
	if cfg.Seed.Enabled {
		if _, err := svc.Seed(ctx, cfg.Seed.Routings, cfg.Seed.SFCs); err != nil {
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
	}
	return svc, nil
}

// dispatch runs one command against the selected backend and prints the
// result. Store errors are printed and turned into an [ExitError].
func (app *App) dispatch(cmd *cobra.Command, c command.Command) error {
	backend, err := app.backend(cmd)
	if err != nil {
		return err
	}
	d := command.NewDispatcher(backend)
	d.SetLogger(app.Logger)

	res, err := d.Execute(cmd.Context(), c)
	if err != nil {
		app.Printer.Error(err)
		return NewExitError(exitCodeFor(err))
	}
	app.Printer.Result(res)
	return nil
}

func exitCodeFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInvalidArgument:
		return ExitInvalidArgument
	case fault.KindNotFound:
		return ExitNotFound
	case fault.KindFailedPrecondition:
		return ExitFailedPrecondition
	default:
		return ExitGeneral
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
