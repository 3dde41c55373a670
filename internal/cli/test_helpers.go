package cli

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"mockmes/internal/command"
	"mockmes/internal/config"
	"mockmes/internal/mes"
	"mockmes/internal/output"
)

// testEnv bundles an App wired to an in-process store and captured output.
type testEnv struct {
	app *App
	svc *mes.Service
	out *bytes.Buffer
	fs  afero.Fs

	// serverURLs records every URL passed to NewBackend.
	serverURLs []string
}

var testNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

// newTestEnv creates an App whose backend is an empty, deterministic store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	opts := mes.DefaultOptions()
	opts.Catalog.Rand = rand.New(rand.NewPCG(1, 1))
	opts.Rand = rand.New(rand.NewPCG(2, 2))
	svc, err := mes.New(opts)
	require.NoError(t, err)

	env := &testEnv{
		svc: svc,
		out: &bytes.Buffer{},
		fs:  afero.NewMemMapFs(),
	}
	printer := output.NewPrinterWithWriter(env.out)
	printer.SetColor(false)
	env.app = &App{
		Config:  config.DefaultConfig(),
		Printer: printer,
		Fs:      env.fs,
		In:      strings.NewReader(""),
		Now:     func() time.Time { return testNow },
		NewBackend: func(serverURL string) (command.Backend, error) {
			env.serverURLs = append(env.serverURLs, serverURL)
			return env.svc, nil
		},
	}
	return env
}

// run executes the root command with args and returns the RunE error.
func (e *testEnv) run(args ...string) error {
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) error {
	rootCmd := NewRootCommand(e.app)
	rootCmd.SetOut(e.out)
	rootCmd.SetErr(e.out)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// reset clears captured output between steps of one test.
func (e *testEnv) reset() {
	e.out.Reset()
}
