package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxpipe/internal/config"
	"github.com/fmueller/voxpipe/internal/pipeline"
	"github.com/fmueller/voxpipe/internal/store"
)

type completerFunc func(ctx context.Context, systemPrompt, userPrompt, model string) (string, error)

func (f completerFunc) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	return f(ctx, systemPrompt, userPrompt, model)
}

// newTestApp wires an appState against a temp database and a fake
// completion service.
func newTestApp(t *testing.T, complete completerFunc) *appState {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "voxpipe.sqlite")
	app := &appState{
		noProgress: true,
		cfg:        config.Config{Optimize: true, DefaultModel: "gpt-4o-mini"},
	}
	app.openStoreFn = func() (*store.Store, error) {
		return store.Open(dbPath)
	}
	app.completerFn = func() (pipeline.Completer, error) {
		return complete, nil
	}
	return app
}

// seedStore runs fn against the test app's database.
func seedStore(t *testing.T, app *appState, fn func(ctx context.Context, st *store.Store)) {
	t.Helper()

	st, err := app.openStoreFn()
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()
	fn(context.Background(), st)
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
