// Package cli wires the voxpipe commands: silence trimming, pipeline
// execution, and the unit/pipeline library management.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/voxpipe/internal/config"
	"github.com/fmueller/voxpipe/internal/logging"
	"github.com/fmueller/voxpipe/internal/openai"
	"github.com/fmueller/voxpipe/internal/pipeline"
	"github.com/fmueller/voxpipe/internal/store"
	"github.com/fmueller/voxpipe/internal/version"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	storePath  string

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	openStoreFn func() (*store.Store, error)
	completerFn func() (pipeline.Completer, error)
	copyFn      func(ctx context.Context, value string) error
}

func NewRootCmd() *cobra.Command {
	app := &appState{out: os.Stdout}
	app.openStoreFn = app.openStore
	app.completerFn = app.newCompleter

	cmd := &cobra.Command{
		Use:           "voxpipe",
		Short:         "Trim silence from recordings and post-process transcripts with unit pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app.cfg = cfg
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	cmd.PersistentFlags().StringVar(&app.storePath, "store", "", "Path to the unit/pipeline database")

	cmd.AddCommand(newTrimCmd(app))
	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newUnitsCmd(app))
	cmd.AddCommand(newPipelinesCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) openStore() (*store.Store, error) {
	path := a.storePath
	if path == "" {
		path = a.cfg.StorePath
	}
	if path == "" {
		var err error
		path, err = store.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

func (a *appState) newCompleter() (pipeline.Completer, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured; set %s", config.EnvAPIKey)
	}
	return openai.NewClient(a.cfg.APIKey, a.cfg.APIBaseURL, a.log()), nil
}
