package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxpipe/internal/clipboard"
	"github.com/fmueller/voxpipe/internal/pipeline"
	"github.com/fmueller/voxpipe/internal/store"
)

func newRunCmd(app *appState) *cobra.Command {
	var (
		text            string
		file            string
		copyToClipboard bool
		noOptimize      bool
		showLog         bool
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline over text from a flag, a file, or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readRunInput(text, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(); err != nil {
					app.log().Warn("failed to close store", zap.Error(err))
				}
			}()

			p, err := findPipeline(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}

			client, err := app.completerFn()
			if err != nil {
				return err
			}

			exec := pipeline.NewExecutor(st, client, app.log()).
				WithOptimization(app.cfg.Optimize && !noOptimize)

			stopSpinner := startSpinner(app.progressEnabled(), "Processing")
			result, err := exec.Execute(cmd.Context(), p, input)
			stopSpinner()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showLog {
				printRunLog(out, result)
			}
			fmt.Fprintln(out, result.Output)

			if copyToClipboard {
				copyFn := app.copyFn
				if copyFn == nil {
					copyFn = clipboard.CopyText
				}
				if err := copyFn(cmd.Context(), result.Output); err != nil {
					return err
				}
				app.log().Info("pipeline output copied to clipboard")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Input text (mutually exclusive with --file)")
	cmd.Flags().StringVar(&file, "file", "", "Read input text from a file, - for stdin")
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy the result to the clipboard")
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "Run every unit as its own completion call")
	cmd.Flags().BoolVar(&showLog, "show-log", false, "Print the per-step execution log")

	return cmd
}

func readRunInput(text, file string, stdin io.Reader) (string, error) {
	if text != "" && file != "" {
		return "", errors.New("--text and --file are mutually exclusive")
	}
	if text != "" {
		return text, nil
	}
	if file != "" && file != "-" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// findPipeline accepts either a pipeline id or a pipeline name.
func findPipeline(ctx context.Context, st *store.Store, arg string) (pipeline.Pipeline, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return st.Pipeline(ctx, id)
	}
	return st.PipelineByName(ctx, arg)
}

func printRunLog(out io.Writer, result *pipeline.Result) {
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
	for i, entry := range result.Entries {
		marker := " "
		if entry.Optimized {
			marker = "*"
		}
		fmt.Fprintf(out, "%s step %d: %s (%s)\n", marker, i+1, entry.Label, entry.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "total: %s\n", result.TotalDuration.Round(time.Millisecond))
}
