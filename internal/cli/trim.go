package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxpipe/internal/audio"
)

func newTrimCmd(app *appState) *cobra.Command {
	var (
		output     string
		threshold  float64
		minSilence time.Duration
	)

	cmd := &cobra.Command{
		Use:   "trim <audio-file>",
		Short: "Remove silent stretches from a WAV recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := filepath.Clean(args[0])
			if output == "" {
				output = trimmedPath(input)
			}

			buf, err := audio.ReadWAV(input)
			if err != nil {
				return err
			}

			analyzer := audio.Analyzer{Threshold: float32(threshold), MinDuration: minSilence}
			trimmed, analysis := analyzer.AnalyzeAndTrim(buf)

			app.log().Info("silence analysis",
				zap.Float32("min_rms", analysis.MinRMS),
				zap.Float32("max_rms", analysis.MaxRMS),
				zap.Float32("avg_rms", analysis.AvgRMS),
				zap.Int("regions", len(analysis.Regions)))

			if err := audio.WriteWAV(output, trimmed); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d silent region(s): %.2fs -> %.2fs (%.1f%% reduction)\n",
				len(analysis.Regions),
				analysis.OriginalDuration.Seconds(),
				analysis.NewDuration.Seconds(),
				analysis.ReductionPercent)
			fmt.Fprintf(out, "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <input>.trimmed.wav)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.01, "RMS amplitude below which audio counts as silent")
	cmd.Flags().DurationVar(&minSilence, "min-silence", 1500*time.Millisecond, "Shortest silent stretch worth removing")

	return cmd
}

func trimmedPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".trimmed" + ext
}
