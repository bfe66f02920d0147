package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newImportCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "import <legacy-export.json>",
		Short: "Import a legacy export with inline pipeline units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open legacy export: %w", err)
			}
			defer func() { _ = f.Close() }()

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			units, pipelines, err := st.ImportLegacy(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d unit(s) and %d pipeline(s)\n", units, pipelines)
			return nil
		},
	}
}
