package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fmueller/voxpipe/internal/pipeline"
	"github.com/fmueller/voxpipe/internal/store"
)

func newPipelinesCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(newPipelinesListCmd(app))
	cmd.AddCommand(newPipelinesShowCmd(app))
	cmd.AddCommand(newPipelinesAddCmd(app))
	cmd.AddCommand(newPipelinesRemoveCmd(app))

	return cmd
}

func newPipelinesListCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pipelines",
		Args:  cobra.NoArgs,
		RunE: withStore(app, func(ctx context.Context, st *store.Store, out io.Writer) error {
			pipelines, err := st.Pipelines(ctx)
			if err != nil {
				return err
			}
			if len(pipelines) == 0 {
				fmt.Fprintln(out, "no pipelines")
				return nil
			}
			for _, p := range pipelines {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "%s  %-8s %-2d unit(s)  %s\n", p.ID, state, len(p.Units), p.Name)
			}
			return nil
		}),
	}
}

func newPipelinesShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pipeline>",
		Short: "Show a pipeline and its unit references in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			p, err := findPipeline(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:      %s\n", p.ID)
			fmt.Fprintf(out, "name:    %s\n", p.Name)
			fmt.Fprintf(out, "enabled: %t\n", p.Enabled)
			for i, ref := range p.Units {
				label := fmt.Sprintf("%s (missing)", ref.UnitID)
				if u, err := st.Unit(cmd.Context(), ref.UnitID); err == nil {
					label = fmt.Sprintf("%s [%s]", u.Name, u.Kind)
				}
				state := ""
				if !ref.Enabled {
					state = " (disabled)"
				}
				fmt.Fprintf(out, "%2d. %s%s\n", i+1, label, state)
			}
			return nil
		},
	}
}

func newPipelinesAddCmd(app *appState) *cobra.Command {
	var (
		name     string
		unitArgs []string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a pipeline from an ordered list of unit ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := pipeline.NewPipeline(name)
			p.Enabled = !disabled
			for _, arg := range unitArgs {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid unit id %q: %w", arg, err)
				}
				p.Append(id, true)
			}

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			// Fail early on ids that are not in the library.
			for _, ref := range p.Units {
				if _, err := st.Unit(cmd.Context(), ref.UnitID); err != nil {
					return err
				}
			}

			if err := st.SavePipeline(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created pipeline %s\n", p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Pipeline name")
	cmd.Flags().StringArrayVar(&unitArgs, "unit", nil, "Unit id, repeatable; order is execution order")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the pipeline in the disabled state")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPipelinesRemoveCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <pipeline>",
		Short: "Delete a pipeline (library units are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			p, err := findPipeline(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if err := st.DeletePipeline(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted pipeline %s\n", p.ID)
			return nil
		},
	}
}
