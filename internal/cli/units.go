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

func newUnitsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Manage the processing unit library",
	}

	cmd.AddCommand(newUnitsListCmd(app))
	cmd.AddCommand(newUnitsShowCmd(app))
	cmd.AddCommand(newUnitsAddPromptCmd(app))
	cmd.AddCommand(newUnitsAddReplacementCmd(app))
	cmd.AddCommand(newUnitsRemoveCmd(app))

	return cmd
}

// withStore opens the store, runs fn, and closes it again.
func withStore(app *appState, fn func(ctx context.Context, st *store.Store, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		st, err := app.openStoreFn()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		return fn(cmd.Context(), st, cmd.OutOrStdout())
	}
}

func newUnitsListCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all units",
		Args:  cobra.NoArgs,
		RunE: withStore(app, func(ctx context.Context, st *store.Store, out io.Writer) error {
			units, err := st.Units(ctx)
			if err != nil {
				return err
			}
			if len(units) == 0 {
				fmt.Fprintln(out, "no units")
				return nil
			}
			for _, u := range units {
				fmt.Fprintf(out, "%s  %-12s %s\n", u.ID, u.Kind, u.Name)
			}
			return nil
		}),
	}
}

func newUnitsShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <unit-id>",
		Short: "Show a unit's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid unit id %q: %w", args[0], err)
			}

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			u, err := st.Unit(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", u.ID)
			fmt.Fprintf(out, "name:        %s\n", u.Name)
			if u.Description != "" {
				fmt.Fprintf(out, "description: %s\n", u.Description)
			}
			fmt.Fprintf(out, "kind:        %s\n", u.Kind)
			switch u.Kind {
			case pipeline.KindPrompt:
				fmt.Fprintf(out, "provider:    %s\n", u.Prompt.Provider)
				fmt.Fprintf(out, "model:       %s\n", u.Prompt.Model)
				fmt.Fprintf(out, "system:      %s\n", u.Prompt.SystemPrompt)
				fmt.Fprintf(out, "template:    %s\n", u.Prompt.UserPromptTemplate)
			case pipeline.KindReplacement:
				fmt.Fprintf(out, "find:        %s\n", u.Replacement.Find)
				fmt.Fprintf(out, "replace:     %s\n", u.Replacement.Replace)
				fmt.Fprintf(out, "regex:       %t\n", u.Replacement.Regex)
				fmt.Fprintf(out, "case-sensitive: %t\n", u.Replacement.CaseSensitive)
			}
			return nil
		},
	}
}

func newUnitsAddPromptCmd(app *appState) *cobra.Command {
	var (
		name        string
		description string
		provider    string
		model       string
		system      string
		template    string
	)

	cmd := &cobra.Command{
		Use:   "add-prompt",
		Short: "Add a prompt unit to the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if model == "" {
				model = app.cfg.DefaultModel
			}
			unit := pipeline.NewPromptUnit(name, pipeline.PromptSpec{
				Provider:           provider,
				Model:              model,
				SystemPrompt:       system,
				UserPromptTemplate: template,
			})
			unit.Description = description

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.SaveUnit(cmd.Context(), unit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created unit %s\n", unit.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Unit name")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringVar(&provider, "provider", "openai", "Completion provider")
	cmd.Flags().StringVar(&model, "model", "", "Model (default: configured default-model)")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().StringVar(&template, "template", "{{input}}", "User prompt template; {{input}} marks the running text")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newUnitsAddReplacementCmd(app *appState) *cobra.Command {
	var (
		name          string
		description   string
		find          string
		replace       string
		regex         bool
		caseSensitive bool
	)

	cmd := &cobra.Command{
		Use:   "add-replacement",
		Short: "Add a text replacement unit to the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			unit := pipeline.NewReplacementUnit(name, pipeline.ReplacementSpec{
				Find:          find,
				Replace:       replace,
				Regex:         regex,
				CaseSensitive: caseSensitive,
			})
			unit.Description = description

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.SaveUnit(cmd.Context(), unit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created unit %s\n", unit.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Unit name")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringVar(&find, "find", "", "Text or pattern to find")
	cmd.Flags().StringVar(&replace, "replace", "", "Replacement text")
	cmd.Flags().BoolVar(&regex, "regex", false, "Treat --find as a regular expression")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "Match case exactly")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("find")

	return cmd
}

func newUnitsRemoveCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <unit-id>",
		Short: "Delete a unit and remove it from every pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid unit id %q: %w", args[0], err)
			}

			st, err := app.openStoreFn()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.DeleteUnit(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted unit %s\n", id)
			return nil
		},
	}
}
