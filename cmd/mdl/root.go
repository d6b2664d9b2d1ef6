package main

import (
	"github.com/spf13/cobra"

	"github.com/mudyla/mdl/internal/engine"
)

func newRootCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mdl [global options] (:goal [local options])*",
		Short: "mdl orchestrates Markdown-declared script actions over a dependency graph",
		Long: `mdl resolves the actions declared in your .mdl definitions, plans their
dependency graph across axis contexts, and executes it with a parallel,
checkpointed scheduler.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && (args[0] == "--help" || args[0] == "-h") {
				return cmd.Help()
			}
			if len(args) == 1 && args[0] == "--version" {
				return newVersionCmd().RunE(cmd, nil)
			}

			inv, err := parseArgs(args)
			if err != nil {
				app.ExitCode = engine.ExitUserError
				return err
			}

			ctx := cmd.Context()
			switch inv.Mode {
			case modeListActions:
				if err := app.Engine.ListActions(ctx, inv.Options.DefsPattern); err != nil {
					app.ExitCode = engine.ExitUserError
					return err
				}
				return nil
			case modeAutocomplete:
				if err := app.Engine.Autocomplete(ctx, inv.Options.DefsPattern, inv.AutocompleteKind, inv.AutocompleteAxis); err != nil {
					app.ExitCode = engine.ExitUserError
					return err
				}
				return nil
			}

			code, err := app.Engine.Run(ctx, inv.Options)
			app.ExitCode = code
			return err
		},
	}

	cmd.AddCommand(newVersionCmd())
	return cmd
}
