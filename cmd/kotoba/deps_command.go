package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kotoba/internal/deps"
	"kotoba/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var checkAPI bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries and API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			for _, status := range statuses {
				kind, message := statusOK, status.Path
				if !status.Available {
					kind, message = statusError, status.Detail
					if status.Optional {
						kind = statusWarn
						message += " (optional: " + status.Description + ")"
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			if checkAPI {
				fmt.Fprintln(out, renderSectionHeader("Remote API", colorize))
				result := preflight.CheckOpenAI(cmd.Context(), cfg.OpenAI)
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				if !result.Passed {
					return fmt.Errorf("%s: %s", result.Name, result.Detail)
				}
			}
			return deps.RequireAll(statuses)
		},
	}

	cmd.Flags().BoolVar(&checkAPI, "check-api", false, "Also verify the OpenAI API key with one request")
	return cmd
}
