package cmd

import (
	"strings"

	"github.com/livngcorpse/jarvis/internal/controller"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/spf13/cobra"
)

var requestTargets []string

// requestCmd represents the request command.
var requestCmd = newRequestCmd()

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request <goal...>",
		Short: "Generate and apply a change for a development goal",
		Long: `Ask the change generator to implement a goal and run the result through
the pipeline. Target files are sent as context; files that do not exist yet
may be named too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			req := m.DevRequest{
				Intent:      string(m.IntentDevInstruction),
				TargetFiles: normalizeTargets(requestTargets),
				Goal:        strings.Join(args, " "),
			}

			if err := ui.Start(ctx, controller.WithTitle("Request: "+req.Goal)); err != nil {
				return err
			}

			outcome := selfModifier.ProcessRequest(ctx, req)

			ui.Close(ctx)

			return finishOutcome(cmd, outcome)
		},
	}

	cmd.Flags().StringArrayVarP(&requestTargets, targetFlagName, "t", nil, "file the change is about (can be repeated)")

	return cmd
}

func normalizeTargets(targets []string) []string {
	out := make([]string, 0, len(targets))

	for _, t := range targets {
		if p := m.NormalizePath(t); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func init() {
	rootCmd.AddCommand(requestCmd)
}
