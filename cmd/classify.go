package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// classifyCmd represents the classify command.
var classifyCmd = newClassifyCmd()

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text...>",
		Short: "Decide whether text is a development instruction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			classification := selfModifier.Classify(ctx, strings.Join(args, " "))

			return ui.DisplayClassification(ctx, classification)
		},
	}
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
