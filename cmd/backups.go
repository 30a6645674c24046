package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// backupsCmd represents the backups command.
var backupsCmd = newBackupsCmd()

func newBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List retained backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sets, err := selfModifier.Backups(ctx)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			return ui.DisplayBackups(ctx, sets)
		},
	}
}

// undoCmd represents the undo command.
var undoCmd = newUndoCmd()

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo [backup-id]",
		Short: "Restore a backup onto the project",
		Long: `Restore the newest backup, or the one named, onto the project root. Files
that did not exist when the backup was taken are removed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			set, err := selfModifier.Undo(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to undo: %w", err)
			}

			cmd.Printf("Restored backup %s (%d file(s)).\n", set.ID, len(set.Files))

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(undoCmd)
}
