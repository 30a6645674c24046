package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultTailLines = 50

var historyLimit int
var logLines int

// historyCmd represents the history command.
var historyCmd = newHistoryCmd()

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			records, err := selfModifier.History(ctx, historyLimit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			return ui.DisplayHistory(ctx, records)
		},
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")

	return cmd
}

// logCmd represents the log command.
var logCmd = newLogCmd()

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the tail of the pipeline log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := projectRoot()
			if err != nil {
				return err
			}

			path := inProject(root, viper.GetString(logFilenameKey))

			lines, err := tailLines(path, logLines)
			if errors.Is(err, fs.ErrNotExist) {
				cmd.Printf("No log at %s yet.\n", path)
				return nil
			}

			if err != nil {
				return fmt.Errorf("failed to read log: %w", err)
			}

			for _, line := range lines {
				cmd.Println(line)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&logLines, limitFlagName, "n", defaultTailLines, "number of lines to show")

	return cmd
}

// tailLines returns the last n lines of the file at path.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n <= 0 {
		return nil, nil
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		if len(ring) == n {
			ring = append(ring[1:], scanner.Text())
			continue
		}

		ring = append(ring, scanner.Text())
	}

	return ring, scanner.Err()
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
}
