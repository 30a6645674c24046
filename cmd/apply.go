package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/livngcorpse/jarvis/internal/controller"
	"github.com/livngcorpse/jarvis/internal/domain"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyDryRun bool
var applyGoal string

// applyCmd represents the apply command.
var applyCmd = newApplyCmd()

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <file|->",
		Short: "Apply an already generated change",
		Long: `Apply a change file through the pipeline. The file is either a YAML or JSON
document of the form {files: [{path, content}]} or a raw generator reply with
"--- path ---" headers. Use "-" to read from stdin.

With --dry-run the change is staged, validated and diffed against the live
tree; nothing is committed and no backup is taken.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			resp, err := readChangeFile(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			goal := applyGoal
			if goal == "" {
				goal = "apply " + args[0]
			}

			if applyDryRun {
				changes := domain.NewChangeExtractor().Extract(resp)

				previews, result, err := selfModifier.Preview(ctx, changes)
				if err != nil {
					return fmt.Errorf("failed to preview changes: %w", err)
				}

				return ui.DisplayPreview(ctx, previews, result)
			}

			if err := ui.Start(ctx, controller.WithTitle("Apply: "+args[0])); err != nil {
				return err
			}

			outcome := selfModifier.ApplyResponse(ctx, goal, resp)

			ui.Close(ctx)

			return finishOutcome(cmd, outcome)
		},
	}

	cmd.Flags().BoolVar(&applyDryRun, dryRunFlagName, false, "validate and show the diff without applying")
	cmd.Flags().StringVar(&applyGoal, goalFlagName, "", "goal recorded in the run history")

	return cmd
}

func readChangeFile(stdin io.Reader, name string) (m.GenerationResponse, error) {
	var (
		data []byte
		err  error
	)

	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}

	if err != nil {
		return m.GenerationResponse{}, fmt.Errorf("failed to read change file: %w", err)
	}

	return parseChangeFile(filepath.Ext(name), data), nil
}

// parseChangeFile decodes a structured change document and falls back to
// raw reply text.
func parseChangeFile(ext string, data []byte) m.GenerationResponse {
	resp := m.GenerationResponse{Text: string(data)}

	var doc m.GenerationResponse

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return resp
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return resp
		}
	default:
		return domain.ParseGenerationResponse(string(data))
	}

	resp.Files = doc.Files

	return resp
}

func init() {
	rootCmd.AddCommand(applyCmd)
}
