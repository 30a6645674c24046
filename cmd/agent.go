package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/livngcorpse/jarvis/internal/controller"
	"github.com/livngcorpse/jarvis/internal/domain"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/spf13/cobra"
)

const maxAgentLine = 4 << 20

// agentReply is one JSON line written back to the front-end.
type agentReply struct {
	Reply          string            `json:"reply"`
	Classification *m.Classification `json:"classification,omitempty"`
	Outcome        *m.RequestOutcome `json:"outcome,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// agentCmd represents the agent command.
var agentCmd = newAgentCmd()

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Serve development requests as JSON lines on stdin/stdout",
		Long: `Read one request per line from stdin and write one JSON reply per line to
stdout. A line holding a JSON object is decoded as {intent, target_files, goal}
and processed directly. Any other line is classified first and processed only
when it is a development instruction.

When a change needs a full restart the reply is flushed first and the process
then replaces itself.`,
		Annotations: map[string]string{restartAnnotation: string(domain.RestartExec)},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Progress goes to stderr so stdout carries only replies.
			ui = controller.NewSimpleUI(cmd.ErrOrStderr())

			return serveAgent(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func serveAgent(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxAgentLine)

	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply := handleAgentLine(ctx, line)

		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}

		if reply.Outcome != nil && reply.Outcome.RestartRequired {
			if err := teardown(); err != nil {
				slog.Warn("Failed to release resources before restart", "error", err)
			}

			return selfModifier.Restart(ctx, *reply.Outcome)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read requests: %w", err)
	}

	return nil
}

func handleAgentLine(ctx context.Context, line string) agentReply {
	if strings.HasPrefix(line, "{") {
		var req m.DevRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return agentReply{Reply: "Could not read the request.", Error: err.Error()}
		}

		if strings.TrimSpace(req.Goal) == "" {
			return agentReply{Reply: "The request has no goal.", Error: "missing goal"}
		}

		req.TargetFiles = normalizeTargets(req.TargetFiles)

		return outcomeReply(selfModifier.ProcessRequest(ctx, req))
	}

	classification := selfModifier.Classify(ctx, line)
	if classification.Type != m.IntentDevInstruction {
		return agentReply{Reply: classification.Summary, Classification: &classification}
	}

	outcome := selfModifier.ProcessRequest(ctx, m.DevRequest{
		Intent:      string(classification.Type),
		TargetFiles: normalizeTargets(classification.Targets),
		Goal:        line,
	})

	reply := outcomeReply(outcome)
	reply.Classification = &classification

	return reply
}

func outcomeReply(outcome m.RequestOutcome) agentReply {
	return agentReply{Reply: outcome.UserMessage(), Outcome: &outcome}
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
