package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	m "github.com/livngcorpse/jarvis/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// SimpleUI implements UI with plain line output.
type SimpleUI struct {
	out io.Writer
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(out io.Writer) *SimpleUI {
	return &SimpleUI{out: out}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := newStartConfig(options)
	s.printf("%s\n", cfg.title)

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplayPhase prints one line per pipeline phase.
func (s *SimpleUI) DisplayPhase(ctx context.Context, phase m.Phase) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("- %s\n", phaseLabel(phase))
}

// DisplayOutcome prints the user message and the files touched.
func (s *SimpleUI) DisplayOutcome(ctx context.Context, outcome m.RequestOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s\n", outcome.UserMessage())

	for _, path := range outcome.Changed {
		s.printf("  changed: %s\n", path)
	}

	if outcome.Validation != nil {
		for _, w := range outcome.Validation.Warnings {
			s.printf("  warning: %s\n", w)
		}
	}

	if outcome.BackupID != "" && outcome.Status != m.StatusWarning {
		s.printf("  backup: %s\n", outcome.BackupID)
	}

	return nil
}

// DisplayClassification prints a classify reply.
func (s *SimpleUI) DisplayClassification(ctx context.Context, classification m.Classification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", renderClassification(classification))

	return nil
}

// DisplayPreview prints diff statistics, unified diffs and the validation verdict.
func (s *SimpleUI) DisplayPreview(ctx context.Context, previews []m.FilePreview, result m.ValidationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderPreviewTable(previews))

	for _, p := range previews {
		if p.Unified != "" {
			s.printf("\n%s", p.Unified)
		}
	}

	s.printf("\n%s", renderValidation(result))

	return nil
}

// DisplayBackups prints retained backups.
func (s *SimpleUI) DisplayBackups(ctx context.Context, sets []m.BackupSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(sets) == 0 {
		s.printf("No backups found.\n")
		return nil
	}

	s.printf("\n%s", renderBackupsTable(sets))

	return nil
}

// DisplayHistory prints run records.
func (s *SimpleUI) DisplayHistory(ctx context.Context, records []m.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(records) == 0 {
		s.printf("No runs recorded.\n")
		return nil
	}

	s.printf("\n%s", renderHistoryTable(records))

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func newTable(buf *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	return table
}

func renderPreviewTable(previews []m.FilePreview) string {
	var buf bytes.Buffer

	table := newTable(&buf, []string{"Path", "Added", "Deleted", "New"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_CENTER})

	added, deleted := 0, 0

	for _, p := range previews {
		newMark := ""
		if p.New {
			newMark = "yes"
		}

		table.Append([]string{p.Path, fmt.Sprintf("+%d", p.Added), fmt.Sprintf("-%d", p.Deleted), newMark})

		added += p.Added
		deleted += p.Deleted
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(previews)),
		fmt.Sprintf("+%d", added),
		fmt.Sprintf("-%d", deleted),
		"",
	})

	table.Render()

	return buf.String()
}

func renderBackupsTable(sets []m.BackupSet) string {
	var buf bytes.Buffer

	table := newTable(&buf, []string{"ID", "Files", "Created"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})

	for _, set := range sets {
		table.Append([]string{set.ID, fmt.Sprintf("%d", len(set.Files)), set.CreatedAt})
	}

	table.SetFooter([]string{fmt.Sprintf("Total %d", len(sets)), "", ""})
	table.Render()

	return buf.String()
}

func renderHistoryTable(records []m.RunRecord) string {
	var buf bytes.Buffer

	table := newTable(&buf, []string{"Started", "Run", "Status", "Files", "Reload", "Goal"})

	for _, r := range records {
		reload := "-"
		if r.Reload.Mode != "" {
			reload = string(r.Reload.Mode)
			if r.Reload.ExitCode != 0 {
				reload = fmt.Sprintf("%s (%d)", reload, r.Reload.ExitCode)
			}
		}

		table.Append([]string{
			r.Started.Format(timeLayout),
			shortID(r.RunID),
			string(r.Status),
			fmt.Sprintf("%d", len(r.Paths)),
			reload,
			truncate(r.Goal, 48),
		})
	}

	table.Render()

	return buf.String()
}

func renderValidation(result m.ValidationResult) string {
	var b strings.Builder

	if result.Passed {
		b.WriteString("Validation passed.\n")
	} else {
		b.WriteString("Validation failed:\n")
		for _, line := range strings.Split(result.Summary(), "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	for _, f := range result.Failures {
		if f.Stage == m.StageLint {
			fmt.Fprintf(&b, "  lint %s: %s\n", f.Path, firstLine(f.Detail))
		}
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "  warning: %s\n", w)
	}

	return b.String()
}

func renderClassification(c m.Classification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Intent: %s\n", c.Type)

	if len(c.Targets) > 0 {
		fmt.Fprintf(&b, "Targets: %s\n", strings.Join(c.Targets, ", "))
	}

	if c.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", c.Summary)
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}
