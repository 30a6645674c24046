package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	m "github.com/livngcorpse/jarvis/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	warningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	outcomeBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TUI implements UI using Bubble Tea for the progress display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start runs the spinner until Close is called.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.program != nil {
		return nil
	}

	cfg := newStartConfig(options)
	p.program = tea.NewProgram(newProgressModel(cfg.title), tea.WithOutput(p.output), tea.WithInput(nil))
	p.done = make(chan struct{})

	go func(program *tea.Program, done chan struct{}) {
		defer close(done)

		if _, err := program.Run(); err != nil {
			_, _ = fmt.Fprintf(p.output, "progress display failed: %v\n", err)
		}
	}(p.program, p.done)

	return nil
}

// Close stops the spinner and waits for the final frame.
func (p *TUI) Close(_ context.Context) {
	p.mu.Lock()
	program, done := p.program, p.done
	p.program, p.done = nil, nil
	p.mu.Unlock()

	if program == nil {
		return
	}

	program.Send(finishMsg{})
	<-done
}

// DisplayPhase advances the progress display.
func (p *TUI) DisplayPhase(ctx context.Context, phase m.Phase) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.mu.Lock()
	program := p.program
	p.mu.Unlock()

	if program == nil {
		_, _ = fmt.Fprintf(p.output, "%s %s\n", faintStyle.Render("-"), phaseLabel(phase))
		return
	}

	program.Send(phaseMsg(phase))
}

// DisplayOutcome renders the outcome in a colored box.
func (p *TUI) DisplayOutcome(ctx context.Context, outcome m.RequestOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(p.output, renderOutcome(outcome))

	return err
}

// DisplayClassification renders a classify reply.
func (p *TUI) DisplayClassification(ctx context.Context, classification m.Classification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := fmt.Fprint(p.output, renderClassification(classification))

	return err
}

// DisplayPreview renders diff statistics with colored diffs.
func (p *TUI) DisplayPreview(ctx context.Context, previews []m.FilePreview, result m.ValidationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(renderPreviewTable(previews))

	for _, preview := range previews {
		if preview.Unified == "" {
			continue
		}

		b.WriteString("\n")
		b.WriteString(colorizeDiff(preview.Unified))
	}

	b.WriteString("\n")

	if result.Passed {
		b.WriteString(successStyle.Render("✓ "))
	} else {
		b.WriteString(errorStyle.Render("✗ "))
	}

	b.WriteString(renderValidation(result))

	_, err := fmt.Fprint(p.output, b.String())

	return err
}

// DisplayBackups renders retained backups.
func (p *TUI) DisplayBackups(ctx context.Context, sets []m.BackupSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(sets) == 0 {
		_, err := fmt.Fprintln(p.output, faintStyle.Render("No backups found."))
		return err
	}

	_, err := fmt.Fprintf(p.output, "%s\n\n%s", titleStyle.Render("Backups"), renderBackupsTable(sets))

	return err
}

// DisplayHistory renders run records.
func (p *TUI) DisplayHistory(ctx context.Context, records []m.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(p.output, faintStyle.Render("No runs recorded."))
		return err
	}

	_, err := fmt.Fprintf(p.output, "%s\n\n%s", titleStyle.Render("History"), renderHistoryTable(records))

	return err
}

func renderOutcome(outcome m.RequestOutcome) string {
	style := errorStyle

	switch outcome.Status {
	case m.StatusSuccess:
		style = successStyle
	case m.StatusWarning:
		style = warningStyle
	}

	var b strings.Builder

	b.WriteString(style.Render(strings.ToUpper(string(outcome.Status))))
	b.WriteString("\n")
	b.WriteString(outcome.UserMessage())

	for _, path := range outcome.Changed {
		fmt.Fprintf(&b, "\n%s %s", doneStyle.Render("•"), path)
	}

	if outcome.BackupID != "" && outcome.Status != m.StatusWarning {
		fmt.Fprintf(&b, "\n%s", faintStyle.Render("backup "+outcome.BackupID))
	}

	return outcomeBorder.Render(b.String())
}

func colorizeDiff(unified string) string {
	added := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removed := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunk := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	lines := strings.Split(strings.TrimRight(unified, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = titleStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunk.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = added.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removed.Render(line)
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

type phaseMsg m.Phase

type finishMsg struct{}

// progressModel is the Bubble Tea model behind the spinner.
type progressModel struct {
	title    string
	spinner  spinner.Model
	current  m.Phase
	finished []m.Phase
	quitting bool
}

func newProgressModel(title string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return progressModel{title: title, spinner: s}
}

func (pm progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

func (pm progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case phaseMsg:
		if pm.current != "" {
			pm.finished = append(pm.finished, pm.current)
		}

		pm.current = m.Phase(msg)

		return pm, nil

	case finishMsg:
		if pm.current != "" {
			pm.finished = append(pm.finished, pm.current)
			pm.current = ""
		}

		pm.quitting = true

		return pm, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			pm.quitting = true
			return pm, tea.Quit
		}

		return pm, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd
	}

	return pm, nil
}

func (pm progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(pm.title))
	b.WriteString("\n")

	for _, phase := range pm.finished {
		fmt.Fprintf(&b, "  %s %s\n", doneStyle.Render("✓"), phaseLabel(phase))
	}

	if pm.current != "" && !pm.quitting {
		fmt.Fprintf(&b, "  %s %s\n", pm.spinner.View(), phaseLabel(pm.current))
	}

	return b.String()
}
