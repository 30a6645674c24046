// Package controller provides output adapters for displaying pipeline progress and results.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	m "github.com/livngcorpse/jarvis/internal/model"
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	title string
}

// WithTitle sets the line shown above the progress display.
func WithTitle(title string) StartOption {
	return func(c *StartConfig) {
		c.title = title
	}
}

func newStartConfig(options []StartOption) StartConfig {
	cfg := StartConfig{title: "Working"}
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI defines the interface for displaying pipeline runs.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	DisplayPhase(ctx context.Context, phase m.Phase)
	DisplayOutcome(ctx context.Context, outcome m.RequestOutcome) error
	DisplayClassification(ctx context.Context, classification m.Classification) error
	DisplayPreview(ctx context.Context, previews []m.FilePreview, result m.ValidationResult) error
	DisplayBackups(ctx context.Context, sets []m.BackupSet) error
	DisplayHistory(ctx context.Context, records []m.RunRecord) error
}

// NewUI returns the interactive UI for terminals and the plain one otherwise.
func NewUI(out io.Writer, tty bool) UI {
	if tty {
		return NewTUI(out)
	}

	return NewSimpleUI(out)
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var phaseLabels = map[m.Phase]string{
	m.PhaseGenerate: "Generating changes",
	m.PhaseExtract:  "Extracting files",
	m.PhaseBackup:   "Backing up affected files",
	m.PhaseStage:    "Staging changes",
	m.PhaseValidate: "Validating",
	m.PhaseApply:    "Applying",
	m.PhaseRollback: "Rolling back",
	m.PhaseReload:   "Reloading",
}

func phaseLabel(phase m.Phase) string {
	if label, ok := phaseLabels[phase]; ok {
		return label
	}

	return string(phase)
}
