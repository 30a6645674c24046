package model

import (
	"fmt"
	"strings"
)

// ValidationStage identifies which validator step produced a failure.
type ValidationStage string

// Available ValidationStage values.
const (
	StageSyntax ValidationStage = "syntax"
	StageLint   ValidationStage = "lint"
	StageTest   ValidationStage = "test"
)

// ValidationFailure is a single finding reported by the validator.
type ValidationFailure struct {
	Path   string          `json:"path"`
	Stage  ValidationStage `json:"stage"`
	Detail string          `json:"detail"`
}

// ValidationResult aggregates findings. Lint findings are advisory and never
// flip Passed.
type ValidationResult struct {
	Passed   bool                `json:"passed"`
	Failures []ValidationFailure `json:"failures,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Blocking returns the failures that caused validation to fail.
func (r ValidationResult) Blocking() []ValidationFailure {
	blocking := make([]ValidationFailure, 0, len(r.Failures))

	for _, f := range r.Failures {
		if f.Stage != StageLint {
			blocking = append(blocking, f)
		}
	}

	return blocking
}

// Summary renders the blocking failures on one line each.
func (r ValidationResult) Summary() string {
	var b strings.Builder

	for i, f := range r.Blocking() {
		if i > 0 {
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "%s (%s): %s", f.Path, f.Stage, firstLine(f.Detail))
	}

	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}
