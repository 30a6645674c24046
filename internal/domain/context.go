package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/livngcorpse/jarvis/internal/adapter"
)

// MaxContextChars is the largest file included verbatim in project context.
const MaxContextChars = 2000

// ProjectContextBuilder renders the current state of target files for the
// change-generating service.
type ProjectContextBuilder interface {
	Build(ctx context.Context, targets []string) string
}

type projectContextBuilder struct {
	guard SandboxGuard
	fs    adapter.SourceFSAdapter
}

// NewProjectContextBuilder constructs a ProjectContextBuilder.
func NewProjectContextBuilder(guard SandboxGuard, fsAdapter adapter.SourceFSAdapter) ProjectContextBuilder {
	return &projectContextBuilder{guard: guard, fs: fsAdapter}
}

func (b *projectContextBuilder) Build(ctx context.Context, targets []string) string {
	parts := make([]string, 0, len(targets))

	for _, target := range targets {
		parts = append(parts, b.describe(ctx, target))
	}

	return strings.Join(parts, "\n\n")
}

func (b *projectContextBuilder) describe(ctx context.Context, target string) string {
	if err := b.guard.Check(target); err != nil {
		return target + ": [Access denied]"
	}

	location := b.guard.Resolve(target)

	info, err := b.fs.FileInfo(ctx, location)
	if err != nil || !info.Mode().IsRegular() {
		return target + ": [File does not exist]"
	}

	content, err := b.fs.ReadFile(ctx, location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return target + ": [File does not exist]"
		}

		slog.Warn("Failed to read context file", "path", target, "error", err)

		return fmt.Sprintf("%s: [Error reading file: %v]", target, err)
	}

	text := string(content)
	if n := len([]rune(text)); n > MaxContextChars {
		return fmt.Sprintf("%s: [File content truncated - %d characters]", target, n)
	}

	return target + ":\n" + text
}
