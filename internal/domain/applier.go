package domain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
)

// Applier commits validated staged files onto the live tree.
type Applier interface {
	// Apply writes every staged file to its live location. It returns the
	// paths written before the first failure.
	Apply(ctx context.Context, staged []m.StagedChange) ([]string, error)
}

type applier struct {
	guard  SandboxGuard
	fs     adapter.SourceFSAdapter
	writer adapter.AtomicFileWriter
}

// NewApplier creates an Applier writing through writer.
func NewApplier(guard SandboxGuard, fsAdapter adapter.SourceFSAdapter, writer adapter.AtomicFileWriter) Applier {
	return &applier{guard: guard, fs: fsAdapter, writer: writer}
}

func (a *applier) Apply(ctx context.Context, staged []m.StagedChange) ([]string, error) {
	written := make([]string, 0, len(staged))

	for _, change := range staged {
		content, err := a.fs.ReadFile(ctx, change.Location)
		if err != nil {
			slog.Error("Failed to read staged file", "path", change.Path, "location", change.Location, "error", err)
			return written, fmt.Errorf("%w: read staged %s: %w", m.ErrApplyFailure, change.Path, err)
		}

		target := a.guard.Resolve(change.Path)

		if err := a.writer.Write(ctx, target, content); err != nil {
			slog.Error("Failed to apply file", "path", change.Path, "target", target, "error", err)
			return written, fmt.Errorf("%w: write %s: %w", m.ErrApplyFailure, change.Path, err)
		}

		slog.Info("Applied file", "path", change.Path)

		written = append(written, change.Path)
	}

	return written, nil
}
