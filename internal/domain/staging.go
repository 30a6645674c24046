package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
)

// StagingDirName is the scratch directory under the project root.
const StagingDirName = ".staging"

// StagingArea materializes a ChangeSet away from the live tree.
type StagingArea interface {
	// Stage checks every path with the sandbox guard, then writes the content
	// under the staging directory. Nothing is written when any path fails.
	Stage(ctx context.Context, changes m.ChangeSet) ([]m.StagedChange, error)
	// Dir is the staging directory.
	Dir() m.Path
	// Discard removes all staged content.
	Discard(ctx context.Context) error
}

type stagingArea struct {
	guard  SandboxGuard
	fs     adapter.SourceFSAdapter
	writer adapter.AtomicFileWriter
	dir    m.Path
}

// NewStagingArea creates a staging area rooted at dir.
func NewStagingArea(guard SandboxGuard, fsAdapter adapter.SourceFSAdapter, writer adapter.AtomicFileWriter, dir m.Path) StagingArea {
	return &stagingArea{guard: guard, fs: fsAdapter, writer: writer, dir: dir}
}

func (s *stagingArea) Dir() m.Path {
	return s.dir
}

func (s *stagingArea) Stage(ctx context.Context, changes m.ChangeSet) ([]m.StagedChange, error) {
	paths := changes.Paths()

	if err := s.guard.Enforce(paths); err != nil {
		return nil, err
	}

	if err := s.Discard(ctx); err != nil {
		return nil, err
	}

	staged := make([]m.StagedChange, 0, len(paths))

	for _, rel := range paths {
		location := s.fs.JoinPath(ctx, string(s.dir), filepath.FromSlash(rel))

		if err := s.writer.Write(ctx, location, []byte(changes[rel])); err != nil {
			slog.Error("Failed to stage file", "path", rel, "location", location, "error", err)
			return staged, fmt.Errorf("failed to stage %s: %w", rel, err)
		}

		staged = append(staged, m.StagedChange{Path: rel, Location: location})
	}

	slog.Debug("Staged changes", "files", len(staged), "dir", s.dir)

	return staged, nil
}

func (s *stagingArea) Discard(ctx context.Context) error {
	if err := s.fs.RemoveAll(ctx, s.dir); err != nil {
		slog.Error("Failed to clear staging directory", "dir", s.dir, "error", err)
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}

	return nil
}
