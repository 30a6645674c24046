package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// Previewer compares staged files with the live tree.
type Previewer interface {
	Preview(ctx context.Context, staged []m.StagedChange) ([]m.FilePreview, error)
}

type previewer struct {
	guard SandboxGuard
	fs    adapter.SourceFSAdapter
}

// NewPreviewer constructs a Previewer.
func NewPreviewer(guard SandboxGuard, fsAdapter adapter.SourceFSAdapter) Previewer {
	return &previewer{guard: guard, fs: fsAdapter}
}

func (p *previewer) Preview(ctx context.Context, staged []m.StagedChange) ([]m.FilePreview, error) {
	previews := make([]m.FilePreview, 0, len(staged))

	for _, change := range staged {
		next, err := p.fs.ReadFile(ctx, change.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read staged %s: %w", change.Path, err)
		}

		isNew := false

		current, err := p.fs.ReadFile(ctx, p.guard.Resolve(change.Path))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read live %s: %w", change.Path, err)
			}

			isNew = true
		}

		preview, err := unifiedPreview(change.Path, string(current), string(next))
		if err != nil {
			return nil, err
		}

		preview.New = isNew
		previews = append(previews, preview)
	}

	return previews, nil
}

// DiffStats strips previews down to their counts.
func DiffStats(previews []m.FilePreview) []m.DiffStat {
	stats := make([]m.DiffStat, 0, len(previews))
	for _, p := range previews {
		stats = append(stats, p.DiffStat)
	}

	return stats
}

func unifiedPreview(path, before, after string) (m.FilePreview, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		return m.FilePreview{}, fmt.Errorf("failed to diff %s: %w", path, err)
	}

	preview := m.FilePreview{DiffStat: m.DiffStat{Path: path}, Unified: text}

	if text == "" {
		return preview, nil
	}

	fileDiff, err := diff.ParseFileDiff([]byte(text))
	if err != nil {
		return m.FilePreview{}, fmt.Errorf("failed to parse diff of %s: %w", path, err)
	}

	for _, hunk := range fileDiff.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				preview.Added++
			case strings.HasPrefix(line, "-"):
				preview.Deleted++
			}
		}
	}

	return preview, nil
}
