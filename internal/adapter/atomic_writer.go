package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	m "github.com/livngcorpse/jarvis/internal/model"
)

const defaultFileMode os.FileMode = 0o644

// AtomicFileWriter replaces files so that readers observe either the previous
// content or the complete new content, never a partial file.
type AtomicFileWriter interface {
	Write(ctx context.Context, path m.Path, content []byte) error
	WriteFrom(ctx context.Context, path m.Path, r io.Reader) error
}

// LocalAtomicFileWriter writes through a sibling temp file and rename.
type LocalAtomicFileWriter struct{}

// NewLocalAtomicFileWriter returns a LocalAtomicFileWriter.
func NewLocalAtomicFileWriter() *LocalAtomicFileWriter {
	return &LocalAtomicFileWriter{}
}

// Write stores content at path atomically.
func (w *LocalAtomicFileWriter) Write(ctx context.Context, path m.Path, content []byte) error {
	return w.WriteFrom(ctx, path, bytes.NewReader(content))
}

// WriteFrom streams r into a temp file next to path, then renames it over path.
// The permission bits of an existing target are kept.
func (w *LocalAtomicFileWriter) WriteFrom(ctx context.Context, path m.Path, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := string(path)
	dir := filepath.Dir(target)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	mode := defaultFileMode
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat target: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	committed := false

	defer func() {
		if committed {
			return
		}

		_ = tmp.Close()

		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("Failed to remove temp file", "path", tmpPath, "error", rmErr)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	committed = true

	return nil
}
