// Package adapter contains the infrastructure adapters used by the
// self-modification pipeline: filesystem, subprocesses, syntax parsers and
// the change-generating services.
package adapter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/zeebo/blake3"
)

// DefaultSkipDirs are never copied into a disposable tree.
var DefaultSkipDirs = []string{".git", "vendor", "node_modules", "__pycache__"}

// SourceFSAdapter abstracts filesystem operations that the domain layer relies
// on when copying, backing up and restoring project files.
//
//nolint:interfacebloat // A richer interface keeps pipeline logic decoupled from os/fs.
type SourceFSAdapter interface {
	// ReadFile loads a file from disk and returns its contents.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// FileInfo returns metadata for a path, following symlinks.
	FileInfo(ctx context.Context, path m.Path) (os.FileInfo, error)

	// HashFile returns the hex BLAKE3 digest of the file at path.
	HashFile(ctx context.Context, path m.Path) (string, error)

	// CreateTempDir creates a temporary directory.
	CreateTempDir(ctx context.Context, pattern string) (m.Path, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(ctx context.Context, path m.Path) error

	// Remove deletes a single file or empty directory.
	Remove(ctx context.Context, path m.Path) error

	// RemoveAll removes a directory and all its contents.
	RemoveAll(ctx context.Context, path m.Path) error

	// ReadDir lists the entries of a directory.
	ReadDir(ctx context.Context, path m.Path) ([]os.DirEntry, error)

	// WalkFiles calls fn for every regular file under root.
	WalkFiles(ctx context.Context, root m.Path, fn func(path m.Path) error) error

	// CopyDir recursively copies a directory tree, skipping configured dirs.
	CopyDir(ctx context.Context, src, dst m.Path) error

	// CopyFile copies one file, creating parent directories of dst.
	CopyFile(ctx context.Context, src, dst m.Path) error

	// RelPath returns the relative path from base to target.
	RelPath(ctx context.Context, base, target m.Path) (m.Path, error)

	// JoinPath joins path elements into a single path.
	JoinPath(ctx context.Context, elem ...string) m.Path
}

// LocalSourceFSAdapter implements SourceFSAdapter on the local disk.
type LocalSourceFSAdapter struct {
	skip map[string]struct{}
}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter. Directory names in
// skipDirs are excluded from CopyDir in addition to DefaultSkipDirs.
func NewLocalSourceFSAdapter(skipDirs ...string) *LocalSourceFSAdapter {
	skip := make(map[string]struct{}, len(DefaultSkipDirs)+len(skipDirs))
	for _, d := range append(append([]string{}, DefaultSkipDirs...), skipDirs...) {
		skip[d] = struct{}{}
	}

	return &LocalSourceFSAdapter{skip: skip}
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(_ context.Context, path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(_ context.Context, path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// HashFile returns the BLAKE3 digest of the file at the provided path.
func (a *LocalSourceFSAdapter) HashFile(_ context.Context, path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// CreateTempDir creates a temporary directory with the given pattern.
func (a *LocalSourceFSAdapter) CreateTempDir(_ context.Context, pattern string) (m.Path, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", err
	}

	return m.Path(dir), nil
}

// MkdirAll creates path with 0o755 permissions.
func (a *LocalSourceFSAdapter) MkdirAll(_ context.Context, path m.Path) error {
	return os.MkdirAll(string(path), 0o755)
}

// Remove deletes a file. A missing file is not an error.
func (a *LocalSourceFSAdapter) Remove(_ context.Context, path m.Path) error {
	err := os.Remove(string(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSourceFSAdapter) RemoveAll(_ context.Context, path m.Path) error {
	return os.RemoveAll(string(path))
}

// ReadDir lists a directory.
func (a *LocalSourceFSAdapter) ReadDir(_ context.Context, path m.Path) ([]os.DirEntry, error) {
	return os.ReadDir(string(path))
}

// WalkFiles visits every regular file under root in lexical order.
func (a *LocalSourceFSAdapter) WalkFiles(ctx context.Context, root m.Path, fn func(path m.Path) error) error {
	return filepath.WalkDir(string(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		return fn(m.Path(path))
	})
}

// CopyDir recursively copies a directory tree from src to dst. Symlinks are
// not followed.
func (a *LocalSourceFSAdapter) CopyDir(ctx context.Context, src, dst m.Path) error {
	srcStr := string(src)
	dstStr := string(dst)

	return filepath.WalkDir(srcStr, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() && path != srcStr {
			if _, skipped := a.skip[d.Name()]; skipped {
				return filepath.SkipDir
			}
		}

		relPath, err := filepath.Rel(srcStr, path)
		if err != nil {
			return err
		}

		dstPath := filepath.Join(dstStr, relPath)

		if d.IsDir() {
			return os.MkdirAll(dstPath, 0o755)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		return a.copyFile(path, dstPath, info.Mode())
	})
}

// CopyFile copies src to dst, preserving the permission bits of src.
func (a *LocalSourceFSAdapter) CopyFile(_ context.Context, src, dst m.Path) error {
	info, err := os.Stat(string(src))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(string(dst)), 0o755); err != nil {
		return err
	}

	return a.copyFile(string(src), string(dst), info.Mode())
}

func (a *LocalSourceFSAdapter) copyFile(src, dst string, mode os.FileMode) error {
	// #nosec G304 -- paths come from the sandbox-checked project tree
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() {
		_ = srcFile.Close()
	}()

	// #nosec G304
	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}

	if err := dstFile.Close(); err != nil {
		return err
	}

	return os.Chmod(dst, mode.Perm())
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(_ context.Context, base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(_ context.Context, elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}
