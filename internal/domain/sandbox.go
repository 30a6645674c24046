package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	m "github.com/livngcorpse/jarvis/internal/model"
)

// MaxFileSize is the largest existing file the pipeline will touch.
const MaxFileSize int64 = 10 << 20

// SandboxGuard keeps every mutation inside the allowed root.
type SandboxGuard interface {
	// Check validates a single path. Relative paths are resolved against the
	// project root.
	Check(path string) error
	// Enforce checks every path and stops at the first violation.
	Enforce(paths []string) error
	// Resolve returns the absolute live-tree location of a relative path.
	Resolve(path string) m.Path
	// Relativize rekeys changes by their forward-slash path relative to the
	// project root. Absolute paths inside the root are rewritten; paths that
	// land outside it are rejected.
	Relativize(changes m.ChangeSet) (m.ChangeSet, error)
}

type sandboxGuard struct {
	projectRoot string
	allowedRoot string
	reserved    []string
	maxFileSize int64
}

// NewSandboxGuard creates a guard for allowedRoot. Relative inputs are
// resolved against projectRoot. Both roots are canonicalized once. Paths under
// the reserved directories (relative to projectRoot) are always rejected.
func NewSandboxGuard(projectRoot, allowedRoot m.Path, reserved ...string) (SandboxGuard, error) {
	project, err := canonicalDir(string(projectRoot))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	allowed := project
	if allowedRoot != "" {
		target := string(allowedRoot)
		if !filepath.IsAbs(target) {
			target = filepath.Join(project, target)
		}

		allowed, err = canonicalDir(target)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve allowed root: %w", err)
		}
	}

	reservedDirs := make([]string, 0, len(reserved))
	for _, r := range reserved {
		if r = strings.TrimSpace(r); r != "" {
			reservedDirs = append(reservedDirs, filepath.Join(project, filepath.FromSlash(r)))
		}
	}

	return &sandboxGuard{
		projectRoot: project,
		allowedRoot: allowed,
		reserved:    reservedDirs,
		maxFileSize: MaxFileSize,
	}, nil
}

func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	return filepath.EvalSymlinks(abs)
}

func (g *sandboxGuard) Resolve(path string) m.Path {
	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.projectRoot, p)
	}

	return m.Path(filepath.Clean(p))
}

func (g *sandboxGuard) Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return g.violation(path, "empty path")
	}

	if strings.ContainsRune(path, 0) {
		return g.violation(path, "path contains NUL byte")
	}

	abs := string(g.Resolve(path))

	canonical, err := canonicalPath(abs)
	if err != nil {
		return g.violation(path, "cannot resolve path: "+err.Error())
	}

	if !within(g.allowedRoot, canonical) {
		return g.violation(path, "outside allowed root "+g.allowedRoot)
	}

	for _, dir := range g.reserved {
		if within(dir, canonical) {
			return g.violation(path, "inside reserved directory "+dir)
		}
	}

	info, err := os.Lstat(canonical)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return g.violation(path, "cannot stat path: "+err.Error())
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(canonical)
		if err != nil {
			return g.violation(path, "cannot verify symlink target")
		}

		if !within(g.allowedRoot, target) {
			return g.violation(path, "symlink escapes allowed root")
		}

		info, err = os.Stat(target)
		if err != nil {
			return g.violation(path, "cannot stat symlink target")
		}
	}

	if info.Mode().IsRegular() && info.Size() > g.maxFileSize {
		return g.violation(path, fmt.Sprintf("file size %d exceeds limit %d", info.Size(), g.maxFileSize))
	}

	return nil
}

func (g *sandboxGuard) Enforce(paths []string) error {
	for _, p := range paths {
		if err := g.Check(p); err != nil {
			return err
		}
	}

	return nil
}

func (g *sandboxGuard) Relativize(changes m.ChangeSet) (m.ChangeSet, error) {
	out := make(m.ChangeSet, len(changes))

	for _, p := range changes.Paths() {
		key, err := g.relative(p)
		if err != nil {
			return nil, err
		}

		if _, dup := out[key]; dup {
			return nil, g.violation(p, "same file as "+key)
		}

		out[key] = changes[p]
	}

	return out, nil
}

func (g *sandboxGuard) relative(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", g.violation(path, "empty path")
	}

	native := filepath.FromSlash(path)
	if !filepath.IsAbs(native) {
		key := m.NormalizePath(path)
		if key == "" {
			return "", g.violation(path, "names the project root")
		}

		if key == ".." || strings.HasPrefix(key, "../") {
			return "", g.violation(path, "outside project root "+g.projectRoot)
		}

		return key, nil
	}

	abs := filepath.Clean(native)
	if !within(g.projectRoot, abs) {
		canonical, err := canonicalPath(abs)
		if err != nil || !within(g.projectRoot, canonical) {
			return "", g.violation(path, "outside project root "+g.projectRoot)
		}

		abs = canonical
	}

	rel, err := filepath.Rel(g.projectRoot, abs)
	if err != nil {
		return "", g.violation(path, "cannot relativize path: "+err.Error())
	}

	key := m.NormalizePath(filepath.ToSlash(rel))
	if key == "" {
		return "", g.violation(path, "names the project root")
	}

	return key, nil
}

func (g *sandboxGuard) violation(path, reason string) error {
	slog.Warn("Sandbox violation", "path", path, "reason", reason, "allowedRoot", g.allowedRoot)
	return &m.SandboxViolationError{Path: path, Reason: reason}
}

// canonicalPath resolves symlinks in the parent directories of abs while
// leaving the final element untouched, so a symlink target can be inspected
// separately. Missing trailing components are kept as-is.
func canonicalPath(abs string) (string, error) {
	dir, base := filepath.Split(abs)
	dir = filepath.Clean(dir)

	var missing []string

	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(append(parts, base)...), nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}

		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
	}
}

func within(root, path string) bool {
	if path == root {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
